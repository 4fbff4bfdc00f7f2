package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/stocksync/internal/store"
	"github.com/roach88/stocksync/internal/testutil"
)

// AssertionContext is what assertions can inspect after the last step.
type AssertionContext struct {
	Ctx    context.Context
	Store  *store.Store
	Remote *testutil.FakeRemote
}

// AssertionError is returned when an assertion fails.
// It carries the trace so a failure can be read without rerunning.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describeEvent(event))
	}
	return buf.String()
}

func describeEvent(ev TraceEvent) string {
	switch ev.Type {
	case EventConnectivity:
		if ev.Online != nil && *ev.Online {
			return "online"
		}
		return "offline"
	case EventSubmit:
		return fmt.Sprintf("submit %s -> %s", ev.Movement, ev.Outcome)
	case EventDrain:
		return fmt.Sprintf("drain -> %s (%d/%d)", ev.Drain.State, ev.Drain.Confirmed, ev.Drain.Snapshot)
	case EventRequest:
		return fmt.Sprintf("request %s %s/%s qty=%d -> %d",
			ev.Request.Type, ev.Request.ShopID, ev.Request.ArticleID, ev.Request.Qty, *ev.Status)
	case EventRestart:
		return fmt.Sprintf("restart, %d pending", *ev.Pending)
	default:
		return ev.Type + " " + ev.Detail
	}
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result.Trace, a, actx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertPendingCount:
		n, err := actx.Store.Count(actx.Ctx)
		if err != nil {
			return fmt.Errorf("pending_count: %w", err)
		}
		return compareInt(trace, a.Type, *a.Count, n)

	case AssertDeadLetterCount:
		dead, err := actx.Store.ListDeadLetters(actx.Ctx)
		if err != nil {
			return fmt.Errorf("dead_letter_count: %w", err)
		}
		return compareInt(trace, a.Type, *a.Count, len(dead))

	case AssertRequestCount:
		return compareInt(trace, a.Type, *a.Count, len(actx.Remote.Requests()))

	case AssertAcceptedOrder:
		got := []string{}
		for _, r := range actx.Remote.Accepted() {
			got = append(got, r.ArticleID)
		}
		return compareList(trace, a.Type, a.Articles, got)

	case AssertAcceptedReasons:
		got := []string{}
		for _, r := range actx.Remote.Accepted() {
			got = append(got, r.Reason)
		}
		return compareList(trace, a.Type, a.Reasons, got)

	case AssertStock:
		got := actx.Remote.Stock(a.Shop, a.Article)
		if got != *a.Qty {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s/%s = %d", a.Shop, a.Article, *a.Qty),
				Actual:   fmt.Sprintf("%s/%s = %d", a.Shop, a.Article, got),
				Trace:    trace,
			}
		}
		return nil
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func compareInt(trace []TraceEvent, typ string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
		Trace:    trace,
	}
}

func compareList(trace []TraceEvent, typ string, want, got []string) error {
	if len(want) == 0 && len(got) == 0 {
		return nil
	}
	if reflect.DeepEqual(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%q", want),
		Actual:   fmt.Sprintf("%q", got),
		Trace:    trace,
	}
}

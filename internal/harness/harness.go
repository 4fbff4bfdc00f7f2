package harness

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/stocksync/internal/connectivity"
	"github.com/roach88/stocksync/internal/engine"
	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/remote"
	"github.com/roach88/stocksync/internal/store"
	"github.com/roach88/stocksync/internal/submit"
	"github.com/roach88/stocksync/internal/testutil"
)

// requestTimeout bounds each call to the fake endpoint.
const requestTimeout = 2 * time.Second

// Harness wires the real store, submitter and drain engine to a fake
// endpoint for one scenario run.
type Harness struct {
	scenario *Scenario
	path     string
	store    *store.Store
	remote   *testutil.FakeRemote
	client   *remote.Client
	monitor  *connectivity.Monitor
	clock    *testutil.StepClock

	submitter *submit.Submitter
	engine    *engine.Engine

	// seen is how many fake endpoint requests are already in the trace.
	seen int
}

// Run executes a scenario and returns the result.
//
// Each run gets a fresh database file under t.TempDir, a fresh fake
// endpoint and a step clock, so traces are reproducible. The returned error
// covers harness failures only; expectation and assertion failures are
// collected in Result.Errors.
func Run(t testing.TB, scenario *Scenario) (*Result, error) {
	t.Helper()

	h := &Harness{
		scenario: scenario,
		path:     filepath.Join(t.TempDir(), "harness.db"),
		remote:   testutil.NewFakeRemote(t),
		monitor:  connectivity.New(!scenario.StartOffline),
		clock:    testutil.NewStepClock(testutil.Epoch, time.Second),
	}

	client, err := remote.NewClient(h.remote.URL, remote.WithTimeout(requestTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	h.client = client

	if err := h.open(); err != nil {
		return nil, err
	}
	defer func() { _ = h.store.Close() }()

	for _, lvl := range scenario.Stock {
		h.remote.SetStock(lvl.Shop, lvl.Article, lvl.Qty)
	}

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		h.flushRequests(result)
	}

	actx := &AssertionContext{
		Ctx:    ctx,
		Store:  h.store,
		Remote: h.remote,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// open opens the store and builds the components that depend on it.
func (h *Harness) open() error {
	st, err := store.Open(h.path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	h.store = st
	h.submitter = submit.New(st, h.client, h.monitor,
		submit.WithDeviceID(h.scenario.DeviceID),
		submit.WithClock(h.clock.Now),
	)
	h.engine = engine.New(st, h.client, h.monitor,
		engine.WithDeviceID(h.scenario.DeviceID),
		engine.WithMaxRejections(h.scenario.MaxRejections),
	)
	return nil
}

func (h *Harness) execute(ctx context.Context, index int, step Step, result *Result) error {
	switch {
	case step.Online != nil:
		online := *step.Online
		h.monitor.Set(online)
		result.add(TraceEvent{Type: EventConnectivity, Online: &online})

	case step.Submit != nil:
		return h.submit(ctx, index, step, result)

	case step.Drain:
		return h.drain(ctx, index, step, result)

	case step.Remote != nil:
		h.applyRemote(*step.Remote, result)

	case step.Restart:
		if err := h.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
		if err := h.open(); err != nil {
			return err
		}
		n, err := h.store.Count(ctx)
		if err != nil {
			return err
		}
		result.add(TraceEvent{Type: EventRestart, Pending: &n})
	}
	return nil
}

func (h *Harness) submit(ctx context.Context, index int, step Step, result *Result) error {
	m := step.Submit.Movement()
	ev := TraceEvent{Type: EventSubmit, Movement: m.String()}

	out, err := h.submitter.Submit(ctx, m)
	switch {
	case movement.IsValidationError(err):
		ev.Outcome = ExpectInvalid
	case err != nil:
		return err
	default:
		ev.Outcome = out.Status.String()
		ev.LocalID = out.LocalID
		ev.Reason = out.QueueReason
	}
	result.add(ev)

	if step.Expect != "" && step.Expect != ev.Outcome {
		result.AddError(fmt.Sprintf("steps[%d]: expected submit %s, got %s", index, step.Expect, ev.Outcome))
	}
	return nil
}

func (h *Harness) drain(ctx context.Context, index int, step Step, result *Result) error {
	rep, err := h.engine.Drain(ctx)
	if err != nil {
		return err
	}

	summary := &DrainSummary{
		Pass:         rep.Pass,
		Skipped:      rep.Skipped,
		State:        rep.State.String(),
		Snapshot:     rep.Snapshot,
		Confirmed:    rep.Confirmed,
		DeadLettered: rep.DeadLettered,
		Remaining:    rep.Remaining,
	}
	ev := TraceEvent{Type: EventDrain, Drain: summary}
	var derr *engine.DrainError
	if errors.As(rep.Err, &derr) {
		ev.LocalID = derr.LocalID
	}
	result.add(ev)

	got := summary.State
	if rep.Skipped {
		got = ExpectSkipped
	}
	if step.Expect != "" && step.Expect != got {
		result.AddError(fmt.Sprintf("steps[%d]: expected drain %s, got %s", index, step.Expect, got))
	}
	return nil
}

func (h *Harness) applyRemote(r RemoteStep, result *Result) {
	switch {
	case r.Down != nil:
		h.remote.SetDown(*r.Down)
		detail := "up"
		if *r.Down {
			detail = "down"
		}
		result.add(TraceEvent{Type: EventRemote, Detail: detail})
	case r.FailArticle != "":
		h.remote.FailArticle(r.FailArticle, testutil.Reply{Status: r.Status, Body: r.Body})
		result.add(TraceEvent{Type: EventRemote, Detail: fmt.Sprintf("fail %s with %d", r.FailArticle, r.Status)})
	case r.ClearArticle != "":
		h.remote.ClearArticle(r.ClearArticle)
		result.add(TraceEvent{Type: EventRemote, Detail: "clear " + r.ClearArticle})
	}
}

// flushRequests appends the requests the fake endpoint received since the
// last flush.
func (h *Harness) flushRequests(result *Result) {
	reqs := h.remote.Requests()
	for _, r := range reqs[h.seen:] {
		body := r.Body
		status := r.Status
		result.add(TraceEvent{Type: EventRequest, Request: &body, Status: &status})
	}
	h.seen = len(reqs)
}

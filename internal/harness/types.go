package harness

import (
	"github.com/roach88/stocksync/internal/remote"
)

// Trace event types.
const (
	EventConnectivity = "connectivity"
	EventSubmit       = "submit"
	EventDrain        = "drain"
	EventRemote       = "remote"
	EventRestart      = "restart"
	EventRequest      = "request"
)

// TraceEvent is one observable step of a scenario run.
//
// Requests seen by the fake endpoint during a step follow that step's event.
// Timestamps are left out so traces are byte-identical across runs.
type TraceEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	Online   *bool  `json:"online,omitempty"`
	Movement string `json:"movement,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	LocalID  int64  `json:"local_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Detail   string `json:"detail,omitempty"`

	Request *remote.Request `json:"request,omitempty"`
	Status  *int            `json:"status,omitempty"`

	Drain   *DrainSummary `json:"drain,omitempty"`
	Pending *int          `json:"pending,omitempty"`
}

// DrainSummary is the timestamp-free part of a drain report.
type DrainSummary struct {
	Pass         int64  `json:"pass,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
	State        string `json:"state"`
	Snapshot     int    `json:"snapshot"`
	Confirmed    int    `json:"confirmed"`
	DeadLettered int    `json:"dead_lettered"`
	Remaining    int    `json:"remaining"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// add appends ev with the next sequence number.
func (r *Result) add(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}

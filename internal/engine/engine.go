package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/roach88/stocksync/internal/metrics"
	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/remote"
	"github.com/roach88/stocksync/internal/store"
)

// OfflineMarker prefixes the reason of every replayed movement so the
// backend can tell deferred submissions apart. Stored records never carry it.
const OfflineMarker = "[Offline Sync] "

// Queue is the subset of the durable queue the engine consumes.
type Queue interface {
	ListPending(ctx context.Context) ([]movement.Record, error)
	Remove(ctx context.Context, localID int64) error
	RecordFailure(ctx context.Context, localID int64, msg string, permanent bool) (store.Failures, error)
	DeadLetter(ctx context.Context, localID int64, cause string) error
}

// Sender delivers one movement to the remote endpoint.
type Sender interface {
	SendMovement(ctx context.Context, req remote.Request) (remote.Response, error)
}

// Connectivity reports the current online belief.
type Connectivity interface {
	IsOnline() bool
}

// Engine replays the durable queue against the remote endpoint.
//
// Thread-safety model:
//   - Drain(): safe from any goroutine; concurrent calls do not overlap
//   - Request(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// INVARIANTS:
//   - At most one drain pass runs at a time (in-flight flag)
//   - A record is removed only after the endpoint confirmed it
//   - A pass never attempts a record after a failed one
type Engine struct {
	queue  Queue
	sender Sender
	conn   Connectivity

	deviceID      string
	maxRejections int

	clock    *Clock
	triggers *triggerQueue
	inFlight atomic.Bool
	finished chan struct{} // Signals the end of a pass (buffered, size 1)

	mu        sync.Mutex
	state     State
	last      Report
	observers []func(from, to State)

	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithDeviceID sets the device id attached to replayed movements.
func WithDeviceID(id string) EngineOption {
	return func(e *Engine) {
		e.deviceID = id
	}
}

// WithMaxRejections enables the dead letter path: a record the endpoint
// rejected permanently this many times is moved out of the queue.
// Zero (the default) retries forever.
func WithMaxRejections(n int) EngineOption {
	return func(e *Engine) {
		e.maxRejections = n
	}
}

// WithObserver registers fn for every state transition.
// fn runs synchronously on the draining goroutine.
func WithObserver(fn func(from, to State)) EngineOption {
	return func(e *Engine) {
		e.observers = append(e.observers, fn)
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over the given queue, sender and connectivity
// source.
func New(q Queue, sender Sender, conn Connectivity, opts ...EngineOption) *Engine {
	e := &Engine{
		queue:    q,
		sender:   sender,
		conn:     conn,
		clock:    NewClock(),
		triggers: newTriggerQueue(),
		finished: make(chan struct{}, 1),
		state:    Idle,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state machine position.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastReport returns the report of the most recent pass that ran.
func (e *Engine) LastReport() Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Request asks the Run loop for a drain.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the Run loop has stopped.
func (e *Engine) Request(t Trigger) bool {
	e.logger.Debug().Str("trigger", t.String()).Msg("drain requested")
	return e.triggers.Enqueue(t)
}

// Run consumes drain requests until ctx is cancelled.
//
// Every batch of waiting triggers results in one drain. A store failure is
// logged and the loop keeps serving later triggers: the queue may recover
// and the records are still there.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().Msg("sync engine starting")
	defer e.triggers.Close()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("sync engine stopped")
			return ctx.Err()
		case _, ok := <-e.triggers.Wait():
			if !ok {
				return nil
			}
		}

		batch := e.triggers.DrainAll()
		if len(batch) == 0 {
			continue
		}

		report, err := e.drainWhenFree(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logReport(batch, report, err)

		if report.DeadLettered > 0 && report.Remaining > 0 {
			e.Request(TriggerRetry)
		}
	}
}

// drainWhenFree drains, waiting for a concurrent pass to finish first so a
// trigger is never lost to a busy engine.
func (e *Engine) drainWhenFree(ctx context.Context) (Report, error) {
	for {
		report, err := e.Drain(ctx)
		if !report.Busy {
			return report, err
		}
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-e.finished:
		}
	}
}

func (e *Engine) logReport(batch []Trigger, r Report, err error) {
	names := make([]string, 0, len(batch))
	for _, t := range batch {
		names = append(names, t.String())
	}

	var ev *zerolog.Event
	switch {
	case err != nil:
		ev = e.logger.Error().Err(err)
	case r.Err != nil:
		ev = e.logger.Warn().Err(r.Err)
	case r.Skipped:
		ev = e.logger.Debug()
	default:
		ev = e.logger.Info()
	}
	ev.Strs("triggers", names).
		Int64("pass", r.Pass).
		Bool("skipped", r.Skipped).
		Int("confirmed", r.Confirmed).
		Int("dead_lettered", r.DeadLettered).
		Int("remaining", r.Remaining).
		Str("state", r.State.String()).
		Msg("drain finished")
}

// setState moves the state machine and notifies observers.
func (e *Engine) setState(to State) {
	e.mu.Lock()
	from := e.state
	if !validTransition(from, to) {
		e.mu.Unlock()
		e.logger.Error().Str("from", from.String()).Str("to", to.String()).Msg("invalid drain state transition")
		return
	}
	e.state = to
	observers := append([]func(State, State){}, e.observers...)
	e.mu.Unlock()

	for _, fn := range observers {
		fn(from, to)
	}
}

// Package status keeps a periodic, read-only snapshot of connectivity and
// queue depth for display.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/stocksync/internal/metrics"
)

// DefaultInterval is the refresh cadence when none is configured.
const DefaultInterval = 5 * time.Second

// Connectivity reports the current online belief.
type Connectivity interface {
	IsOnline() bool
}

// Counter reports the number of pending records.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Snapshot is one observation of the subsystem. It is not authoritative:
// pending may lag the queue by up to one interval.
type Snapshot struct {
	Online  bool      `json:"online"`
	Pending int       `json:"pending"`
	At      time.Time `json:"at"`
}

// Reporter polls connectivity and the queue count on a fixed interval.
// It never writes to the queue and never asks for a drain.
type Reporter struct {
	conn     Connectivity
	counter  Counter
	interval time.Duration

	mu     sync.Mutex
	latest Snapshot
	nextID int
	subs   map[int]func(Snapshot)

	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithMetrics publishes every snapshot to the online and pending gauges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reporter) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Reporter) {
		r.logger = l
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) {
		r.now = now
	}
}

// New creates a reporter. A non-positive interval uses DefaultInterval.
func New(conn Connectivity, counter Counter, interval time.Duration, opts ...Option) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	r := &Reporter{
		conn:     conn,
		counter:  counter,
		interval: interval,
		subs:     make(map[int]func(Snapshot)),
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the refresh cadence.
func (r *Reporter) Interval() time.Duration {
	return r.interval
}

// Refresh takes a new snapshot, stores it and hands it to subscribers.
// If the count fails the previous pending value is kept.
func (r *Reporter) Refresh(ctx context.Context) Snapshot {
	online := r.conn.IsOnline()
	pending, err := r.counter.Count(ctx)

	r.mu.Lock()
	if err != nil {
		pending = r.latest.Pending
	}
	snap := Snapshot{Online: online, Pending: pending, At: r.now().UTC()}
	r.latest = snap
	subs := make([]func(Snapshot), 0, len(r.subs))
	for id := 0; id < r.nextID; id++ {
		if fn, ok := r.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn().Err(err).Int("pending", pending).Msg("pending count unavailable, keeping previous value")
	}
	r.metrics.SetStatus(online, pending)

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}

// Latest returns the most recent snapshot; zero before the first refresh.
func (r *Reporter) Latest() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Subscribe registers fn for every future snapshot and returns a handle
// that removes it. Subscribers run on the refreshing goroutine.
func (r *Reporter) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// Run refreshes immediately and then on every tick until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

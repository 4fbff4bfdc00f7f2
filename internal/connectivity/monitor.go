// Package connectivity tracks whether the remote endpoint is believed to be
// reachable and notifies subscribers when that belief changes.
//
// The signal is a heuristic. Consumers still treat a failed request as the
// ground truth, whatever the monitor says.
package connectivity

import (
	"sync"

	"github.com/rs/zerolog"
)

// Transition is a change of the online state.
type Transition int

const (
	WentOffline Transition = iota
	WentOnline
)

// String returns a human-readable name for the transition.
func (t Transition) String() string {
	switch t {
	case WentOnline:
		return "online"
	case WentOffline:
		return "offline"
	default:
		return "unknown"
	}
}

type subscriber struct {
	id int
	fn func(Transition)
}

// Monitor holds the current online flag and fans transitions out to
// subscribers. A transition is delivered at most once per actual change:
// repeated signals of the current state are dropped.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers run
// synchronously, in registration order, on the goroutine that called Set.
// A subscriber must not call Set.
type Monitor struct {
	// deliver serializes notification so subscribers observe transitions in
	// the order the state changed.
	deliver sync.Mutex

	mu     sync.Mutex
	online bool
	nextID int
	subs   []subscriber

	logger zerolog.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger used for transition logs.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

// New creates a monitor with the given initial state.
func New(initial bool, opts ...Option) *Monitor {
	m := &Monitor{
		online: initial,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IsOnline returns the current belief about reachability.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set ingests a host connectivity signal. It reports whether the state
// changed, in which case every subscriber has been notified on return.
func (m *Monitor) Set(online bool) bool {
	m.deliver.Lock()
	defer m.deliver.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	t := WentOffline
	if online {
		t = WentOnline
	}
	m.logger.Info().Str("transition", t.String()).Int("subscribers", len(subs)).Msg("connectivity changed")

	for _, s := range subs {
		if !m.subscribed(s.id) {
			continue
		}
		s.fn(t)
	}
	return true
}

// Subscribe registers fn for future transitions and returns a handle that
// removes it. The handle is idempotent and safe to call from within fn.
func (m *Monitor) Subscribe(fn func(Transition)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { m.remove(id) })
	}
}

// Subscribers returns the number of registered subscribers.
func (m *Monitor) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Monitor) remove(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.id == id {
			m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
			return
		}
	}
}

func (m *Monitor) subscribed(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.id == id {
			return true
		}
	}
	return false
}

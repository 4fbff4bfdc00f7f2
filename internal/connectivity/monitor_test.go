package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []Transition
}

func (r *recorder) record(t Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, t)
}

func (r *recorder) transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.seen...)
}

func TestMonitor_InitialState(t *testing.T) {
	assert.True(t, New(true).IsOnline())
	assert.False(t, New(false).IsOnline())
}

func TestMonitor_DeduplicatesSignals(t *testing.T) {
	m := New(true)
	var r recorder
	m.Subscribe(r.record)

	assert.False(t, m.Set(true))
	assert.True(t, m.Set(false))
	assert.False(t, m.Set(false))
	assert.False(t, m.Set(false))
	assert.True(t, m.Set(true))
	assert.False(t, m.Set(true))

	assert.Equal(t, []Transition{WentOffline, WentOnline}, r.transitions())
	assert.True(t, m.IsOnline())
}

func TestMonitor_RegistrationOrder(t *testing.T) {
	m := New(false)
	var order []string
	m.Subscribe(func(Transition) { order = append(order, "first") })
	m.Subscribe(func(Transition) { order = append(order, "second") })
	m.Subscribe(func(Transition) { order = append(order, "third") })

	m.Set(true)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestMonitor_StateVisibleToSubscriber(t *testing.T) {
	m := New(false)
	var seen bool
	m.Subscribe(func(Transition) { seen = m.IsOnline() })

	m.Set(true)
	assert.True(t, seen)
}

func TestMonitor_Unsubscribe(t *testing.T) {
	m := New(false)
	var r recorder
	unsubscribe := m.Subscribe(r.record)
	require.Equal(t, 1, m.Subscribers())

	m.Set(true)
	unsubscribe()
	unsubscribe()
	m.Set(false)

	assert.Equal(t, []Transition{WentOnline}, r.transitions())
	assert.Zero(t, m.Subscribers())
}

func TestMonitor_UnsubscribeDuringDelivery(t *testing.T) {
	m := New(false)
	var second recorder

	var unsubSecond func()
	m.Subscribe(func(Transition) { unsubSecond() })
	unsubSecond = m.Subscribe(second.record)

	m.Set(true)
	assert.Empty(t, second.transitions())
	assert.Equal(t, 1, m.Subscribers())
}

func TestMonitor_ConcurrentSet(t *testing.T) {
	m := New(false)
	var r recorder
	m.Subscribe(r.record)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set(i%2 == 0)
		}(i)
	}
	wg.Wait()

	// Every delivered transition is an actual change, so they alternate.
	seen := r.transitions()
	for i := 1; i < len(seen); i++ {
		assert.NotEqual(t, seen[i-1], seen[i])
	}
	if len(seen) > 0 {
		assert.Equal(t, WentOnline, seen[0])
	}
}

func TestWatcher_FeedsMonitor(t *testing.T) {
	m := New(true)
	var r recorder
	m.Subscribe(r.record)

	results := []bool{false, false, true}
	i := 0
	probe := func() (bool, error) {
		v := results[i%len(results)]
		i++
		return v, nil
	}

	w := NewWatcher(m, probe, time.Hour, zerolog.Nop())
	w.Check()
	w.Check()
	w.Check()

	assert.Equal(t, []Transition{WentOffline, WentOnline}, r.transitions())
}

func TestWatcher_ProbeErrorMeansOffline(t *testing.T) {
	m := New(true)
	w := NewWatcher(m, func() (bool, error) { return true, errors.New("no netlink") }, time.Hour, zerolog.Nop())

	w.Check()
	assert.False(t, m.IsOnline())
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	m := New(false)
	ctx, cancel := context.WithCancel(context.Background())

	checked := make(chan struct{}, 1)
	probe := func() (bool, error) {
		select {
		case checked <- struct{}{}:
		default:
		}
		return true, nil
	}

	done := make(chan error, 1)
	go func() { done <- NewWatcher(m, probe, 10*time.Millisecond, zerolog.Nop()).Run(ctx) }()

	<-checked
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.True(t, m.IsOnline())
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "auto": ModeAuto, "online": ModeOnline, "offline": ModeOffline} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("flaky")
	assert.Error(t, err)
}

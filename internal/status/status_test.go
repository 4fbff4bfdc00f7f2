package status

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stocksync/internal/connectivity"
	"github.com/roach88/stocksync/internal/metrics"
	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/store"
	"github.com/roach88/stocksync/internal/testutil"
)

type flakyCounter struct {
	mu  sync.Mutex
	n   int
	err error
}

func (c *flakyCounter) Count(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n, c.err
}

func (c *flakyCounter) set(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n, c.err = n, err
}

func TestRefresh_ReadsQueueAndMonitor(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for _, a := range []string{"A1", "A2"} {
		_, err := st.Append(ctx, movement.Movement{ShopID: "S1", ArticleID: a, Kind: movement.KindIn, Quantity: 1})
		require.NoError(t, err)
	}

	mon := connectivity.New(false)
	clock := testutil.NewStepClock(testutil.Epoch, time.Second)
	r := New(mon, st, 0, WithClock(clock.Now))

	assert.Equal(t, DefaultInterval, r.Interval())
	assert.Equal(t, Snapshot{}, r.Latest())

	snap := r.Refresh(ctx)
	assert.Equal(t, Snapshot{Online: false, Pending: 2, At: testutil.Epoch}, snap)
	assert.Equal(t, snap, r.Latest())

	mon.Set(true)
	snap = r.Refresh(ctx)
	assert.True(t, snap.Online)
	assert.Equal(t, testutil.Epoch.Add(time.Second), snap.At)

	// Refreshing does not touch the queue.
	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRefresh_CountErrorKeepsPrevious(t *testing.T) {
	counter := &flakyCounter{n: 4}
	r := New(connectivity.New(true), counter, time.Second)

	assert.Equal(t, 4, r.Refresh(context.Background()).Pending)

	counter.set(0, errors.New("disk I/O error"))
	snap := r.Refresh(context.Background())
	assert.Equal(t, 4, snap.Pending)
	assert.True(t, snap.Online)
}

func TestRefresh_PublishesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	r := New(connectivity.New(true), &flakyCounter{n: 3}, time.Second, WithMetrics(m))

	r.Refresh(context.Background())

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		if f.GetMetric()[0].GetGauge() != nil {
			values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, float64(3), values["stocksync_pending"])
	assert.Equal(t, float64(1), values["stocksync_online"])
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	counter := &flakyCounter{n: 1}
	r := New(connectivity.New(true), counter, time.Second)

	var got []int
	unsubscribe := r.Subscribe(func(s Snapshot) { got = append(got, s.Pending) })

	r.Refresh(context.Background())
	counter.set(2, nil)
	r.Refresh(context.Background())

	unsubscribe()
	unsubscribe()
	counter.set(3, nil)
	r.Refresh(context.Background())

	assert.Equal(t, []int{1, 2}, got)
}

func TestRun_RefreshesOnInterval(t *testing.T) {
	counter := &flakyCounter{n: 1}
	r := New(connectivity.New(true), counter, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.Latest().Pending == 1 }, time.Second, 5*time.Millisecond)
	counter.set(5, nil)
	require.Eventually(t, func() bool { return r.Latest().Pending == 5 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stocksync/internal/config"
	"github.com/roach88/stocksync/internal/connectivity"
	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/submit"
	"github.com/roach88/stocksync/internal/testutil"
)

func testConfig(t *testing.T, baseURL string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "queue.db")
	cfg.Remote.BaseURL = baseURL
	cfg.Remote.Timeout = 2 * time.Second
	cfg.Connectivity.PollInterval = 10 * time.Millisecond
	cfg.Status.Interval = 10 * time.Millisecond
	cfg.Sync.Interval = 0
	cfg.HTTP.Addr = ""
	return cfg
}

func newApp(t *testing.T, cfg config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{WithDeviceIDGenerator(testutil.NewFixedDeviceGenerator("dev-1"))}, opts...)
	a, err := New(context.Background(), cfg, zerolog.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func runApp(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

func pendingCount(t *testing.T, a *App) int {
	t.Helper()
	n, err := a.Store.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestNew_DeviceIDPersisted(t *testing.T) {
	fake := testutil.NewFakeRemote(t)
	cfg := testConfig(t, fake.URL)
	cfg.Connectivity.Mode = "online"

	a, err := New(context.Background(), cfg, zerolog.Nop(), WithDeviceIDGenerator(testutil.NewFixedDeviceGenerator("first")))
	require.NoError(t, err)
	assert.Equal(t, "first", a.DeviceID)
	require.NoError(t, a.Close())

	a, err = New(context.Background(), cfg, zerolog.Nop(), WithDeviceIDGenerator(testutil.NewFixedDeviceGenerator("second")))
	require.NoError(t, err)
	assert.Equal(t, "first", a.DeviceID, "the stored id wins over a new one")
	require.NoError(t, a.Close())

	cfg.Remote.DeviceID = "configured"
	a = newApp(t, cfg)
	assert.Equal(t, "configured", a.DeviceID)
}

func TestNew_InvalidMode(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Connectivity.Mode = "sometimes"

	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_NoRemoteQueuesEverything(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Connectivity.Mode = "online"
	a := newApp(t, cfg)

	assert.False(t, a.Monitor.IsOnline())
	out, err := a.Submit(context.Background(), movement.Movement{
		ShopID: "S1", ArticleID: "A1", Kind: movement.KindIn, Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, submit.Queued, out.Status)
	assert.Equal(t, 1, pendingCount(t, a))
}

func TestApp_ImmediatePathBypassesQueue(t *testing.T) {
	fake := testutil.NewFakeRemote(t)
	cfg := testConfig(t, fake.URL)
	cfg.Connectivity.Mode = "online"
	a := newApp(t, cfg)

	out, err := a.Submit(context.Background(), movement.Movement{
		ShopID: "S1", ArticleID: "A1", Kind: movement.KindIn, Quantity: 4, Reason: "delivery",
	})
	require.NoError(t, err)
	assert.Equal(t, submit.Confirmed, out.Status)
	assert.Zero(t, pendingCount(t, a))

	accepted := fake.Accepted()
	require.Len(t, accepted, 1)
	assert.Equal(t, "delivery", accepted[0].Reason)
	assert.Equal(t, "dev-1", accepted[0].DeviceID)
}

func TestApp_DrainsOnStartup(t *testing.T) {
	fake := testutil.NewFakeRemote(t)
	cfg := testConfig(t, fake.URL)
	cfg.Connectivity.Mode = "offline"

	// A previous session left two records behind.
	a := newApp(t, cfg)
	for _, article := range []string{"A1", "A2"} {
		_, err := a.Submit(context.Background(), movement.Movement{
			ShopID: "S1", ArticleID: article, Kind: movement.KindIn, Quantity: 1,
		})
		require.NoError(t, err)
	}
	require.NoError(t, a.Close())

	cfg.Connectivity.Mode = "online"
	a = newApp(t, cfg)
	runApp(t, a)

	require.Eventually(t, func() bool { return pendingCount(t, a) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, fake.Accepted(), 2)
}

func TestApp_ReconnectDrainsInOrder(t *testing.T) {
	fake := testutil.NewFakeRemote(t)
	fake.SetStock("S1", "A1", 5)
	cfg := testConfig(t, fake.URL)

	var online atomic.Bool
	probe := connectivity.Probe(func() (bool, error) { return online.Load(), nil })
	a := newApp(t, cfg, WithProbe(probe))
	runApp(t, a)

	ctx := context.Background()
	out, err := a.Submit(ctx, movement.Movement{ShopID: "S1", ArticleID: "A1", Kind: movement.KindOut, Quantity: 3, Reason: "sale"})
	require.NoError(t, err)
	assert.Equal(t, submit.Queued, out.Status)
	out, err = a.Submit(ctx, movement.Movement{ShopID: "S1", ArticleID: "A2", Kind: movement.KindIn, Quantity: 10, Reason: "restock"})
	require.NoError(t, err)
	assert.Equal(t, submit.Queued, out.Status)
	assert.Equal(t, 2, pendingCount(t, a))
	assert.Empty(t, fake.Requests())

	online.Store(true)
	require.Eventually(t, func() bool { return pendingCount(t, a) == 0 }, 2*time.Second, 10*time.Millisecond)

	accepted := fake.Accepted()
	require.Len(t, accepted, 2)
	assert.Equal(t, "out", accepted[0].Type)
	assert.Equal(t, "[Offline Sync] sale", accepted[0].Reason)
	assert.Equal(t, "in", accepted[1].Type)
	assert.Equal(t, "[Offline Sync] restock", accepted[1].Reason)

	require.Eventually(t, func() bool {
		snap := a.Reporter.Latest()
		return snap.Online && snap.Pending == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApp_QueuedWhileOnlineIsDrained(t *testing.T) {
	fake := testutil.NewFakeRemote(t)
	fake.Script(testutil.Reply{Status: http.StatusServiceUnavailable})
	cfg := testConfig(t, fake.URL)
	cfg.Connectivity.Mode = "online"
	a := newApp(t, cfg)
	runApp(t, a)

	out, err := a.Submit(context.Background(), movement.Movement{
		ShopID: "S1", ArticleID: "A1", Kind: movement.KindIn, Quantity: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, submit.Queued, out.Status)

	require.Eventually(t, func() bool { return pendingCount(t, a) == 0 }, 2*time.Second, 10*time.Millisecond)
	accepted := fake.Accepted()
	require.Len(t, accepted, 1)
	assert.Equal(t, "[Offline Sync] ", accepted[0].Reason)
}

func TestApp_Handler(t *testing.T) {
	fake := testutil.NewFakeRemote(t)
	cfg := testConfig(t, fake.URL)
	cfg.Connectivity.Mode = "online"
	a := newApp(t, cfg)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

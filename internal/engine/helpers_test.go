package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stocksync/internal/connectivity"
	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/remote"
	"github.com/roach88/stocksync/internal/store"
	"github.com/roach88/stocksync/internal/testutil"
)

type harness struct {
	path    string
	store   *store.Store
	remote  *testutil.FakeRemote
	client  *remote.Client
	monitor *connectivity.Monitor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fake := testutil.NewFakeRemote(t)
	client, err := remote.NewClient(fake.URL, remote.WithTimeout(2*time.Second))
	require.NoError(t, err)

	return &harness{
		path:    path,
		store:   st,
		remote:  fake,
		client:  client,
		monitor: connectivity.New(true),
	}
}

func (h *harness) engine(opts ...EngineOption) *Engine {
	opts = append([]EngineOption{WithDeviceID("device-1")}, opts...)
	return New(h.store, h.client, h.monitor, opts...)
}

func (h *harness) append(t *testing.T, article string, kind movement.Kind, qty int64, reason string) int64 {
	t.Helper()
	id, err := h.store.Append(context.Background(), movement.Movement{
		ShopID: "S1", ArticleID: article, Kind: kind, Quantity: qty, Reason: reason,
	})
	require.NoError(t, err)
	return id
}

func (h *harness) pending(t *testing.T) []string {
	t.Helper()
	records, err := h.store.ListPending(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ArticleID)
	}
	return out
}

func sentArticles(reqs []testutil.ReceivedRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Body.ArticleID)
	}
	return out
}

func acceptedArticles(reqs []remote.Request) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ArticleID)
	}
	return out
}

// flakyRemove wraps a queue and fails Remove a fixed number of times.
type flakyRemove struct {
	Queue
	mu       sync.Mutex
	failures int
}

func (q *flakyRemove) Remove(ctx context.Context, localID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failures > 0 {
		q.failures--
		return &store.Error{Op: "remove", Err: context.DeadlineExceeded}
	}
	return q.Queue.Remove(ctx, localID)
}

// blockingSender holds every send until released.
type blockingSender struct {
	entered chan struct{}
	release chan struct{}
}

func newBlockingSender() *blockingSender {
	return &blockingSender{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (s *blockingSender) SendMovement(ctx context.Context, req remote.Request) (remote.Response, error) {
	s.entered <- struct{}{}
	select {
	case <-s.release:
		return remote.Response{StatusCode: 200}, nil
	case <-ctx.Done():
		return remote.Response{}, &remote.TransientError{Err: ctx.Err()}
	}
}

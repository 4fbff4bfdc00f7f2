package testutil

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stocksync/internal/remote"
)

func send(t *testing.T, f *FakeRemote, req remote.Request, opts ...remote.ClientOption) (remote.Response, error) {
	t.Helper()
	c, err := remote.NewClient(f.URL, opts...)
	require.NoError(t, err)
	return c.SendMovement(context.Background(), req)
}

func TestFakeRemote_AppliesStockRules(t *testing.T) {
	f := NewFakeRemote(t)
	f.SetStock("S1", "A1", 10)

	resp, err := send(t, f, remote.Request{ShopID: "S1", ArticleID: "A1", Type: "out", Qty: 3, Reason: "sale"})
	require.NoError(t, err)
	sm, err := resp.StockMovement()
	require.NoError(t, err)
	assert.Equal(t, int64(10), sm.OldValue)
	assert.Equal(t, int64(7), sm.NewValue)

	_, err = send(t, f, remote.Request{ShopID: "S1", ArticleID: "A1", Type: "adjust", Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.Stock("S1", "A1"))

	_, err = send(t, f, remote.Request{ShopID: "S1", ArticleID: "A1", Type: "out", Qty: 5})
	assert.True(t, remote.IsPermanentRejection(err))
	assert.Len(t, f.Accepted(), 2)
	assert.Len(t, f.Requests(), 3)
}

func TestFakeRemote_Down(t *testing.T) {
	f := NewFakeRemote(t)
	f.SetDown(true)

	_, err := send(t, f, remote.Request{ShopID: "S1", ArticleID: "A1", Type: "in", Qty: 1})
	assert.True(t, errors.Is(err, remote.ErrNetworkUnavailable))

	f.SetDown(false)
	_, err = send(t, f, remote.Request{ShopID: "S1", ArticleID: "A1", Type: "in", Qty: 1})
	assert.NoError(t, err)
	assert.Len(t, f.Requests(), 2)
}

func TestFakeRemote_ScriptAndArticleRules(t *testing.T) {
	f := NewFakeRemote(t)
	f.Script(Reply{Status: http.StatusServiceUnavailable})
	f.FailArticle("A9", Reply{Status: http.StatusBadRequest, Body: `{"error":"unknown article"}`})

	_, err := send(t, f, remote.Request{ShopID: "S1", ArticleID: "A1", Type: "in", Qty: 1})
	assert.True(t, remote.IsTransient(err))

	_, err = send(t, f, remote.Request{ShopID: "S1", ArticleID: "A9", Type: "in", Qty: 1})
	var re *remote.RejectionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "unknown article", re.Message)

	f.ClearArticle("A9")
	_, err = send(t, f, remote.Request{ShopID: "S1", ArticleID: "A9", Type: "in", Qty: 1})
	assert.NoError(t, err)
}

func TestFakeRemote_RequireToken(t *testing.T) {
	f := NewFakeRemote(t)
	f.RequireToken("secret")

	_, err := send(t, f, remote.Request{ShopID: "S1", ArticleID: "A1", Type: "in", Qty: 1})
	assert.True(t, remote.IsPermanentRejection(err))

	_, err = send(t, f, remote.Request{ShopID: "S1", ArticleID: "A1", Type: "in", Qty: 1}, remote.WithToken("secret"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", f.Requests()[1].Authorization)
}

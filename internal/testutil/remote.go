package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/roach88/stocksync/internal/remote"
)

// Reply is a scripted answer from FakeRemote.
type Reply struct {
	// Status is the HTTP status to answer with. Zero means 200.
	Status int
	// Body is written verbatim when set.
	Body string
	// Drop closes the connection without answering.
	Drop bool
}

// ReceivedRequest is one request observed by FakeRemote.
type ReceivedRequest struct {
	Body          remote.Request `json:"body"`
	Authorization string         `json:"authorization,omitempty"`
	DeviceHeader  string         `json:"device_header,omitempty"`
	Status        int            `json:"status"`
}

// FakeRemote is an in-process movement endpoint.
//
// It keeps stock levels per shop and article with the same rules as the
// real service: in adds, out subtracts and fails on insufficient stock,
// adjust sets the level. Failures can be scripted per request, per article,
// or for the whole endpoint.
type FakeRemote struct {
	URL string

	srv *httptest.Server

	mu       sync.Mutex
	received []ReceivedRequest
	script   []Reply
	articles map[string]Reply
	down     bool
	stock    map[string]int64
	token    string
	nextID   int
}

// NewFakeRemote starts a fake endpoint that is closed when the test ends.
func NewFakeRemote(t testing.TB) *FakeRemote {
	t.Helper()
	f := &FakeRemote{
		articles: make(map[string]Reply),
		stock:    make(map[string]int64),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	f.URL = f.srv.URL
	t.Cleanup(f.srv.Close)
	return f
}

// RequireToken makes the fake answer 401 unless the bearer token matches.
func (f *FakeRemote) RequireToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// SetDown makes every request fail at the transport level.
func (f *FakeRemote) SetDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

// Script queues replies consumed one per request before any other rule.
func (f *FakeRemote) Script(replies ...Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, replies...)
}

// FailArticle answers every request for article with r until cleared.
func (f *FakeRemote) FailArticle(article string, r Reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articles[article] = r
}

// ClearArticle removes a FailArticle rule.
func (f *FakeRemote) ClearArticle(article string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.articles, article)
}

// SetStock sets the level of an article in a shop.
func (f *FakeRemote) SetStock(shop, article string, qty int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[stockKey(shop, article)] = qty
}

// Stock returns the level of an article in a shop.
func (f *FakeRemote) Stock(shop, article string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[stockKey(shop, article)]
}

// Requests returns every request received, including failed ones.
func (f *FakeRemote) Requests() []ReceivedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ReceivedRequest(nil), f.received...)
}

// Accepted returns the bodies of requests answered with 2xx, in order.
func (f *FakeRemote) Accepted() []remote.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []remote.Request{}
	for _, r := range f.received {
		if r.Status >= 200 && r.Status <= 299 {
			out = append(out, r.Body)
		}
	}
	return out
}

func (f *FakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	var body remote.Request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	rec := ReceivedRequest{
		Body:          body,
		Authorization: r.Header.Get("Authorization"),
		DeviceHeader:  r.Header.Get("X-Device-ID"),
	}

	reply, scripted := f.nextReply(body)
	switch {
	case f.down || (scripted && reply.Drop):
		rec.Status = 0
		f.received = append(f.received, rec)
		dropConnection(w)
		return
	case scripted:
		rec.Status = reply.status()
		f.received = append(f.received, rec)
		w.WriteHeader(rec.Status)
		_, _ = w.Write([]byte(reply.Body))
		return
	case r.URL.Path != "/"+remote.MovementPath || r.Method != http.MethodPost:
		rec.Status = http.StatusNotFound
		f.received = append(f.received, rec)
		writeJSON(w, rec.Status, map[string]string{"error": "not found"})
		return
	case f.token != "" && rec.Authorization != "Bearer "+f.token:
		rec.Status = http.StatusUnauthorized
		f.received = append(f.received, rec)
		writeJSON(w, rec.Status, map[string]string{"error": "invalid token"})
		return
	}

	key := stockKey(body.ShopID, body.ArticleID)
	oldQty := f.stock[key]
	newQty := oldQty
	switch body.Type {
	case "in":
		newQty += body.Qty
	case "out":
		if oldQty < body.Qty {
			rec.Status = http.StatusUnprocessableEntity
			f.received = append(f.received, rec)
			writeJSON(w, rec.Status, map[string]string{"error": "insufficient stock"})
			return
		}
		newQty -= body.Qty
	case "adjust":
		newQty = body.Qty
	default:
		rec.Status = http.StatusBadRequest
		f.received = append(f.received, rec)
		writeJSON(w, rec.Status, map[string]string{"error": "invalid movement type"})
		return
	}
	f.stock[key] = newQty
	f.nextID++

	rec.Status = http.StatusOK
	f.received = append(f.received, rec)
	writeJSON(w, http.StatusOK, remote.StockMovement{
		ID:        fmt.Sprintf("m-%d", f.nextID),
		ShopID:    body.ShopID,
		ArticleID: body.ArticleID,
		Type:      body.Type,
		Qty:       body.Qty,
		OldValue:  oldQty,
		NewValue:  newQty,
		Reason:    body.Reason,
		DeviceID:  body.DeviceID,
	})
}

// nextReply pops a scripted reply or returns the article rule. Caller holds mu.
func (f *FakeRemote) nextReply(body remote.Request) (Reply, bool) {
	if len(f.script) > 0 {
		r := f.script[0]
		f.script = f.script[1:]
		return r, true
	}
	if r, ok := f.articles[body.ArticleID]; ok {
		return r, true
	}
	return Reply{}, false
}

func (r Reply) status() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

func stockKey(shop, article string) string {
	return strings.Join([]string{shop, article}, "\x00")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("testutil: response writer cannot hijack")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(fmt.Sprintf("testutil: hijack: %v", err))
	}
	_ = conn.Close()
}

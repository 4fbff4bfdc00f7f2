// Package remote is the HTTP client for the stock movement endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/stocksync/internal/movement"
)

// MovementPath is the endpoint path relative to the server URL.
const MovementPath = "api/stocks/movement"

// DefaultTimeout bounds a single submission attempt.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Request is the JSON body accepted by the movement endpoint.
type Request struct {
	ShopID    string `json:"shop_id"`
	ArticleID string `json:"article_id"`
	Type      string `json:"type"`
	Qty       int64  `json:"qty"`
	Reason    string `json:"reason"`
	DeviceID  string `json:"device_id,omitempty"`
}

// NewRequest builds the wire body for a movement.
func NewRequest(m movement.Movement, deviceID string) Request {
	return Request{
		ShopID:    m.ShopID,
		ArticleID: m.ArticleID,
		Type:      string(m.Kind),
		Qty:       m.Quantity,
		Reason:    m.Reason,
		DeviceID:  deviceID,
	}
}

// Response is a successful answer from the endpoint.
//
// Body holds a JSON payload. A payload that is not JSON is kept in Text.
// Truncated is set when the payload exceeded the read limit; the kept
// prefix is in Text.
type Response struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body,omitempty"`
	Text       string          `json:"text,omitempty"`
	Truncated  bool            `json:"truncated,omitempty"`
}

// StockMovement is the movement the server recorded.
type StockMovement struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop_id"`
	ArticleID string    `json:"article_id"`
	Type      string    `json:"type"`
	Qty       int64     `json:"qty"`
	OldValue  int64     `json:"old_value"`
	NewValue  int64     `json:"new_value"`
	Reason    string    `json:"reason"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StockMovement decodes the response body.
func (r Response) StockMovement() (StockMovement, error) {
	var sm StockMovement
	if r.Truncated {
		return sm, fmt.Errorf("decode stock movement: body truncated at %d bytes", maxBodyBytes)
	}
	if len(r.Body) == 0 {
		return sm, fmt.Errorf("decode stock movement: no JSON body")
	}
	if err := json.Unmarshal(r.Body, &sm); err != nil {
		return sm, fmt.Errorf("decode stock movement: %w", err)
	}
	return sm, nil
}

// RequestEditorFn is called right before a request is sent.
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// HttpRequestDoer performs HTTP requests.
//
// The standard http.Client implements this interface.
type HttpRequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client submits movements to the remote endpoint.
type Client struct {
	// Server is the base URL, always with a trailing slash.
	Server string

	token   string
	timeout time.Duration
	client  HttpRequestDoer
	editors []RequestEditorFn
}

// ClientOption allows setting custom parameters during construction.
type ClientOption func(*Client) error

// NewClient creates a Client for the given server URL.
func NewClient(server string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", server)
	}

	c := Client{
		Server:  server,
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		if err := o(&c); err != nil {
			return nil, err
		}
	}
	if !strings.HasSuffix(c.Server, "/") {
		c.Server += "/"
	}
	if c.client == nil {
		c.client = &http.Client{}
	}
	return &c, nil
}

// WithHTTPClient overrides the default Doer. This is useful for tests.
func WithHTTPClient(doer HttpRequestDoer) ClientOption {
	return func(c *Client) error {
		c.client = doer
		return nil
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) error {
		c.token = token
		return nil
	}
}

// WithTimeout bounds each attempt. Zero keeps the default.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("timeout must not be negative: %s", d)
		}
		if d > 0 {
			c.timeout = d
		}
		return nil
	}
}

// WithRequestEditorFn adds a callback applied to every request.
func WithRequestEditorFn(fn RequestEditorFn) ClientOption {
	return func(c *Client) error {
		c.editors = append(c.editors, fn)
		return nil
	}
}

// Timeout returns the per-attempt bound.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// SendMovement posts one movement. It makes exactly one attempt, bounded by
// the client timeout.
//
// A 2xx answer returns the Response. Anything else is a *TransientError
// (no answer) or a *RejectionError (non-2xx answer).
func (c *Client) SendMovement(ctx context.Context, body Request) (Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("encode movement: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Server+MovementPath, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body.DeviceID != "" {
		req.Header.Set("X-Device-ID", body.DeviceID)
	}
	for _, edit := range c.editors {
		if err := edit(ctx, req); err != nil {
			return Response{}, fmt.Errorf("edit request: %w", err)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Response{}, transportError(fmt.Errorf("read response: %w", err))
	}
	truncated := len(raw) > maxBodyBytes
	if truncated {
		raw = raw[:maxBodyBytes]
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &RejectionError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, raw),
			Permanent:  permanentStatus(resp.StatusCode),
		}
	}

	// A 2xx is a confirmation whatever the payload looks like.
	out := Response{StatusCode: resp.StatusCode, Truncated: truncated}
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
	case !truncated && json.Valid(trimmed):
		out.Body = json.RawMessage(trimmed)
	default:
		out.Text = string(trimmed)
	}
	return out, nil
}

// errorBody covers both {"error": "..."} and RFC 7807 problem details.
type errorBody struct {
	Error  string `json:"error"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func errorMessage(status int, raw []byte) string {
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		switch {
		case eb.Error != "":
			return eb.Error
		case eb.Title != "" && eb.Detail != "":
			return eb.Title + ": " + eb.Detail
		case eb.Detail != "":
			return eb.Detail
		case eb.Title != "":
			return eb.Title
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	return http.StatusText(status)
}

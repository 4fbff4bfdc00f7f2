package movement

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind is the direction of a stock movement.
type Kind string

const (
	KindIn     Kind = "in"
	KindOut    Kind = "out"
	KindAdjust Kind = "adjust"
)

// Kinds lists every accepted kind in display order.
var Kinds = []Kind{KindIn, KindOut, KindAdjust}

// ParseKind converts user input into a Kind.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: unknown movement type %q (want in, out or adjust)", ErrInvalidMovement, s)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindIn, KindOut, KindAdjust:
		return true
	}
	return false
}

// Movement is a single stock adjustment intent as captured from the user.
//
// JSON tags match the remote endpoint body, so a Movement can be sent as-is
// once the device id is attached.
type Movement struct {
	ShopID     string    `json:"shop_id" validate:"required"`
	ArticleID  string    `json:"article_id" validate:"required"`
	Kind       Kind      `json:"type" validate:"required,oneof=in out adjust"`
	Quantity   int64     `json:"qty" validate:"gt=0"`
	Reason     string    `json:"reason"`
	CapturedAt time.Time `json:"captured_at,omitzero"`
}

// Normalize returns a copy with identifiers trimmed, free text in NFC form and
// CapturedAt in UTC.
func (m Movement) Normalize() Movement {
	m.ShopID = norm.NFC.String(strings.TrimSpace(m.ShopID))
	m.ArticleID = norm.NFC.String(strings.TrimSpace(m.ArticleID))
	m.Kind = Kind(strings.ToLower(strings.TrimSpace(string(m.Kind))))
	m.Reason = norm.NFC.String(m.Reason)
	if !m.CapturedAt.IsZero() {
		m.CapturedAt = m.CapturedAt.UTC()
	}
	return m
}

// String renders the movement for logs and CLI output.
func (m Movement) String() string {
	return fmt.Sprintf("%s %s/%s qty=%d", m.Kind, m.ShopID, m.ArticleID, m.Quantity)
}

// Record is a Movement persisted in the pending queue.
//
// LocalID is assigned by the queue on append, increases monotonically and is
// never reused. It is never sent to the remote endpoint.
type Record struct {
	LocalID int64 `json:"local_id"`
	Movement

	// Attempts counts failed replays of this record; Rejections counts the
	// subset the remote endpoint refused permanently.
	Attempts   int    `json:"attempts"`
	Rejections int    `json:"rejections"`
	LastError  string `json:"last_error,omitempty"`
}

// DeadLetter is a record removed from the pending queue after the remote
// endpoint rejected it too many times.
type DeadLetter struct {
	ID      int64 `json:"id"`
	LocalID int64 `json:"local_id"`
	Movement
	Attempts int       `json:"attempts"`
	Cause    string    `json:"cause"`
	DeadAt   time.Time `json:"dead_at"`
}

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/stocksync/internal/movement"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testMovement creates a valid movement with a fixed capture time.
func testMovement(article string, kind movement.Kind, qty int64, reason string) movement.Movement {
	return movement.Movement{
		ShopID:     "S1",
		ArticleID:  article,
		Kind:       kind,
		Quantity:   qty,
		Reason:     reason,
		CapturedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func articles(records []movement.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ArticleID)
	}
	return out
}

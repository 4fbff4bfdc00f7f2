package store

import (
	"fmt"
	"time"
)

// Timestamps are stored as RFC 3339 text in UTC with nanoseconds so rows stay
// readable with the sqlite3 shell.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

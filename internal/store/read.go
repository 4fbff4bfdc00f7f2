package store

import (
	"context"
	"database/sql"

	"github.com/roach88/stocksync/internal/movement"
)

// ListPending returns every pending record in insertion order.
// Returns an empty slice (not nil) when the queue is empty.
//
// Safe to call while Append runs: WAL readers see a consistent snapshot.
func (s *Store) ListPending(ctx context.Context) ([]movement.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT local_id, shop_id, article_id, kind, quantity, reason, captured_at, attempts, rejections, last_error
		FROM pending_movements
		ORDER BY local_id ASC
	`)
	if err != nil {
		return nil, wrap("list pending", err)
	}
	defer rows.Close()

	records := []movement.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, wrap("list pending", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list pending", err)
	}
	return records, nil
}

// Count returns the number of pending records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_movements").Scan(&n); err != nil {
		return 0, wrap("count", err)
	}
	return n, nil
}

// ListDeadLetters returns dead letters, oldest first.
func (s *Store) ListDeadLetters(ctx context.Context) ([]movement.DeadLetter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, local_id, shop_id, article_id, kind, quantity, reason, captured_at, attempts, cause, dead_at
		FROM dead_letters
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, wrap("list dead letters", err)
	}
	defer rows.Close()

	letters := []movement.DeadLetter{}
	for rows.Next() {
		var (
			dl         movement.DeadLetter
			kind       string
			capturedAt string
			deadAt     string
		)
		if err := rows.Scan(
			&dl.ID, &dl.LocalID, &dl.ShopID, &dl.ArticleID, &kind, &dl.Quantity,
			&dl.Reason, &capturedAt, &dl.Attempts, &dl.Cause, &deadAt,
		); err != nil {
			return nil, wrap("list dead letters", err)
		}
		dl.Kind = movement.Kind(kind)
		if dl.CapturedAt, err = parseTime(capturedAt); err != nil {
			return nil, wrap("list dead letters", err)
		}
		if dl.DeadAt, err = parseTime(deadAt); err != nil {
			return nil, wrap("list dead letters", err)
		}
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list dead letters", err)
	}
	return letters, nil
}

// scanRecord scans a pending_movements row into a Record.
func scanRecord(rows *sql.Rows) (movement.Record, error) {
	var (
		rec        movement.Record
		kind       string
		capturedAt string
	)
	if err := rows.Scan(
		&rec.LocalID, &rec.ShopID, &rec.ArticleID, &kind, &rec.Quantity,
		&rec.Reason, &capturedAt, &rec.Attempts, &rec.Rejections, &rec.LastError,
	); err != nil {
		return movement.Record{}, err
	}
	rec.Kind = movement.Kind(kind)

	t, err := parseTime(capturedAt)
	if err != nil {
		return movement.Record{}, err
	}
	rec.CapturedAt = t
	return rec, nil
}

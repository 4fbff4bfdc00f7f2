package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/stocksync/internal/movement"
)

// Append persists a movement at the tail of the queue and returns its
// local id. A single INSERT makes the append atomic: either the whole record
// is stored or nothing is.
//
// A zero CapturedAt is stamped with the current time.
func (s *Store) Append(ctx context.Context, m movement.Movement) (int64, error) {
	if m.CapturedAt.IsZero() {
		m.CapturedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_movements
		(shop_id, article_id, kind, quantity, reason, captured_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		m.ShopID,
		m.ArticleID,
		string(m.Kind),
		m.Quantity,
		m.Reason,
		formatTime(m.CapturedAt),
	)
	if err != nil {
		return 0, wrap("append", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("append", err)
	}
	return id, nil
}

// Remove deletes a record by local id. Removing an id that is not present
// is a no-op, so a replayed removal after a crash is harmless.
func (s *Store) Remove(ctx context.Context, localID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_movements WHERE local_id = ?", localID,
	); err != nil {
		return wrap("remove", err)
	}
	return nil
}

// Failures is the replay bookkeeping of a pending record.
type Failures struct {
	// Attempts counts every failed replay.
	Attempts int
	// Rejections counts failed replays the endpoint refused permanently.
	Rejections int
}

// RecordFailure increments the failure counters of a pending record and
// stores the last error message.
func (s *Store) RecordFailure(ctx context.Context, localID int64, msg string, permanent bool) (Failures, error) {
	rejected := 0
	if permanent {
		rejected = 1
	}

	var f Failures
	err := s.db.QueryRowContext(ctx, `
		UPDATE pending_movements
		SET attempts = attempts + 1, rejections = rejections + ?, last_error = ?
		WHERE local_id = ?
		RETURNING attempts, rejections
	`, rejected, msg, localID).Scan(&f.Attempts, &f.Rejections)
	if errors.Is(err, sql.ErrNoRows) {
		return Failures{}, wrap("record failure", fmt.Errorf("local_id %d: %w", localID, ErrNotFound))
	}
	if err != nil {
		return Failures{}, wrap("record failure", err)
	}
	return f, nil
}

// DeadLetter moves a pending record into dead_letters in one transaction.
// The record leaves the pending queue only if the copy was written.
func (s *Store) DeadLetter(ctx context.Context, localID int64, cause string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO dead_letters
			(local_id, shop_id, article_id, kind, quantity, reason, captured_at, attempts, cause, dead_at)
			SELECT local_id, shop_id, article_id, kind, quantity, reason, captured_at, attempts, ?, ?
			FROM pending_movements WHERE local_id = ?
		`, cause, formatTime(time.Now()), localID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("local_id %d: %w", localID, ErrNotFound)
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM pending_movements WHERE local_id = ?", localID)
		return err
	})
	return wrap("dead letter", err)
}

// Requeue moves a dead letter back to the tail of the pending queue with a
// fresh local id and a reset attempt counter.
func (s *Store) Requeue(ctx context.Context, deadID int64) (int64, error) {
	var localID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO pending_movements
			(shop_id, article_id, kind, quantity, reason, captured_at)
			SELECT shop_id, article_id, kind, quantity, reason, captured_at
			FROM dead_letters WHERE id = ?
		`, deadID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("dead letter %d: %w", deadID, ErrNotFound)
		}
		if localID, err = res.LastInsertId(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "DELETE FROM dead_letters WHERE id = ?", deadID)
		return err
	})
	if err != nil {
		return 0, wrap("requeue", err)
	}
	return localID, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
)

const metaDeviceID = "device_id"

// DeviceID returns the device id persisted in this queue. On first use it
// stores the value produced by generate, so every later call and every
// restart sees the same id.
func (s *Store) DeviceID(ctx context.Context, generate func() string) (string, error) {
	id, err := s.metaValue(ctx, metaDeviceID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", wrap("device id", err)
	}

	// INSERT OR IGNORE keeps the first writer's value if two processes race.
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", metaDeviceID, generate(),
	); err != nil {
		return "", wrap("device id", err)
	}

	id, err = s.metaValue(ctx, metaDeviceID)
	if err != nil {
		return "", wrap("device id", err)
	}
	return id, nil
}

func (s *Store) metaValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	return value, err
}

package engine

import (
	"github.com/google/uuid"
)

// DeviceIDGenerator produces the id a device attaches to replayed movements.
// Implemented by UUIDv7Generator (production) and testutil.FixedDeviceGenerator (tests).
type DeviceIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 device ids.
//
// The id is generated once per queue and persisted, so the creation time
// embedded in it tells when the device was first set up.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

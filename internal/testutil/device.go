package testutil

// FixedDeviceGenerator returns the same device id every time.
//
// This keeps request bodies byte-identical across runs so golden traces
// stay stable.
//
// Thread-safety: FixedDeviceGenerator is stateless and safe for concurrent use.
type FixedDeviceGenerator struct {
	id string
}

// NewFixedDeviceGenerator creates a generator for id.
// If id is empty, Generate() returns "test-device".
func NewFixedDeviceGenerator(id string) *FixedDeviceGenerator {
	if id == "" {
		id = "test-device"
	}
	return &FixedDeviceGenerator{id: id}
}

// Generate returns the fixed device id.
func (g *FixedDeviceGenerator) Generate() string {
	return g.id
}

package engine

// State is the drain state machine position.
type State int

const (
	// Idle means no pass is running and the last pass (if any) completed.
	Idle State = iota
	// Draining means a pass is in progress.
	Draining
	// Aborted means the last pass stopped on its first failure.
	Aborted
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// MarshalText renders the state in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// validTransition reports whether from -> to is an edge of the machine.
func validTransition(from, to State) bool {
	switch to {
	case Draining:
		return from == Idle || from == Aborted
	case Idle, Aborted:
		return from == Draining
	}
	return false
}

package worker

// State represents the current lifecycle state of a worker
type State int32

const (
	// StateCreated indicates the worker was created but not initialized
	StateCreated State = iota
	// StateInitialized indicates the worker was initialized but the loop
	// has not started
	StateInitialized
	// StateRunning indicates the main loop is executing
	StateRunning
	// StateStopping indicates the stop sequence is in progress
	StateStopping
	// StateStopped is the terminal state
	StateStopped
)

// String returns a string representation of the worker state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

package supervisor

// State Machine:
// Stopped -> Starting -> Running -> Stopping -> Stopped
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot for operators.
type Status struct {
	State   string  `json:"state"`
	PID     int     `json:"pid,omitempty"`
	Uptime  float64 `json:"uptime_seconds"`
	Version string  `json:"version"`
	Flavor  string  `json:"flavor"`
}

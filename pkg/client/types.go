package client

import "time"

// Status mirrors the daemon's /status payload.
type Status struct {
	State   string  `json:"state"`
	PID     int     `json:"pid,omitempty"`
	Uptime  float64 `json:"uptime_seconds"`
	Version string  `json:"version"`
	Flavor  string  `json:"flavor"`
}

// Event mirrors one /history entry.
type Event struct {
	ID     int64     `json:"id"`
	Type   string    `json:"type"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

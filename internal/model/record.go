package model

import "time"

// Record is one entry of the shared completion log: a worker finished
// one unit of CPU work and wrote its pid.
type Record struct {
	PID int32 `json:"pid"`
}

// Completion is a Record observed while streaming a log file, annotated
// with where and when it was seen.
type Completion struct {
	PID    int32     `json:"pid"`
	Source string    `json:"source"` // originating file path
	SeenAt time.Time `json:"seen_at"`
}

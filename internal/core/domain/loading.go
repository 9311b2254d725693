package domain

import "time"

// LoadingState describes an in-progress operation for a key.
type LoadingState struct {
	Key       string    `json:"key"`
	Active    bool      `json:"active"`
	Message   string    `json:"message,omitempty"`
	Progress  float64   `json:"progress,omitempty"` // 0..1
	Stage     string    `json:"stage,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

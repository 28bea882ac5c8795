package model

import "time"

// RunStatus represents the current state of a migration run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run represents one migration batch.
type Run struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	Status      RunStatus `json:"status"`
	Stats       *RunStats `json:"stats,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunStats summarizes the outcome of a run.
type RunStats struct {
	Records   int            `json:"records"`
	Assembled int            `json:"assembled"`
	Skipped   int            `json:"skipped"`
	Locales   map[string]int `json:"locales"`
	Error     string         `json:"error,omitempty"`
}

// Skip records a source record that produced no destination entry.
type Skip struct {
	ContentType string    `json:"content_type"`
	LegacyID    string    `json:"legacy_id"`
	Locale      string    `json:"locale"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// RoastRun represents the structure of a roast run in the run-status table.
type RoastRun struct {
	ID           uuid.UUID  `json:"id"`
	Handle       string     `json:"handle"`
	ProfileURL   string     `json:"profile_url"`
	Stage        string     `json:"stage"`
	Status       string     `json:"status"`
	VideoURL     *string    `json:"video_url,omitempty"`     // Set once uploaded
	ErrorCode    *string    `json:"error_code,omitempty"`    // Nullable TEXT
	ErrorMessage *string    `json:"error_message,omitempty"` // Nullable TEXT
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"` // Nullable TIMESTAMPTZ
}

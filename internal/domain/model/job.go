package model

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is final. Terminal records are
// retired to history and never mutated again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobKind keys the running-average model. The queue itself is agnostic to
// what a kind means; these are the two the demo submits.
type JobKind string

const (
	JobKindSingle JobKind = "single"
	JobKindMulti  JobKind = "multi"
)

// JobRecord is the canonical state of one generation request.
type JobRecord struct {
	ID        string    `json:"job_id"`
	SessionID string    `json:"user_session"`
	Kind      JobKind   `json:"job_type"`
	Status    JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Progress is a fraction in [0,1], reset to 0 at creation and forced to
	// 1.0 on successful completion.
	Progress    float64 `json:"progress"`
	CurrentStep string  `json:"current_step"`

	// EstimatedDuration is seconds, taken from the running-average model at
	// admission and never updated afterwards.
	EstimatedDuration float64 `json:"estimated_duration"`

	ErrorMessage string `json:"error_message,omitempty"`
}

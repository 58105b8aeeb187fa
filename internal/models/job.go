package models

import (
	"encoding/json"
	"time"
)

// JobType selects which pipeline a job runs.
type JobType string

const (
	JobTypeVerify JobType = "verify"
	JobTypeProof  JobType = "proof"
)

// JobStatus is the lifecycle state of an async job.
// Transitions: queued -> active -> completed | failed.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the pollable record of an asynchronous verify/proof execution.
// Failed jobs carry the error message; completed jobs carry the result.
type Job struct {
	ID        string          `json:"job_id"`
	Type      JobType         `json:"type"`
	Status    JobStatus       `json:"status"`
	Progress  int             `json:"progress"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// JobStats is the queue-level view exposed for operational visibility.
type JobStats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

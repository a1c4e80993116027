package worker

import (
	"time"

	"github.com/google/uuid"
)

// Priority levels for job scheduling.
type Priority int

const (
	PriorityNormal Priority = 1
	PriorityHigh   Priority = 2
)

// JobType represents the type of a job.
type JobType = string

const (
	JobPipelineRun     JobType = "pipeline.run"
	JobCorrectionsScan JobType = "corrections.scan"
	JobBackfill        JobType = "staging.backfill"
)

type Message struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	Retries   int       `json:"retries"`
}

func NewMessage(jobType string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      jobType,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
	}
}

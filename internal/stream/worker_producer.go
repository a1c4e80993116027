package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job is the wire form of a trigger.
type Job struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type Producer struct {
	stream *RedisStream
}

func NewProducer(stream *RedisStream) *Producer {
	return &Producer{stream: stream}
}

// Enqueue asks whichever worker is consuming the stream to run jobType now.
func (p *Producer) Enqueue(ctx context.Context, jobType string) (string, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := p.stream.Publish(ctx, StreamJobs, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job.ID, nil
}

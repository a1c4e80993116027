package stream

import (
	"context"
	"fmt"

	"jobtrack_worker/adapter/in/worker"

	"github.com/goccy/go-json"
)

// Submitter is the part of the worker pool the consumer feeds.
type Submitter interface {
	Submit(msg *worker.Message) bool
}

type Consumer struct {
	stream *RedisStream
	pool   Submitter
	name   string
	done   chan struct{}
}

func NewConsumer(stream *RedisStream, pool Submitter, name string) *Consumer {
	return &Consumer{
		stream: stream,
		pool:   pool,
		name:   name,
		done:   make(chan struct{}),
	}
}

// Start creates the consumer group and consumes in the background until ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.stream.CreateGroup(ctx, StreamJobs); err != nil {
		close(c.done)
		return fmt.Errorf("create consumer group: %w", err)
	}
	go func() {
		defer close(c.done)
		c.stream.Consume(ctx, StreamJobs, c.name, c.handle)
	}()
	return nil
}

// Done is closed once the consume loop has returned.
func (c *Consumer) Done() <-chan struct{} {
	return c.done
}

// handle submits the job. A trigger for a job type that is already pending is
// acknowledged anyway: the pending run covers it.
func (c *Consumer) handle(id string, data []byte) error {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		// Malformed triggers are acknowledged and dropped.
		c.stream.log.Warn().Err(err).Str("id", id).Msg("invalid job trigger")
		return nil
	}

	msg := worker.NewMessage(job.Type)
	if job.ID != "" {
		msg.ID = job.ID
	}
	msg.Priority = worker.PriorityHigh
	if !c.pool.Submit(msg) {
		c.stream.log.Debug().Str("job_type", job.Type).Msg("job already pending, trigger coalesced")
	}
	return nil
}

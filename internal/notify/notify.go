// Package notify publishes job status events over Redis pub/sub so
// downstream consumers can track transcodes without polling the bucket.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Status is a job lifecycle stage.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusTranscoding Status = "transcoding"
	StatusUploading   Status = "uploading"
	StatusFinished    Status = "finished"
	StatusFailed      Status = "failed"
)

// DefaultChannel is used when no channel is configured.
const DefaultChannel = "transcode:status"

type statusEvent struct {
	JobID  string `json:"job_id"`
	Status Status `json:"status"`
}

// Publisher emits status events. A nil Publisher is valid and publishes
// nothing, which keeps notification wiring optional.
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher connects to Redis at dsn. An empty dsn returns nil and
// disables notifications.
func NewPublisher(dsn, channel string) *Publisher {
	if dsn == "" {
		return nil
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{
		client:  redis.NewClient(&redis.Options{Addr: dsn}),
		channel: channel,
	}
}

// Publish emits one status event for the job.
func (p *Publisher) Publish(ctx context.Context, jobID string, status Status) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(statusEvent{JobID: jobID, Status: status})
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}

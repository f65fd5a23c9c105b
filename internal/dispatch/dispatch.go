// Package dispatch turns upload notifications into transcode task
// launches.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hlsmill/internal/event"
	"hlsmill/internal/launch"
	"hlsmill/internal/metrics"
	"hlsmill/internal/queue"
)

const receiveErrorPause = time.Second

// Queue is the message source. Receive blocks up to the long poll window
// and Delete acknowledges one delivery.
type Queue interface {
	Receive(ctx context.Context) ([]queue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Launcher starts one worker task per accepted record.
type Launcher interface {
	Launch(ctx context.Context, job launch.Job) error
}

// Config fixes the job fields shared by every launch.
type Config struct {
	DestBucket     string
	Region         string
	CredentialsRef string
}

// Dispatcher owns the poll loop. It deletes a message only when every
// record either launched or was rejected by validation; any launch
// failure leaves the message for redelivery.
type Dispatcher struct {
	queue    Queue
	launcher Launcher
	cfg      Config
}

// New wires a dispatcher.
func New(q Queue, l Launcher, cfg Config) *Dispatcher {
	return &Dispatcher{queue: q, launcher: l, cfg: cfg}
}

// Run polls until the context is canceled. Receive errors are logged and
// retried after a short pause; they never stop the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Msg("dispatch loop started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		messages, err := d.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("failed to receive from the queue")
			metrics.ReceiveErrors.Inc()
			time.Sleep(receiveErrorPause)
			continue
		}
		for _, msg := range messages {
			metrics.MessagesReceived.Inc()
			d.handleMessage(ctx, msg)
		}
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg queue.Message) {
	note, err := event.Parse([]byte(msg.Body))
	if err != nil {
		// Leave the message alone; redelivery and the DLQ policy decide
		// its fate.
		log.Error().Err(err).Str("messageId", msg.ID).Msg("failed to parse the notification")
		metrics.ParseFailures.Inc()
		return
	}

	if note.IsTest() {
		log.Info().Str("messageId", msg.ID).Str("service", note.Service).Msg("acknowledging test notification")
		d.deleteMessage(ctx, msg)
		return
	}

	dispatched, failed := 0, 0
	for _, record := range note.Records {
		if err := record.Validate(); err != nil {
			log.Warn().Err(err).
				Str("messageId", msg.ID).
				Str("bucket", record.Bucket.Name).
				Str("key", record.Object.Key).
				Msg("skipping invalid record")
			metrics.RecordsRejected.Inc()
			continue
		}

		job := launch.Job{
			JobID:          uuid.NewString(),
			SourceBucket:   record.Bucket.Name,
			SourceKey:      record.Object.Key,
			DestBucket:     d.cfg.DestBucket,
			Region:         d.cfg.Region,
			CredentialsRef: d.cfg.CredentialsRef,
		}
		if err := d.launcher.Launch(ctx, job); err != nil {
			failed++
			metrics.LaunchFailures.Inc()
			log.Error().Err(err).
				Str("jobId", job.JobID).
				Str("key", job.SourceKey).
				Msg("failed to launch the transcode task")
			continue
		}
		dispatched++
		metrics.RecordsDispatched.Inc()
		log.Info().
			Str("jobId", job.JobID).
			Str("bucket", job.SourceBucket).
			Str("key", job.SourceKey).
			Msg("launched transcode task")
	}

	if failed == 0 && dispatched > 0 {
		d.deleteMessage(ctx, msg)
		return
	}
	log.Warn().
		Str("messageId", msg.ID).
		Int("dispatched", dispatched).
		Int("failed", failed).
		Msg("leaving message for redelivery")
}

func (d *Dispatcher) deleteMessage(ctx context.Context, msg queue.Message) {
	if err := d.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		// Redelivery after a failed delete only causes a duplicate
		// launch, which the worker tolerates.
		log.Error().Err(err).Str("messageId", msg.ID).Msg("failed to delete the message")
		return
	}
	metrics.MessagesDeleted.Inc()
}

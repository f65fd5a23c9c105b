// Package worker runs one transcode job from source object to published
// HLS ladder.
package worker

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hlsmill/internal/config"
	"hlsmill/internal/faults"
	"hlsmill/internal/hls"
	"hlsmill/internal/ladder"
	"hlsmill/internal/notify"
	"hlsmill/internal/probe"
	"hlsmill/internal/transcode"
)

// ObjectStore moves files in and out of object storage.
type ObjectStore interface {
	Download(ctx context.Context, bucket, key, destPath string) error
	UploadFile(ctx context.Context, bucket, key, path string) error
}

// Encoder produces one rendition per call.
type Encoder interface {
	Encode(ctx context.Context, job transcode.Job) error
}

// Notifier publishes job status events.
type Notifier interface {
	Publish(ctx context.Context, jobID string, status notify.Status) error
}

// ProbeFunc inspects a local media file.
type ProbeFunc func(ctx context.Context, path string) (probe.Result, error)

// Worker executes a single job and exits. Renditions are encoded and
// uploaded strictly in ladder order; the master manifest goes up last so
// a failed job never leaves a playable entry point behind.
type Worker struct {
	cfg      config.Worker
	store    ObjectStore
	encoder  Encoder
	probe    ProbeFunc
	notifier Notifier
	catalog  []ladder.Rendition
}

// New wires a worker for one job.
func New(cfg config.Worker, store ObjectStore, encoder Encoder, prober ProbeFunc, notifier Notifier) *Worker {
	return &Worker{
		cfg:      cfg,
		store:    store,
		encoder:  encoder,
		probe:    prober,
		notifier: notifier,
		catalog:  ladder.Catalog(),
	}
}

// Run executes the job. The first error aborts the pipeline; nothing
// published so far is rolled back, but the master manifest is only
// written after every rendition landed.
func (w *Worker) Run(ctx context.Context) error {
	w.publish(ctx, notify.StatusQueued)

	if err := w.run(ctx); err != nil {
		w.publish(ctx, notify.StatusFailed)
		return err
	}

	w.publish(ctx, notify.StatusFinished)
	return nil
}

func (w *Worker) run(ctx context.Context) error {
	scratch, err := os.MkdirTemp("", "transcode")
	if err != nil {
		return faults.Wrap(faults.ErrInfra, "create scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	source := filepath.Join(scratch, "source"+strings.ToLower(path.Ext(w.cfg.SourceKey)))
	if err := w.store.Download(ctx, w.cfg.SourceBucket, w.cfg.SourceKey, source); err != nil {
		return faults.Wrap(faults.ErrInfra, "fetch source object", err)
	}
	log.Info().Str("bucket", w.cfg.SourceBucket).Str("key", w.cfg.SourceKey).Msg("fetched source object")

	src, err := w.probe(ctx, source)
	if err != nil {
		return faults.Wrap(faults.ErrMedia, "probe source", err)
	}
	log.Info().
		Float64("durationSeconds", src.DurationSeconds).
		Int("width", src.Width).
		Int("height", src.Height).
		Msg("probed source")

	plan := ladder.Plan(w.catalog, src.Width, src.Height)
	prefix := hls.OutputPrefix(w.cfg.SourceKey, w.cfg.IngestPrefix)
	padWidth := hls.PadWidth(src.DurationSeconds, hls.SegmentSeconds)
	if len(plan) == 0 {
		log.Warn().Str("outputPrefix", prefix).Msg("source below the smallest rendition, publishing empty manifest")
	} else {
		log.Info().Int("renditions", len(plan)).Str("outputPrefix", prefix).Msg("planned renditions")
	}

	w.publish(ctx, notify.StatusTranscoding)
	for _, rendition := range plan {
		outDir := filepath.Join(scratch, rendition.Name)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return faults.Wrap(faults.ErrInfra, "create rendition directory", err)
		}

		job := transcode.Job{
			InputPath:       source,
			OutputDir:       outDir,
			Rendition:       rendition,
			SegmentPadWidth: padWidth,
		}
		if err := w.encoder.Encode(ctx, job); err != nil {
			return faults.Wrap(faults.ErrMedia, "encode "+rendition.Name, err)
		}
		log.Info().Str("rendition", rendition.Name).Msg("encoded rendition")

		if err := w.uploadRendition(ctx, prefix, rendition.Name, outDir); err != nil {
			return faults.Wrap(faults.ErrUpload, "upload "+rendition.Name, err)
		}
		log.Info().Str("rendition", rendition.Name).Msg("uploaded rendition")
	}

	w.publish(ctx, notify.StatusUploading)
	manifestPath := filepath.Join(scratch, hls.MasterName)
	if err := os.WriteFile(manifestPath, []byte(hls.MasterManifest(plan)), 0o644); err != nil {
		return faults.Wrap(faults.ErrInfra, "write master manifest", err)
	}
	masterKey := hls.MasterKey(prefix)
	if err := w.store.UploadFile(ctx, w.cfg.DestBucket, masterKey, manifestPath); err != nil {
		return faults.Wrap(faults.ErrUpload, "upload master manifest", err)
	}
	log.Info().Str("key", masterKey).Msg("published master manifest")
	return nil
}

// uploadRendition pushes everything ffmpeg left in the rendition
// directory: the variant playlist plus all segments.
func (w *Worker) uploadRendition(ctx context.Context, prefix, rendition, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read rendition directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		localPath := filepath.Join(dir, entry.Name())
		key := hls.ObjectKey(prefix, rendition, entry.Name())
		g.Go(func() error {
			if err := w.store.UploadFile(gctx, w.cfg.DestBucket, key, localPath); err != nil {
				return fmt.Errorf("upload %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) publish(ctx context.Context, status notify.Status) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Publish(ctx, w.cfg.JobID, status); err != nil {
		log.Error().Err(err).Str("jobId", w.cfg.JobID).Str("status", string(status)).Msg("failed to publish the status event")
	}
}

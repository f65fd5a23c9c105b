package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"hlsmill/internal/config"
	"hlsmill/internal/notify"
	"hlsmill/internal/probe"
	"hlsmill/internal/storage"
	"hlsmill/internal/transcode"
	"hlsmill/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on process environment")
	}

	cfg, err := config.WorkerFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid worker configuration")
	}

	// One job per process, so every line carries the job id.
	log.Logger = log.With().Str("jobId", cfg.JobID).Logger()

	ffmpeg := transcode.NewFFmpeg(cfg.FFmpegPath)
	if !ffmpeg.Available() {
		log.Fatal().Str("binary", ffmpeg.Binary).Msg("ffmpeg is not available")
	}
	if !probe.Available(cfg.FFprobePath) {
		log.Fatal().Str("binary", cfg.FFprobePath).Msg("ffprobe is not available")
	}

	// A task stop sends SIGTERM; canceling the context kills any running
	// ffmpeg so the job fails fast instead of being SIGKILLed mid write.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.S3Endpoint != "" {
		awsOpts = append(awsOpts, awsconfig.WithBaseEndpoint(cfg.S3Endpoint))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load the AWS configuration")
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path style keeps local S3 stand-ins working.
		o.UsePathStyle = cfg.S3Endpoint != ""
	})

	notifier := notify.NewPublisher(cfg.RedisDSN, cfg.RedisChannel)
	defer notifier.Close()

	prober := func(ctx context.Context, path string) (probe.Result, error) {
		return probe.Inspect(ctx, cfg.FFprobePath, path)
	}

	w := worker.New(cfg, storage.New(s3Client), ffmpeg, prober, notifier)

	log.Info().Str("bucket", cfg.SourceBucket).Str("key", cfg.SourceKey).Msg("transcode job started")
	if err := w.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("transcode job failed")
	}
	log.Info().Msg("transcode job finished")
}

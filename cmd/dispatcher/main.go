package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"hlsmill/internal/config"
	"hlsmill/internal/dispatch"
	"hlsmill/internal/launch"
	"hlsmill/internal/metrics"
	"hlsmill/internal/queue"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, relying on process environment")
	}

	cfg, err := config.DispatcherFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid dispatcher configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.Region))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load the AWS configuration")
	}

	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listener started")
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			log.Error().Err(err).Msg("metrics listener stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := dispatch.New(
		queue.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.QueueURL),
		launch.NewRunner(ecs.NewFromConfig(awsCfg), launch.Options{
			Cluster:        cfg.Cluster,
			TaskDefinition: cfg.TaskDefinition,
			ContainerName:  cfg.ContainerName,
			Subnets:        cfg.Subnets,
			SecurityGroups: cfg.SecurityGroups,
			AssignPublicIP: cfg.AssignPublicIP,
		}),
		dispatch.Config{
			DestBucket:     cfg.DestBucket,
			Region:         cfg.Region,
			CredentialsRef: cfg.CredentialsRef,
		},
	)

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("dispatch loop failed")
	}
	log.Info().Msg("dispatcher stopped")
}

// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Dispatcher configures the queue polling process.
type Dispatcher struct {
	Region         string
	QueueURL       string
	DestBucket     string
	Cluster        string
	TaskDefinition string
	ContainerName  string
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
	CredentialsRef string
	MetricsAddr    string
}

// DispatcherFromEnv builds the dispatcher configuration, reporting every
// missing required variable at once.
func DispatcherFromEnv() (Dispatcher, error) {
	cfg := Dispatcher{
		Region:         os.Getenv("AWS_REGION"),
		QueueURL:       os.Getenv("QUEUE_URL"),
		DestBucket:     os.Getenv("DEST_BUCKET"),
		Cluster:        os.Getenv("ECS_CLUSTER"),
		TaskDefinition: os.Getenv("TASK_DEFINITION"),
		ContainerName:  env("CONTAINER_NAME", "worker"),
		Subnets:        envList("SUBNETS"),
		SecurityGroups: envList("SECURITY_GROUPS"),
		AssignPublicIP: envBool("ASSIGN_PUBLIC_IP", false),
		CredentialsRef: os.Getenv("CREDENTIALS_REF"),
		MetricsAddr:    env("METRICS_ADDR", ":2112"),
	}

	var missing []string
	for name, value := range map[string]string{
		"AWS_REGION":      cfg.Region,
		"QUEUE_URL":       cfg.QueueURL,
		"DEST_BUCKET":     cfg.DestBucket,
		"ECS_CLUSTER":     cfg.Cluster,
		"TASK_DEFINITION": cfg.TaskDefinition,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(cfg.Subnets) == 0 {
		missing = append(missing, "SUBNETS")
	}
	if len(missing) > 0 {
		return Dispatcher{}, missingError(missing)
	}
	return cfg, nil
}

// Worker configures a single transcode job process. The dispatcher
// injects the job fields into the task environment at launch.
type Worker struct {
	Region         string
	SourceBucket   string
	SourceKey      string
	DestBucket     string
	JobID          string
	CredentialsRef string
	IngestPrefix   string
	FFmpegPath     string
	FFprobePath    string
	S3Endpoint     string
	RedisDSN       string
	RedisChannel   string
}

// WorkerFromEnv builds the worker configuration. A missing JOB_ID gets a
// fresh id so manually started jobs still report a usable identity.
func WorkerFromEnv() (Worker, error) {
	cfg := Worker{
		Region:         os.Getenv("AWS_REGION"),
		SourceBucket:   os.Getenv("SOURCE_BUCKET"),
		SourceKey:      os.Getenv("SOURCE_KEY"),
		DestBucket:     os.Getenv("DEST_BUCKET"),
		JobID:          os.Getenv("JOB_ID"),
		CredentialsRef: os.Getenv("CREDENTIALS_REF"),
		IngestPrefix:   env("INGEST_PREFIX", "videos/"),
		FFmpegPath:     env("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:    env("FFPROBE_PATH", "ffprobe"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		RedisDSN:       os.Getenv("REDIS_DSN"),
		RedisChannel:   os.Getenv("REDIS_CHANNEL"),
	}
	if cfg.JobID == "" {
		cfg.JobID = uuid.NewString()
	}

	var missing []string
	for name, value := range map[string]string{
		"AWS_REGION":    cfg.Region,
		"SOURCE_BUCKET": cfg.SourceBucket,
		"SOURCE_KEY":    cfg.SourceKey,
		"DEST_BUCKET":   cfg.DestBucket,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Worker{}, missingError(missing)
	}
	return cfg, nil
}

func missingError(missing []string) error {
	// Map iteration order is random; keep the error message stable.
	sort.Strings(missing)
	return fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
}

func env(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

// Package launch starts one ECS task per accepted upload record.
package launch

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// Job carries everything a worker task needs to transcode one source.
// CredentialsRef is an opaque reference resolved inside the task; raw
// secrets never ride along.
type Job struct {
	JobID          string
	SourceBucket   string
	SourceKey      string
	DestBucket     string
	Region         string
	CredentialsRef string
}

// Options fixes where and how tasks run.
type Options struct {
	Cluster        string
	TaskDefinition string
	ContainerName  string
	Subnets        []string
	SecurityGroups []string
	AssignPublicIP bool
}

// Runner launches worker tasks on Fargate.
type Runner struct {
	client *ecs.Client
	opts   Options
}

// NewRunner wires a runner to a cluster and task definition.
func NewRunner(client *ecs.Client, opts Options) *Runner {
	return &Runner{client: client, opts: opts}
}

// Launch starts one task for the job. The job fields are injected as
// environment overrides on the worker container.
func (r *Runner) Launch(ctx context.Context, job Job) error {
	assignPublicIP := ecstypes.AssignPublicIpDisabled
	if r.opts.AssignPublicIP {
		assignPublicIP = ecstypes.AssignPublicIpEnabled
	}

	out, err := r.client.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:        aws.String(r.opts.Cluster),
		TaskDefinition: aws.String(r.opts.TaskDefinition),
		LaunchType:     ecstypes.LaunchTypeFargate,
		Count:          aws.Int32(1),
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        r.opts.Subnets,
				SecurityGroups: r.opts.SecurityGroups,
				AssignPublicIp: assignPublicIP,
			},
		},
		Overrides: &ecstypes.TaskOverride{
			ContainerOverrides: []ecstypes.ContainerOverride{
				{
					Name:        aws.String(r.opts.ContainerName),
					Environment: Environment(job),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("run task: %w", err)
	}
	if len(out.Failures) > 0 {
		f := out.Failures[0]
		return fmt.Errorf("run task: %s: %s", aws.ToString(f.Reason), aws.ToString(f.Detail))
	}
	if len(out.Tasks) == 0 {
		return errors.New("run task: no task started")
	}
	return nil
}

// Environment maps a job onto the worker's environment contract.
func Environment(job Job) []ecstypes.KeyValuePair {
	pairs := []ecstypes.KeyValuePair{
		{Name: aws.String("JOB_ID"), Value: aws.String(job.JobID)},
		{Name: aws.String("SOURCE_BUCKET"), Value: aws.String(job.SourceBucket)},
		{Name: aws.String("SOURCE_KEY"), Value: aws.String(job.SourceKey)},
		{Name: aws.String("DEST_BUCKET"), Value: aws.String(job.DestBucket)},
		{Name: aws.String("AWS_REGION"), Value: aws.String(job.Region)},
	}
	if job.CredentialsRef != "" {
		pairs = append(pairs, ecstypes.KeyValuePair{
			Name:  aws.String("CREDENTIALS_REF"),
			Value: aws.String(job.CredentialsRef),
		})
	}
	return pairs
}

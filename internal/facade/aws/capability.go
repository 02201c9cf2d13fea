package aws

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// Options configures the AWS capability set (spec §4.1, §6 env vars).
type Options struct {
	Region            string
	TableName         string
	Bucket            string
	LogPrefix         string
	Cluster           string
	TaskDefinition    string
	ContainerName     string
	Subnets        []string
	SecurityGroups []string
	NotifyTopicARN string // empty disables Notify

	// AccessKeyID/SecretAccessKey/SessionToken override the default credential chain
	// (env vars, shared config, instance/task role) with a static credential set —
	// used for cross-account role testing and CI runs against a scoped IAM user where
	// the ambient chain would otherwise resolve the wrong identity. Leave empty to use
	// the default chain.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// New loads the AWS credential chain (or the static override opts carries) and wires
// one facade.Capability backed by DynamoDB, S3, ECS Fargate, and SNS. CallerIdentity is
// verified up front so a misconfigured process fails at startup rather than on the
// first request.
func New(ctx context.Context, opts Options) (facade.Capability, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return facade.Capability{}, apperrors.Wrap(apperrors.RuntimeError, err, "load aws config")
	}

	stsClient := sts.NewFromConfig(cfg)
	if _, err := stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return facade.Capability{}, apperrors.Wrap(apperrors.RuntimeError, err, "verify aws caller identity")
	}

	var notify facade.Notify = noopNotify{}
	if opts.NotifyTopicARN != "" {
		notify = NewNotify(sns.NewFromConfig(cfg), opts.NotifyTopicARN)
	}

	return facade.Capability{
		Runtime: facade.AWS,
		KV:      NewKV(dynamodb.NewFromConfig(cfg), opts.TableName),
		Object:  NewObject(s3.NewFromConfig(cfg), opts.Bucket),
		Exec:    NewExec(ecs.NewFromConfig(cfg), opts.Cluster, opts.TaskDefinition, opts.ContainerName, opts.Subnets, opts.SecurityGroups),
		Logs:    NewLogs(s3.NewFromConfig(cfg), opts.Bucket, opts.LogPrefix),
		Notify:  notify,
	}, nil
}

type noopNotify struct{}

func (noopNotify) Publish(context.Context, string, []byte) error { return nil }

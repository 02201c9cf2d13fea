package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// Exec launches one Fargate task per job. The job handle is the ECS task ARN, the
// cloud-native equivalent of the PID handle the Local variant hands back.
type Exec struct {
	Client         *ecs.Client
	Cluster        string
	TaskDefinition string
	ContainerName  string
	Subnets        []string
	SecurityGroups []string
}

func NewExec(client *ecs.Client, cluster, taskDefinition, containerName string, subnets, securityGroups []string) *Exec {
	return &Exec{
		Client:         client,
		Cluster:        cluster,
		TaskDefinition: taskDefinition,
		ContainerName:  containerName,
		Subnets:        subnets,
		SecurityGroups: securityGroups,
	}
}

func (e *Exec) Start(ctx context.Context, in facade.ExecStartInput) (facade.JobHandle, error) {
	env := make([]types.KeyValuePair, 0, len(in.Env))
	for k, v := range in.Env {
		env = append(env, types.KeyValuePair{Name: aws.String(k), Value: aws.String(v)})
	}

	out, err := e.Client.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:        aws.String(e.Cluster),
		TaskDefinition: aws.String(e.TaskDefinition),
		LaunchType:     types.LaunchTypeFargate,
		Count:          aws.Int32(1),
		NetworkConfiguration: &types.NetworkConfiguration{
			AwsvpcConfiguration: &types.AwsVpcConfiguration{
				Subnets:        e.Subnets,
				SecurityGroups: e.SecurityGroups,
				AssignPublicIp: types.AssignPublicIpDisabled,
			},
		},
		Overrides: &types.TaskOverride{
			ContainerOverrides: []types.ContainerOverride{
				{Name: aws.String(e.ContainerName), Environment: env},
			},
		},
	})
	if err != nil {
		return "", translateErr(err, "run task for job %s", in.JobID)
	}
	if len(out.Tasks) == 0 {
		return "", apperrors.New(apperrors.Transient, "ecs run_task returned no tasks for job %s", in.JobID)
	}
	return facade.JobHandle(aws.ToString(out.Tasks[0].TaskArn)), nil
}

func (e *Exec) Status(ctx context.Context, handle facade.JobHandle) (facade.ExecStatus, error) {
	out, err := e.Client.DescribeTasks(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(e.Cluster),
		Tasks:   []string{string(handle)},
	})
	if err != nil {
		return "", translateErr(err, "describe task %s", handle)
	}
	if len(out.Tasks) == 0 {
		return facade.ExecLost, nil
	}
	task := out.Tasks[0]
	switch task.LastStatus {
	case nil:
		return facade.ExecPending, nil
	default:
		switch *task.LastStatus {
		case "PROVISIONING", "PENDING", "ACTIVATING":
			return facade.ExecPending, nil
		case "RUNNING", "DEACTIVATING", "STOPPING", "DEPROVISIONING":
			return facade.ExecRunning, nil
		case "STOPPED":
			if task.StopCode == types.TaskStopCodeEssentialContainerExited {
				for _, c := range task.Containers {
					if aws.ToString(c.Name) == e.ContainerName && c.ExitCode != nil && *c.ExitCode == 0 {
						return facade.ExecSucceeded, nil
					}
				}
				return facade.ExecFailed, nil
			}
			return facade.ExecLost, nil
		default:
			return facade.ExecPending, nil
		}
	}
}

func (e *Exec) Stop(ctx context.Context, handle facade.JobHandle) error {
	_, err := e.Client.StopTask(ctx, &ecs.StopTaskInput{
		Cluster: aws.String(e.Cluster),
		Task:    aws.String(string(handle)),
		Reason:  aws.String("stopped by control plane"),
	})
	return translateErr(err, "stop task %s", handle)
}

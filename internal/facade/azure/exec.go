package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/appcontainers/armappcontainers"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// Exec launches one Container Apps Job execution per job. The job handle is the
// execution name Azure assigns, the Container-App analogue of an ECS task ARN.
type Exec struct {
	JobsClient     *armappcontainers.JobsClient
	ResourceGroup  string
	JobName        string
	ContainerName  string
	SubscriptionID string
}

func NewExec(client *armappcontainers.JobsClient, resourceGroup, jobName, containerName, subscriptionID string) *Exec {
	return &Exec{
		JobsClient:     client,
		ResourceGroup:  resourceGroup,
		JobName:        jobName,
		ContainerName:  containerName,
		SubscriptionID: subscriptionID,
	}
}

func (e *Exec) Start(ctx context.Context, in facade.ExecStartInput) (facade.JobHandle, error) {
	env := make([]*armappcontainers.EnvironmentVar, 0, len(in.Env))
	for k, v := range in.Env {
		k, v := k, v
		env = append(env, &armappcontainers.EnvironmentVar{Name: &k, Value: &v})
	}

	poller, err := e.JobsClient.BeginStart(ctx, e.ResourceGroup, e.JobName, &armappcontainers.JobsClientBeginStartOptions{
		Template: &armappcontainers.JobExecutionTemplate{
			Containers: []*armappcontainers.JobExecutionContainer{
				{Name: &e.ContainerName, Env: env},
			},
		},
	})
	if err != nil {
		return "", translateErr(err, "start job execution for %s", in.JobID)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", translateErr(err, "await job execution start for %s", in.JobID)
	}
	if resp.Name == nil {
		return "", apperrors.New(apperrors.Transient, "container apps job start returned no execution name for %s", in.JobID)
	}
	return facade.JobHandle(*resp.Name), nil
}

func (e *Exec) Status(ctx context.Context, handle facade.JobHandle) (facade.ExecStatus, error) {
	execs, err := e.JobsClient.NewListJobExecutionsPager(e.ResourceGroup, e.JobName, nil).NextPage(ctx)
	if err != nil {
		return "", translateErr(err, "list job executions for %s", handle)
	}
	for _, ex := range execs.Value {
		if ex.Name == nil || *ex.Name != string(handle) {
			continue
		}
		if ex.Properties == nil || ex.Properties.Status == nil {
			return facade.ExecPending, nil
		}
		switch *ex.Properties.Status {
		case armappcontainers.JobExecutionRunningStateRunning, armappcontainers.JobExecutionRunningStateProcessing:
			return facade.ExecRunning, nil
		case armappcontainers.JobExecutionRunningStateSucceeded:
			return facade.ExecSucceeded, nil
		case armappcontainers.JobExecutionRunningStateFailed:
			return facade.ExecFailed, nil
		case armappcontainers.JobExecutionRunningStateStopped:
			return facade.ExecLost, nil
		default:
			return facade.ExecPending, nil
		}
	}
	return facade.ExecLost, nil
}

func (e *Exec) Stop(ctx context.Context, handle facade.JobHandle) error {
	poller, err := e.JobsClient.BeginStopExecution(ctx, e.ResourceGroup, e.JobName, string(handle), nil)
	if err != nil {
		return translateErr(err, "stop job execution %s", handle)
	}
	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		return translateErr(err, "await stop job execution %s", handle)
	}
	return nil
}

package azure

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/appcontainers/armappcontainers"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
)

// Options configures the Azure capability set (spec §4.1, §6 env vars).
type Options struct {
	SubscriptionID     string
	ResourceGroup      string
	CosmosEndpoint     string
	CosmosDatabase     string
	CosmosContainer    string
	StorageAccountName string
	StorageContainer   string
	StorageAccountKey  string // enables SAS presigning when set
	LogPrefix          string
	JobName            string
	JobContainerName   string
	NATSURL            string // empty disables Notify
}

// New authenticates with DefaultAzureCredential and wires one facade.Capability backed
// by Cosmos DB, Blob Storage, and Container Apps Jobs.
func New(ctx context.Context, opts Options) (facade.Capability, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return facade.Capability{}, apperrors.Wrap(apperrors.RuntimeError, err, "create azure credential")
	}

	cosmosClient, err := azcosmos.NewClient(opts.CosmosEndpoint, cred, nil)
	if err != nil {
		return facade.Capability{}, apperrors.Wrap(apperrors.RuntimeError, err, "create cosmos client")
	}
	container, err := cosmosClient.NewContainer(opts.CosmosDatabase, opts.CosmosContainer)
	if err != nil {
		return facade.Capability{}, apperrors.Wrap(apperrors.RuntimeError, err, "open cosmos container %s/%s", opts.CosmosDatabase, opts.CosmosContainer)
	}

	blobServiceURL := "https://" + opts.StorageAccountName + ".blob.core.windows.net/"
	blobClient, err := azblob.NewClient(blobServiceURL, cred, nil)
	if err != nil {
		return facade.Capability{}, apperrors.Wrap(apperrors.RuntimeError, err, "create blob client")
	}
	var sharedKeyCred *service.SharedKeyCredential
	if opts.StorageAccountKey != "" {
		sharedKeyCred, err = service.NewSharedKeyCredential(opts.StorageAccountName, opts.StorageAccountKey)
		if err != nil {
			return facade.Capability{}, apperrors.Wrap(apperrors.RuntimeError, err, "create blob shared key credential")
		}
	}

	jobsClientFactory, err := armappcontainers.NewClientFactory(opts.SubscriptionID, cred, nil)
	if err != nil {
		return facade.Capability{}, apperrors.Wrap(apperrors.RuntimeError, err, "create container apps client factory")
	}

	var notify facade.Notify = noopNotify{}
	if opts.NATSURL != "" {
		n, err := NewNotify(opts.NATSURL)
		if err != nil {
			return facade.Capability{}, err
		}
		notify = n
	}

	return facade.Capability{
		Runtime: facade.Azure,
		KV:      NewKV(container),
		Object:  NewObject(blobClient, opts.StorageContainer, sharedKeyCred),
		Exec:    NewExec(jobsClientFactory.NewJobsClient(), opts.ResourceGroup, opts.JobName, opts.JobContainerName, opts.SubscriptionID),
		Logs:    NewLogs(blobClient, opts.StorageContainer, opts.LogPrefix),
		Notify:  notify,
	}, nil
}

type noopNotify struct{}

func (noopNotify) Publish(context.Context, string, []byte) error { return nil }

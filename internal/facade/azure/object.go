package azure

import (
	"context"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// Object adapts a single Blob Storage container to facade.Object.
type Object struct {
	Client     *azblob.Client
	Container  string
	Credential *service.SharedKeyCredential // nil when using a non-SAS-capable credential
}

func NewObject(client *azblob.Client, container string, cred *service.SharedKeyCredential) *Object {
	return &Object{Client: client, Container: container, Credential: cred}
}

func (o *Object) Put(ctx context.Context, path string, body []byte) error {
	_, err := o.Client.UploadBuffer(ctx, o.Container, path, body, nil)
	return translateErr(err, "put blob %s", path)
}

func (o *Object) Get(ctx context.Context, path string) ([]byte, error) {
	resp, err := o.Client.DownloadStream(ctx, o.Container, path, nil)
	if err != nil {
		return nil, translateErr(err, "get blob %s", path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Transient, err, "read blob body %s", path)
	}
	return data, nil
}

func (o *Object) blobClient(path string) *blob.Client {
	return o.Client.ServiceClient().NewContainerClient(o.Container).NewBlobClient(path)
}

func (o *Object) Exists(ctx context.Context, path string) (bool, error) {
	_, err := o.blobClient(path).GetProperties(ctx, nil)
	if err != nil {
		wrapped := translateErr(err, "stat blob %s", path)
		if apperrors.KindOf(wrapped) == apperrors.NotFound {
			return false, nil
		}
		return false, wrapped
	}
	return true, nil
}

func (o *Object) Delete(ctx context.Context, path string) error {
	_, err := o.Client.DeleteBlob(ctx, o.Container, path, nil)
	return translateErr(err, "delete blob %s", path)
}

func (o *Object) PresignGet(_ context.Context, path string, ttl time.Duration) (string, error) {
	return o.presign(path, ttl, sas.BlobPermissions{Read: true})
}

func (o *Object) PresignPut(_ context.Context, path string, ttl time.Duration) (string, error) {
	return o.presign(path, ttl, sas.BlobPermissions{Write: true, Create: true})
}

func (o *Object) presign(path string, ttl time.Duration, perms sas.BlobPermissions) (string, error) {
	if o.Credential == nil {
		return "", apperrors.New(apperrors.RuntimeError, "presign requires a shared key credential")
	}
	start := time.Now().Add(-5 * time.Minute)
	expiry := time.Now().Add(ttl)
	url, err := o.blobClient(path).GetSASURL(perms, expiry, &blob.GetSASURLOptions{StartTime: &start})
	if err != nil {
		return "", apperrors.Wrap(apperrors.Transient, err, "presign %s", path)
	}
	return url, nil
}

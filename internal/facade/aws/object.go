package aws

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// Object adapts a single S3 bucket to facade.Object. Presigned URLs are produced with
// the SDK's request presigner rather than hand-rolled SigV4, the way sgl-project-ome's
// storage client leans on the SDK for every signed-URL path instead of reimplementing it.
type Object struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

func NewObject(client *s3.Client, bucket string) *Object {
	return &Object{Client: client, Presigner: s3.NewPresignClient(client), Bucket: bucket}
}

func (o *Object) Put(ctx context.Context, key string, data []byte) error {
	_, err := o.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return translateErr(err, "put object %s", key)
}

func (o *Object) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := o.Client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(o.Bucket), Key: aws.String(key)})
	if err != nil {
		return nil, translateErr(err, "get object %s", key)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Transient, err, "read object body %s", key)
	}
	return data, nil
}

func (o *Object) Exists(ctx context.Context, key string) (bool, error) {
	_, err := o.Client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(o.Bucket), Key: aws.String(key)})
	if err != nil {
		if apperrors.KindOf(translateErr(err, "head object %s", key)) == apperrors.NotFound {
			return false, nil
		}
		return false, translateErr(err, "head object %s", key)
	}
	return true, nil
}

func (o *Object) Delete(ctx context.Context, key string) error {
	_, err := o.Client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(o.Bucket), Key: aws.String(key)})
	return translateErr(err, "delete object %s", key)
}

func (o *Object) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := o.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", apperrors.Wrap(apperrors.Transient, err, "presign get %s", key)
	}
	return req.URL, nil
}

func (o *Object) PresignPut(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := o.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", apperrors.Wrap(apperrors.Transient, err, "presign put %s", key)
	}
	return req.URL, nil
}

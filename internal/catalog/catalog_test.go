package catalog

import (
	"context"
	"testing"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade/local"
	"github.com/infraweave-io/control-plane/internal/manifest"
)

type alwaysUnreferenced struct{}

func (alwaysUnreferenced) HasLiveReference(context.Context, string, string, string, string) (bool, error) {
	return false, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	capability, err := local.New(local.Options{ObjectRoot: t.TempDir(), PresignBaseURL: "http://local"})
	if err != nil {
		t.Fatalf("new local capability: %v", err)
	}
	return &Service{KV: capability.KV, Object: capability.Object}
}

func testModule(version string) *manifest.ModuleManifest {
	return &manifest.ModuleManifest{
		APIVersion: "infraweave.io/v1",
		Kind:       "Module",
		Metadata:   manifest.Metadata{Name: "s3-bucket"},
		Spec: manifest.ModuleSpec{
			ModuleName: "S3Bucket",
			Version:    version,
			Inputs:     []manifest.Variable{{Name: "bucketName", Type: manifest.TypeString}},
		},
	}
}

func TestPublishThenGetByVersionRoundTrips(t *testing.T) {
	svc := newTestService(t)
	in := PublishInput{Track: "dev", Name: "S3Bucket", RawSource: []byte("zip-bytes")}

	published, err := svc.PublishModule(context.Background(), in, testModule("0.1.0-dev"), nil, alwaysUnreferenced{})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	got, err := svc.GetByVersion(context.Background(), KindModule, "dev", "S3Bucket", "0.1.0-dev")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.RootDigest != published.RootDigest {
		t.Fatalf("expected matching digest, got %s vs %s", got.RootDigest, published.RootDigest)
	}
	if got.Deprecated {
		t.Fatal("expected fresh publish to not be deprecated")
	}
}

func TestGetByVersionRestoresInputsOutputsAndProviders(t *testing.T) {
	svc := newTestService(t)
	mod := testModule("0.1.0-dev")
	mod.Spec.Outputs = []manifest.Variable{{Name: "bucketArn", Type: manifest.TypeString}}
	mod.Spec.Providers = []manifest.ProviderRequirement{{Name: "aws", Version: ">= 5.0, < 6.0"}}

	in := PublishInput{Track: "dev", Name: "S3Bucket", RawSource: []byte("zip-bytes")}
	if _, err := svc.PublishModule(context.Background(), in, mod, nil, alwaysUnreferenced{}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	got, err := svc.GetByVersion(context.Background(), KindModule, "dev", "S3Bucket", "0.1.0-dev")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Inputs) != 1 || got.Inputs[0].Name != "bucketName" {
		t.Fatalf("expected inputs to round-trip, got %+v", got.Inputs)
	}
	if len(got.Outputs) != 1 || got.Outputs[0].Name != "bucketArn" {
		t.Fatalf("expected outputs to round-trip, got %+v", got.Outputs)
	}
	if len(got.Providers) != 1 || got.Providers[0].Name != "aws" {
		t.Fatalf("expected providers to round-trip, got %+v", got.Providers)
	}
}

func TestPublishSetsLatestPointer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	in := func(v string) PublishInput { return PublishInput{Track: "dev", Name: "S3Bucket", RawSource: []byte(v)} }

	if _, err := svc.PublishModule(ctx, in("0.1.0-dev"), testModule("0.1.0-dev"), nil, alwaysUnreferenced{}); err != nil {
		t.Fatalf("publish 0.1.0-dev: %v", err)
	}
	if _, err := svc.PublishModule(ctx, in("0.2.0-dev"), testModule("0.2.0-dev"), nil, alwaysUnreferenced{}); err != nil {
		t.Fatalf("publish 0.2.0-dev: %v", err)
	}

	latest, err := svc.GetLatest(ctx, KindModule, "dev", "S3Bucket")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest.Version != "0.2.0-dev" {
		t.Fatalf("expected latest 0.2.0-dev, got %s", latest.Version)
	}
}

func TestRepublishStableIsAlreadyExists(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	in := PublishInput{Track: "stable", Name: "S3Bucket", RawSource: []byte("v1")}

	if _, err := svc.PublishModule(ctx, in, testModule("1.0.0"), nil, alwaysUnreferenced{}); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	_, err := svc.PublishModule(ctx, in, testModule("1.0.0"), nil, alwaysUnreferenced{})
	if apperrors.KindOf(err) != apperrors.AlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestDeprecateFlagsVersion(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	in := PublishInput{Track: "dev", Name: "S3Bucket", RawSource: []byte("v1")}

	if _, err := svc.PublishModule(ctx, in, testModule("0.1.0-dev"), nil, alwaysUnreferenced{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := svc.Deprecate(ctx, KindModule, "dev", "S3Bucket", "0.1.0-dev"); err != nil {
		t.Fatalf("deprecate: %v", err)
	}
	got, err := svc.GetByVersion(ctx, KindModule, "dev", "S3Bucket", "0.1.0-dev")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Deprecated {
		t.Fatal("expected version to be deprecated")
	}
}

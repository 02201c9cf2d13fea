package registry

import (
	"context"
	"testing"

	"github.com/infraweave-io/control-plane/internal/facade/local"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	kv := local.NewKVStore()
	return New(kv)
}

func TestUpsertThenGetRoundTrips(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	d := Deployment{
		Project: "p1", Region: "us-east-1", Namespace: "default", Name: "demo",
		Track: "stable", ModuleName: "S3Bucket", Version: "0.1.0", Kind: "Module",
		Outputs: map[string]any{"bucketName": "b-123"},
		Status:  StatusReady,
	}
	if err := r.Upsert(ctx, d, "op-1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, found, err := r.Get(ctx, "p1", "us-east-1", "default", "demo")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if got.Outputs["bucketName"] != "b-123" {
		t.Fatalf("expected bucketName output, got %v", got.Outputs)
	}
	if got.Status != StatusReady {
		t.Fatalf("expected Ready status, got %s", got.Status)
	}
}

func TestMarkDeletedTombstones(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	d := Deployment{Project: "p1", Region: "us-east-1", Namespace: "default", Name: "demo"}
	if err := r.Upsert(ctx, d, "op-1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := r.MarkDeleted(ctx, "p1", "us-east-1", "default", "demo", "op-2"); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}
	got, _, err := r.Get(ctx, "p1", "us-east-1", "default", "demo")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Deleted || got.Status != StatusDeleted {
		t.Fatalf("expected tombstoned deployment, got %+v", got)
	}
}

func TestReadOutputsForCrossDeploymentReference(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	d := Deployment{
		Project: "p1", Region: "us-east-1", Namespace: "default", Name: "a",
		Outputs: map[string]any{"arn": "arn:x"},
	}
	if err := r.Upsert(ctx, d, "op-1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	outputs, found, err := r.ReadOutputs(ctx, "p1", "us-east-1", "a")
	if err != nil || !found {
		t.Fatalf("read outputs: found=%v err=%v", found, err)
	}
	if outputs["arn"] != "arn:x" {
		t.Fatalf("expected arn output, got %v", outputs)
	}
}

func TestListByProjectRegion(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b"} {
		if err := r.Upsert(ctx, Deployment{Project: "p1", Region: "us-east-1", Namespace: "default", Name: name}, "op-"+name); err != nil {
			t.Fatalf("upsert %s: %v", name, err)
		}
	}
	deployments, err := r.ListByProjectRegion(ctx, "p1", "us-east-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(deployments) != 2 {
		t.Fatalf("expected 2 deployments, got %d", len(deployments))
	}
}

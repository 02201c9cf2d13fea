package app

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/infraweave-io/control-plane/internal/catalog"
	"github.com/infraweave-io/control-plane/internal/config"
	"github.com/infraweave-io/control-plane/internal/events"
	"github.com/infraweave-io/control-plane/internal/facade"
	"github.com/infraweave-io/control-plane/internal/facade/local"
	"github.com/infraweave-io/control-plane/internal/manifest"
	"github.com/infraweave-io/control-plane/internal/orchestrator"
	"github.com/infraweave-io/control-plane/internal/registry"
)

// succeedingExec is a minimal facade.Exec double that completes every job
// immediately, so RunClaim's orchestrator pass can be exercised without spawning a
// real runner subprocess.
type succeedingExec struct{}

func (succeedingExec) Start(_ context.Context, _ facade.ExecStartInput) (facade.JobHandle, error) {
	return "handle-1", nil
}

func (succeedingExec) Status(_ context.Context, _ facade.JobHandle) (facade.ExecStatus, error) {
	return facade.ExecSucceeded, nil
}

func (succeedingExec) Stop(_ context.Context, _ facade.JobHandle) error { return nil }

func newTestApp(t *testing.T) *App {
	t.Helper()
	kv := local.NewKVStore()
	objStore, err := local.New(local.Options{ObjectRoot: t.TempDir(), PresignBaseURL: "http://localhost/objects", RunnerPath: "true"})
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	cap := facade.Capability{Runtime: facade.Local, KV: kv, Object: objStore.Object, Exec: succeedingExec{}}

	reg := registry.New(kv)
	cat := &catalog.Service{KV: kv, Object: cap.Object}
	evts := events.New(kv)
	orch := orchestrator.New(cap, reg, evts, zap.NewNop())
	orch.LockTimeout = 2 * time.Second

	return &App{
		Config:        &config.Config{LockTimeout: 2 * time.Second, Cloud: facade.Local},
		Capability:    cap,
		Catalog:       cat,
		CatalogReader: catalog.AsCatalogReader{Service: cat},
		Registry:      reg,
		Events:        evts,
		Orchestrator:  orch,
		Logger:        zap.NewNop(),
	}
}

const moduleManifest = `
apiVersion: infraweave.io/v1
kind: Module
metadata:
  name: s3-bucket
spec:
  moduleName: s3-bucket
  version: "1.0.0"
  inputs:
    - name: bucketName
      type: string
`

func publishTestModule(t *testing.T, a *App) {
	t.Helper()
	mod, err := manifest.ParseModule([]byte(moduleManifest))
	if err != nil {
		t.Fatalf("parse module: %v", err)
	}
	if _, err := a.Catalog.PublishModule(context.Background(), catalog.PublishInput{
		Track: "stable", Name: "s3-bucket", Version: "1.0.0", RawSource: []byte("fake-zip"),
	}, mod, nil, a.Registry); err != nil {
		t.Fatalf("publish module: %v", err)
	}
}

func TestRunClaimResolvesAndMarksDeploymentReady(t *testing.T) {
	a := newTestApp(t)
	publishTestModule(t, a)

	claim := &manifest.Claim{
		APIVersion: "infraweave.io/v1", Kind: "s3-bucket",
		Metadata: manifest.Metadata{Name: "demo", Namespace: "proj1"},
		Spec: manifest.ClaimSpec{
			ModuleVersion: "1.0.0", Region: "us-east-1",
			Variables: map[string]any{"bucketName": "b-1"},
		},
	}

	if err := a.RunClaim(context.Background(), "alice", "sha1", "repo", "proj1", claim); err != nil {
		t.Fatalf("run claim: %v", err)
	}

	d, found, err := a.Registry.Get(context.Background(), "proj1", "us-east-1", "proj1", "demo")
	if err != nil {
		t.Fatalf("get deployment: %v", err)
	}
	if !found {
		t.Fatal("expected deployment to be registered")
	}
	if d.Status != registry.StatusReady {
		t.Fatalf("expected Ready status, got %s", d.Status)
	}
	if d.GitCommitter != "alice" {
		t.Fatalf("expected committer alice, got %q", d.GitCommitter)
	}
}

func TestRunClaimUsesAuthorizedProjectOverClaimNamespace(t *testing.T) {
	a := newTestApp(t)
	publishTestModule(t, a)

	// The claim names metadata.namespace "other-project", but the caller was only
	// authorized (by the router) for "proj1" — the deployment must land under the
	// authorized project, not whatever the claim body claims.
	claim := &manifest.Claim{
		APIVersion: "infraweave.io/v1", Kind: "s3-bucket",
		Metadata: manifest.Metadata{Name: "demo", Namespace: "other-project"},
		Spec: manifest.ClaimSpec{
			ModuleVersion: "1.0.0", Region: "us-east-1",
			Variables: map[string]any{"bucketName": "b-1"},
		},
	}

	if err := a.RunClaim(context.Background(), "alice", "sha1", "repo", "proj1", claim); err != nil {
		t.Fatalf("run claim: %v", err)
	}

	if _, found, _ := a.Registry.Get(context.Background(), "other-project", "us-east-1", "other-project", "demo"); found {
		t.Fatal("expected no deployment written under the claim's unauthorized namespace")
	}
	d, found, err := a.Registry.Get(context.Background(), "proj1", "us-east-1", "other-project", "demo")
	if err != nil {
		t.Fatalf("get deployment: %v", err)
	}
	if !found {
		t.Fatal("expected deployment registered under the authorized project")
	}
	if d.Status != registry.StatusReady {
		t.Fatalf("expected Ready status, got %s", d.Status)
	}
}

func TestEnqueueDriftReRunsLastKnownInputs(t *testing.T) {
	a := newTestApp(t)
	publishTestModule(t, a)

	d := &registry.Deployment{
		Project: "proj1", Region: "us-east-1", Namespace: "proj1", Name: "demo",
		ModuleName: "s3-bucket", Version: "1.0.0", Kind: "Module",
		Inputs: map[string]any{"bucketName": "b-1"}, DriftEnabled: true,
	}
	if err := a.EnqueueDrift(context.Background(), d); err != nil {
		t.Fatalf("enqueue drift: %v", err)
	}

	got, found, err := a.Registry.Get(context.Background(), "proj1", "us-east-1", "proj1", "demo")
	if err != nil {
		t.Fatalf("get deployment: %v", err)
	}
	if !found || got.Status != registry.StatusReady {
		t.Fatalf("expected drift re-run to leave deployment Ready, got %+v", got)
	}
}

func TestListNamesReturnsPublishedModule(t *testing.T) {
	a := newTestApp(t)
	publishTestModule(t, a)

	names, err := a.Catalog.ListNames(context.Background(), catalog.KindModule)
	if err != nil {
		t.Fatalf("list names: %v", err)
	}
	if len(names) != 1 || names[0] != "s3-bucket" {
		t.Fatalf("expected [s3-bucket], got %v", names)
	}
}

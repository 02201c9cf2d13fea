package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
	"github.com/infraweave-io/control-plane/internal/facade/local"
	"github.com/infraweave-io/control-plane/internal/registry"
	"github.com/infraweave-io/control-plane/internal/resolver"
)

// fakeExec is a scripted facade.Exec double: Status returns ExecRunning for
// runningTicks polls before settling on the configured terminal status.
type fakeExec struct {
	mu           sync.Mutex
	startErr     error
	terminal     facade.ExecStatus
	runningTicks int
	polls        int
	stopped      bool
}

func (f *fakeExec) Start(_ context.Context, _ facade.ExecStartInput) (facade.JobHandle, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	return "handle-1", nil
}

func (f *fakeExec) Status(_ context.Context, _ facade.JobHandle) (facade.ExecStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.polls < f.runningTicks {
		f.polls++
		return facade.ExecRunning, nil
	}
	return f.terminal, nil
}

func (f *fakeExec) Stop(_ context.Context, _ facade.JobHandle) error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

type recordedEvent struct {
	kind    string
	payload map[string]any
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEvents) Record(_ context.Context, _ string, kind string, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{kind: kind, payload: payload})
	return nil
}

func newTestOrchestrator(t *testing.T, exec facade.Exec) (*Orchestrator, *fakeEvents) {
	t.Helper()
	kv := local.NewKVStore()
	capability := facade.Capability{Runtime: facade.Local, KV: kv, Exec: exec}
	events := &fakeEvents{}
	o := New(capability, registry.New(kv), events, nil)
	o.LockTimeout = 2 * time.Second
	return o, events
}

func testPlan() *resolver.ResolvedPlan {
	return &resolver.ResolvedPlan{RootArtifactDigest: "sha256:abc", InputMap: map[string]any{"bucketName": "b-1"}}
}

func TestRunSucceedsAndMarksDeploymentReady(t *testing.T) {
	exec := &fakeExec{terminal: facade.ExecSucceeded, runningTicks: 1}
	o, events := newTestOrchestrator(t, exec)

	job := &Job{ID: "job-1", DeploymentID: "demo", Project: "p1", Region: "us-east-1", StateKey: "demo", Event: EventApply}
	d := &registry.Deployment{Project: "p1", Region: "us-east-1", Namespace: "default", Name: "demo"}

	if err := o.Run(context.Background(), job, testPlan(), d); err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.Phase != PhaseSucceeded {
		t.Fatalf("expected Succeeded phase, got %s", job.Phase)
	}
	if d.Status != registry.StatusReady {
		t.Fatalf("expected Ready status, got %s", d.Status)
	}
	if len(events.events) == 0 || events.events[0].kind != "job.started" {
		t.Fatalf("expected job.started event to be recorded first, got %+v", events.events)
	}
}

func TestRunPreservesOutputsWrittenByRunnerDuringFinalize(t *testing.T) {
	exec := &fakeExec{terminal: facade.ExecSucceeded, runningTicks: 1}
	o, _ := newTestOrchestrator(t, exec)

	job := &Job{ID: "job-6", DeploymentID: "demo", Project: "p1", Region: "us-east-1", StateKey: "demo", Event: EventApply}
	d := &registry.Deployment{Project: "p1", Region: "us-east-1", Namespace: "default", Name: "demo"}

	// Seed the registry row the way cmd/runner's Registry.UpdateOutputs call does
	// before the runner container exits, simulating the race finalize must not lose.
	if err := o.Registry.Upsert(context.Background(), *d, "seed"); err != nil {
		t.Fatalf("seed deployment: %v", err)
	}
	if err := o.Registry.UpdateOutputs(context.Background(), "p1", "us-east-1", "default", "demo",
		map[string]any{"bucketName": "b-123"}, "seed-outputs"); err != nil {
		t.Fatalf("seed outputs: %v", err)
	}

	if err := o.Run(context.Background(), job, testPlan(), d); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, found, err := o.Registry.Get(context.Background(), "p1", "us-east-1", "default", "demo")
	if err != nil || !found {
		t.Fatalf("get deployment: found=%v err=%v", found, err)
	}
	if got.Outputs["bucketName"] != "b-123" {
		t.Fatalf("expected finalize to preserve runner-written outputs, got %+v", got.Outputs)
	}
}

func TestRunDestroyTombstonesDeployment(t *testing.T) {
	exec := &fakeExec{terminal: facade.ExecSucceeded, runningTicks: 0}
	o, _ := newTestOrchestrator(t, exec)

	job := &Job{ID: "job-2", DeploymentID: "demo", Project: "p1", Region: "us-east-1", StateKey: "demo", Event: EventDestroy}
	d := &registry.Deployment{Project: "p1", Region: "us-east-1", Namespace: "default", Name: "demo"}

	if err := o.Run(context.Background(), job, testPlan(), d); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !d.Deleted || d.Status != registry.StatusDeleted {
		t.Fatalf("expected tombstoned deployment, got %+v", d)
	}
}

func TestRunFailsWhenRunnerFails(t *testing.T) {
	exec := &fakeExec{terminal: facade.ExecFailed, runningTicks: 0}
	o, _ := newTestOrchestrator(t, exec)

	job := &Job{ID: "job-3", DeploymentID: "demo", Project: "p1", Region: "us-east-1", StateKey: "demo", Event: EventApply}
	d := &registry.Deployment{Project: "p1", Region: "us-east-1", Namespace: "default", Name: "demo"}

	if err := o.Run(context.Background(), job, testPlan(), d); err != nil {
		t.Fatalf("run: %v", err)
	}
	if d.Status != registry.StatusFailed {
		t.Fatalf("expected Failed status, got %s", d.Status)
	}
}

func TestRunFailsWhenLockHeld(t *testing.T) {
	exec := &fakeExec{terminal: facade.ExecSucceeded}
	o, _ := newTestOrchestrator(t, exec)
	o.LockTimeout = 500 * time.Millisecond

	lockPK := "LOCK#p1#us-east-1#demo"
	if err := o.Capability.KV.TransactWrite(context.Background(), []facade.Write{{
		Put: &facade.Item{PK: lockPK, SK: "-", Attributes: map[string]any{"owner": "other-job"}},
	}}, "seed-lock"); err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	job := &Job{ID: "job-4", DeploymentID: "demo", Project: "p1", Region: "us-east-1", StateKey: "demo", Event: EventApply}
	d := &registry.Deployment{Project: "p1", Region: "us-east-1", Namespace: "default", Name: "demo"}

	err := o.Run(context.Background(), job, testPlan(), d)
	if apperrors.KindOf(err) != apperrors.Busy {
		t.Fatalf("expected Busy error, got %v", err)
	}
	if job.Phase != PhaseFailed {
		t.Fatalf("expected Failed phase, got %s", job.Phase)
	}
}

func TestRunFailsAfterLaunchRetriesExhausted(t *testing.T) {
	exec := &fakeExec{startErr: apperrors.New(apperrors.Transient, "runner capacity exhausted")}
	o, _ := newTestOrchestrator(t, exec)

	job := &Job{ID: "job-5", DeploymentID: "demo", Project: "p1", Region: "us-east-1", StateKey: "demo", Event: EventApply}
	d := &registry.Deployment{Project: "p1", Region: "us-east-1", Namespace: "default", Name: "demo"}

	err := o.Run(context.Background(), job, testPlan(), d)
	if apperrors.KindOf(err) != apperrors.Transient {
		t.Fatalf("expected Transient error, got %v", err)
	}
}

package drift

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/infraweave-io/control-plane/internal/registry"
)

type fakeScanner struct {
	byScope map[string][]*registry.Deployment
}

func (f *fakeScanner) ListByProjectRegion(_ context.Context, project, region string) ([]*registry.Deployment, error) {
	return f.byScope[project+"/"+region], nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []string
}

func (f *fakeEnqueuer) EnqueueDrift(_ context.Context, d *registry.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, d.Name)
	return nil
}

func TestSweepEnqueuesOnlyDueDriftEnabledDeployments(t *testing.T) {
	now := time.Now()
	scanner := &fakeScanner{byScope: map[string][]*registry.Deployment{
		"p1/us-east-1": {
			{Name: "due", DriftEnabled: true, DriftNextEpoch: now.Add(-time.Minute).Unix()},
			{Name: "not-due", DriftEnabled: true, DriftNextEpoch: now.Add(time.Hour).Unix()},
			{Name: "disabled", DriftEnabled: false, DriftNextEpoch: now.Add(-time.Minute).Unix()},
			{Name: "deleted", DriftEnabled: true, DriftNextEpoch: now.Add(-time.Minute).Unix(), Deleted: true},
		},
	}}
	enqueuer := &fakeEnqueuer{}
	c := New(scanner, enqueuer, []ProjectRegion{{Project: "p1", Region: "us-east-1"}}, 4, nil)
	c.now = func() time.Time { return now }

	if err := c.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(enqueuer.enqueued) != 1 || enqueuer.enqueued[0] != "due" {
		t.Fatalf("expected only 'due' to be enqueued, got %v", enqueuer.enqueued)
	}
}

func TestNextEpochComputesFutureEpoch(t *testing.T) {
	now := time.Unix(1000, 0)
	epoch, err := NextEpoch("1h", now)
	if err != nil {
		t.Fatalf("next epoch: %v", err)
	}
	if epoch != now.Add(time.Hour).Unix() {
		t.Fatalf("expected epoch %d, got %d", now.Add(time.Hour).Unix(), epoch)
	}
}

func TestNextEpochRejectsInvalidInterval(t *testing.T) {
	if _, err := NextEpoch("tomorrow", time.Now()); err == nil {
		t.Fatal("expected error for invalid interval")
	}
}

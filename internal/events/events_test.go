package events

import (
	"context"
	"testing"

	"github.com/infraweave-io/control-plane/internal/facade/local"
)

func TestRecordThenListRoundTrips(t *testing.T) {
	kv := local.NewKVStore()
	r := New(kv)
	ctx := context.Background()

	if err := r.Record(ctx, "dep-1", "job.started", map[string]any{"event": "apply"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := r.Record(ctx, "dep-1", "job.finished", map[string]any{"phase": "Succeeded"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := r.List(ctx, "dep-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Kind != "job.started" || got[1].Kind != "job.finished" {
		t.Fatalf("expected chronological order, got %+v", got)
	}
}

func TestRecordChangePersistsSummary(t *testing.T) {
	kv := local.NewKVStore()
	r := New(kv)
	ctx := context.Background()

	if err := r.RecordChange(ctx, "dep-1", "job-1", map[string]any{"added": 2}); err != nil {
		t.Fatalf("record change: %v", err)
	}
}

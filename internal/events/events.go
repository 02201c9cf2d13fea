// Package events implements the append-only event/change log the orchestrator and
// router write to (spec §3 "Event", §6 persisted layout "EVENT#…"/"CHANGE#…").
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/infraweave-io/control-plane/internal/facade"
)

// Event is one materialized row under a deployment's EVENT# partition.
type Event struct {
	ID        string
	Kind      string
	Payload   map[string]any
	Recorded  time.Time
}

// Recorder persists events and change records through the KV capability, satisfying
// orchestrator.EventRecorder.
type Recorder struct {
	KV facade.KV
}

func New(kv facade.KV) *Recorder {
	return &Recorder{KV: kv}
}

// Record appends one event row under the deployment's EVENT# partition (spec §4.4/§4.5).
func (r *Recorder) Record(ctx context.Context, deploymentID string, kind string, payload map[string]any) error {
	now := time.Now()
	id := uuid.NewString()
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	item := facade.Item{
		PK: eventPK(deploymentID),
		SK: fmt.Sprintf("%020d#%s", now.UnixNano(), id),
		Attributes: map[string]any{
			"id":       id,
			"kind":     kind,
			"payload":  string(raw),
			"recorded": now.Unix(),
		},
	}
	return r.KV.Put(ctx, item, id)
}

// RecordChange persists a per-deployment change record — the diff/outcome summary a
// `deployment describe`/CLI consumer reads back (spec §6 "CHANGE#…" partition).
func (r *Recorder) RecordChange(ctx context.Context, deploymentID, jobID string, summary map[string]any) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	item := facade.Item{
		PK: changePK(deploymentID),
		SK: jobID,
		Attributes: map[string]any{
			"jobId":   jobID,
			"summary": string(raw),
			"at":      time.Now().Unix(),
		},
	}
	return r.KV.Put(ctx, item, jobID)
}

// List returns every event recorded for a deployment, oldest first (lexical SK order).
func (r *Recorder) List(ctx context.Context, deploymentID string, limit int) ([]Event, error) {
	items, err := r.KV.Query(ctx, facade.QueryInput{PK: eventPK(deploymentID), Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(items))
	for _, item := range items {
		var payload map[string]any
		if raw, ok := item.Attributes["payload"].(string); ok {
			_ = json.Unmarshal([]byte(raw), &payload)
		}
		recordedAt := int64(0)
		if v, ok := item.Attributes["recorded"].(int64); ok {
			recordedAt = v
		}
		out = append(out, Event{
			ID:       stringAttr(item.Attributes, "id"),
			Kind:     stringAttr(item.Attributes, "kind"),
			Payload:  payload,
			Recorded: time.Unix(recordedAt, 0),
		})
	}
	return out, nil
}

func eventPK(deploymentID string) string  { return "EVENT#" + deploymentID }
func changePK(deploymentID string) string { return "CHANGE#" + deploymentID }

func stringAttr(attrs map[string]any, key string) string {
	v, _ := attrs[key].(string)
	return v
}

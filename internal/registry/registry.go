// Package registry implements the deployment registry (spec §4.5): the
// source-of-truth projection of each named deployment's last-reconciled state.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
	"github.com/infraweave-io/control-plane/internal/graph"
)

// Status mirrors the job-driven lifecycle a deployment last observed; it is the
// condition-style status reporting SPEC_FULL.md adds on top of spec §4.4's job state
// machine (see DESIGN.md).
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusReady     Status = "Ready"
	StatusFailed    Status = "Failed"
	StatusDeleted   Status = "Deleted"
)

// Condition is one timestamped status observation, in the style of a Kubernetes
// resource's status.conditions array.
type Condition struct {
	Type    Status    `json:"type"`
	Reason  string    `json:"reason,omitempty"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Deployment is the registry row described in spec §3 "Deployment".
type Deployment struct {
	Project      string
	Region       string
	Namespace    string
	Name         string
	Track        string
	ModuleName   string
	Version      string
	Kind         string // "Module" or "Stack"
	Inputs       map[string]any
	Outputs      map[string]any
	Status       Status
	Conditions   []Condition
	LastJobID    string
	Deleted      bool
	DriftEnabled bool
	DriftNextEpoch int64
	DependencyRefs []string
	GitCommitter string
	GitSHA       string
	GitRepo      string
}

const (
	moduleIndex  = "MODULE_INDEX"
	deletedIndex = "DELETED_INDEX"
)

func pk(project, region string) string { return fmt.Sprintf("DEPLOYMENT#%s#%s", project, region) }
func sk(namespace, name string) string { return fmt.Sprintf("%s#%s", namespace, name) }

// Registry adapts facade.KV to the operations in spec §4.5.
type Registry struct {
	KV facade.KV
}

func New(kv facade.KV) *Registry {
	return &Registry{KV: kv}
}

// Upsert writes a deployment row with a single KV Put, not a transaction. Its callers
// are the orchestrator's finalize step, MarkDeleted and UpdateOutputs.
func (r *Registry) Upsert(ctx context.Context, d Deployment, operationID string) error {
	item, err := toItem(d)
	if err != nil {
		return err
	}
	return r.KV.Put(ctx, item, operationID)
}

func (r *Registry) Get(ctx context.Context, project, region, namespace, name string) (*Deployment, bool, error) {
	item, found, err := r.KV.Get(ctx, pk(project, region), sk(namespace, name))
	if err != nil || !found {
		return nil, found, err
	}
	d, err := fromItem(item)
	return d, true, err
}

func (r *Registry) ListByProjectRegion(ctx context.Context, project, region string) ([]*Deployment, error) {
	items, err := r.KV.Query(ctx, facade.QueryInput{PK: pk(project, region)})
	if err != nil {
		return nil, err
	}
	return fromItems(items)
}

func (r *Registry) ListByModule(ctx context.Context, track, moduleName, version string) ([]*Deployment, error) {
	items, err := r.KV.Query(ctx, facade.QueryInput{
		PK:        fmt.Sprintf("%s#%s#%s", track, moduleName, version),
		IndexName: moduleIndex,
	})
	if err != nil {
		return nil, err
	}
	return fromItems(items)
}

// MarkDeleted tombstones a deployment (spec §4.4 "Finalizing" destroy path): retained
// but flagged, until a project-level purger removes it.
func (r *Registry) MarkDeleted(ctx context.Context, project, region, namespace, name, operationID string) error {
	d, found, err := r.Get(ctx, project, region, namespace, name)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.New(apperrors.NotFound, "deployment %s/%s/%s/%s not found", project, region, namespace, name)
	}
	d.Deleted = true
	d.Status = StatusDeleted
	d.Conditions = append(d.Conditions, Condition{Type: StatusDeleted, Reason: "Destroyed", At: time.Now()})
	return r.Upsert(ctx, *d, operationID)
}

// UpdateOutputs merges a runner's extracted Terraform outputs into a deployment's
// persisted row, read-modify-write. The runner process is a separate container with
// no access to the in-memory Deployment the orchestrator finalizes against, so it
// reports outputs back through this narrow path instead (spec §4.4 "Finalizing").
func (r *Registry) UpdateOutputs(ctx context.Context, project, region, namespace, name string, outputs map[string]any, operationID string) error {
	d, found, err := r.Get(ctx, project, region, namespace, name)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.New(apperrors.NotFound, "deployment %s/%s/%s/%s not found", project, region, namespace, name)
	}
	d.Outputs = outputs
	return r.Upsert(ctx, *d, operationID)
}

func (r *Registry) ReadOutputs(ctx context.Context, project, region, name string) (map[string]any, bool, error) {
	// namespace is not known by callers resolving cross-deployment references (spec
	// §4.3 step 4 only names deploymentName); "default" mirrors the claim manifest's
	// implicit namespace default.
	d, found, err := r.Get(ctx, project, region, "default", name)
	if err != nil || !found {
		return nil, found, err
	}
	return d.Outputs, true, nil
}

// HasLiveReference satisfies catalog.ReferenceChecker (spec §4.2 republish policy).
func (r *Registry) HasLiveReference(ctx context.Context, kind, track, name, version string) (bool, error) {
	deployments, err := r.ListByModule(ctx, track, name, version)
	if err != nil {
		return false, err
	}
	for _, d := range deployments {
		if !d.Deleted && d.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

// BuildGraph materializes a graph.Graph of dependency arrows for a project+region
// (spec §4.3 step 4, §9 "arena with integer indices").
func (r *Registry) BuildGraph(ctx context.Context, project, region string) (*graph.Graph, error) {
	deployments, err := r.ListByProjectRegion(ctx, project, region)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	for _, d := range deployments {
		for _, ref := range d.DependencyRefs {
			if err := g.AddEdge(d.Name, ref); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func toItem(d Deployment) (facade.Item, error) {
	outputs, err := json.Marshal(d.Outputs)
	if err != nil {
		return facade.Item{}, apperrors.Wrap(apperrors.Malformed, err, "marshal outputs for %s", d.Name)
	}
	inputs, err := json.Marshal(d.Inputs)
	if err != nil {
		return facade.Item{}, apperrors.Wrap(apperrors.Malformed, err, "marshal inputs for %s", d.Name)
	}
	conditions, err := json.Marshal(d.Conditions)
	if err != nil {
		return facade.Item{}, apperrors.Wrap(apperrors.Malformed, err, "marshal conditions for %s", d.Name)
	}
	deps, err := json.Marshal(d.DependencyRefs)
	if err != nil {
		return facade.Item{}, apperrors.Wrap(apperrors.Malformed, err, "marshal dependency refs for %s", d.Name)
	}

	return facade.Item{
		PK: pk(d.Project, d.Region),
		SK: sk(d.Namespace, d.Name),
		Attributes: map[string]any{
			"track":          d.Track,
			"moduleName":     d.ModuleName,
			"version":        d.Version,
			"kind":           d.Kind,
			"inputs":         string(inputs),
			"outputs":        string(outputs),
			"status":         string(d.Status),
			"conditions":     string(conditions),
			"lastJobId":      d.LastJobID,
			"deleted":        d.Deleted,
			"driftEnabled":   d.DriftEnabled,
			"driftNextEpoch": d.DriftNextEpoch,
			"dependencyRefs": string(deps),
			"gitCommitter":   d.GitCommitter,
			"gitSHA":         d.GitSHA,
			"gitRepo":        d.GitRepo,
			moduleIndexAttr(d.Track, d.ModuleName, d.Version): true,
			deletedIndexAttr(d.Deleted):                       true,
		},
	}, nil
}

// moduleIndexAttr/deletedIndexAttr are synthetic boolean markers only present so a
// capability implementation can project MODULE_INDEX/DELETED_INDEX secondary indexes
// off the same row without a second write (spec §4.5 schema).
func moduleIndexAttr(track, moduleName, version string) string {
	return fmt.Sprintf("%s#%s#%s#%s", moduleIndex, track, moduleName, version)
}

func deletedIndexAttr(deleted bool) string {
	return fmt.Sprintf("%s#%v", deletedIndex, deleted)
}

func fromItem(item facade.Item) (*Deployment, error) {
	d := &Deployment{}
	if pkParts := item.PK; len(pkParts) > len("DEPLOYMENT#") {
		rest := pkParts[len("DEPLOYMENT#"):]
		for i := 0; i < len(rest); i++ {
			if rest[i] == '#' {
				d.Project = rest[:i]
				d.Region = rest[i+1:]
				break
			}
		}
	}
	for i := 0; i < len(item.SK); i++ {
		if item.SK[i] == '#' {
			d.Namespace = item.SK[:i]
			d.Name = item.SK[i+1:]
			break
		}
	}

	attrs := item.Attributes
	d.Track, _ = attrs["track"].(string)
	d.ModuleName, _ = attrs["moduleName"].(string)
	d.Version, _ = attrs["version"].(string)
	d.Kind, _ = attrs["kind"].(string)
	d.Status = Status(stringAttr(attrs, "status"))
	d.LastJobID = stringAttr(attrs, "lastJobId")
	d.Deleted, _ = attrs["deleted"].(bool)
	d.DriftEnabled, _ = attrs["driftEnabled"].(bool)
	d.GitCommitter = stringAttr(attrs, "gitCommitter")
	d.GitSHA = stringAttr(attrs, "gitSHA")
	d.GitRepo = stringAttr(attrs, "gitRepo")

	if v, ok := attrs["driftNextEpoch"].(int64); ok {
		d.DriftNextEpoch = v
	} else if v, ok := attrs["driftNextEpoch"].(float64); ok {
		d.DriftNextEpoch = int64(v)
	}

	_ = json.Unmarshal([]byte(stringAttr(attrs, "inputs")), &d.Inputs)
	_ = json.Unmarshal([]byte(stringAttr(attrs, "outputs")), &d.Outputs)
	_ = json.Unmarshal([]byte(stringAttr(attrs, "conditions")), &d.Conditions)
	_ = json.Unmarshal([]byte(stringAttr(attrs, "dependencyRefs")), &d.DependencyRefs)

	return d, nil
}

func fromItems(items []facade.Item) ([]*Deployment, error) {
	out := make([]*Deployment, 0, len(items))
	for _, item := range items {
		d, err := fromItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

// Package catalog implements the catalog & artifact service (spec §4.2): publish,
// list, fetch, and deprecate for providers, modules, and stacks, with semver-ordered
// version tracking scoped by track.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
	"github.com/infraweave-io/control-plane/internal/manifest"
	"github.com/infraweave-io/control-plane/internal/resolver"
	"github.com/infraweave-io/control-plane/internal/semver"
	"github.com/infraweave-io/control-plane/internal/terraform"
)

// Kind discriminates the three catalog entity types sharing one storage schema.
type Kind string

const (
	KindProvider Kind = "Provider"
	KindModule   Kind = "Module"
	KindStack    Kind = "Stack"
)

// Entry is the materialized row for one published (track, kind, name, version).
type Entry struct {
	Track       string
	Kind        Kind
	Name        string
	Version     string
	Manifest    json.RawMessage
	Inputs      []manifest.Variable
	Outputs     []manifest.Variable
	Providers   []manifest.ProviderRequirement
	ArtifactKey string
	RootDigest  string
	PublishedAt time.Time
	Deprecated  bool
}

// Service implements publish/list/fetch/deprecate over a facade.KV + facade.Object pair.
type Service struct {
	KV     facade.KV
	Object facade.Object

	// AllowBetaRepublishWithReferences permits republishing a beta version even when
	// a live deployment references it. Default false: any live reference is a hard
	// block (spec §9 Open Question; see DESIGN.md for the policy decision).
	AllowBetaRepublishWithReferences bool
}

// pkPrefix renders the spec §6 KV partition prefix ("PROVIDER#", "MODULE#", "STACK#")
// for a Kind value, which is itself kept in Pascal case to match resolver.CatalogEntry.
func pkPrefix(kind Kind) string {
	return strings.ToUpper(string(kind))
}

func versionedKey(kind Kind, track, name string) string { return fmt.Sprintf("%s#%s#%s", pkPrefix(kind), track, name) }
func latestKey(kind Kind, track, name string) string     { return fmt.Sprintf("LATEST#%s#%s#%s", pkPrefix(kind), track, name) }
func indexKey(kind Kind, name string) string             { return fmt.Sprintf("INDEX#%s#%s", pkPrefix(kind), name) }
func namesKey(kind Kind) string                           { return fmt.Sprintf("NAMES#%s", pkPrefix(kind)) }

// ReferenceChecker reports whether any live deployment currently references
// (kind, track, name, version); injected so catalog never imports the registry package
// directly (spec §9: components communicate through narrow interfaces, not direct
// coupling).
type ReferenceChecker interface {
	HasLiveReference(ctx context.Context, kind, track, name, version string) (bool, error)
}

// PublishInput carries everything a publish_* call needs (spec §4.2 "Publish algorithm").
type PublishInput struct {
	Track      string
	Name       string
	Version    string // caller-stated version; the committed version is the manifest's spec.version
	RawSource  []byte // zip of Terraform sources
	ForceRepublish bool
}

// PublishModule runs the module publish algorithm (spec §4.2 steps 1-5).
func (s *Service) PublishModule(ctx context.Context, in PublishInput, mod *manifest.ModuleManifest, providers []terraform.ProviderSource, refs ReferenceChecker) (*Entry, error) {
	if err := manifest.Validate(mod); err != nil {
		return nil, err
	}
	if _, err := semver.ParseVersion(mod.Spec.Version); err != nil {
		return nil, apperrors.Wrap(apperrors.Malformed, err, "invalid semver %q", mod.Spec.Version)
	}

	root := terraform.ModuleRoot(*mod, providers)
	return s.commit(ctx, KindModule, in, mod.Spec.Version, mustMarshal(mod), mod.Spec.Inputs, mod.Spec.Outputs, mod.Spec.Providers, root, refs)
}

// PublishStack runs the same algorithm with the stack's compile step (spec §4.2 step 3).
func (s *Service) PublishStack(ctx context.Context, in PublishInput, stack *manifest.StackManifest, providers []terraform.ProviderSource, refs ReferenceChecker) (*Entry, error) {
	if err := manifest.Validate(stack); err != nil {
		return nil, err
	}
	if _, err := semver.ParseVersion(stack.Spec.Version); err != nil {
		return nil, apperrors.Wrap(apperrors.Malformed, err, "invalid semver %q", stack.Spec.Version)
	}

	root := terraform.StackRoot(*stack, providers)
	return s.commit(ctx, KindStack, in, stack.Spec.Version, mustMarshal(stack), stack.Spec.Inputs, stack.Spec.Outputs, stack.Spec.Providers, root, refs)
}

// PublishProvider publishes a provider entry; providers carry no compile step.
func (s *Service) PublishProvider(ctx context.Context, in PublishInput, p *manifest.ProviderManifest, refs ReferenceChecker) (*Entry, error) {
	if err := manifest.Validate(p); err != nil {
		return nil, err
	}
	if _, err := semver.ParseVersion(p.Spec.Version); err != nil {
		return nil, apperrors.Wrap(apperrors.Malformed, err, "invalid semver %q", p.Spec.Version)
	}
	return s.commit(ctx, KindProvider, in, p.Spec.Version, mustMarshal(p), nil, nil, nil, "", refs)
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return b
}

func (s *Service) commit(ctx context.Context, kind Kind, in PublishInput, version string, manifestJSON json.RawMessage, inputs, outputs []manifest.Variable, providers []manifest.ProviderRequirement, root string, refs ReferenceChecker) (*Entry, error) {
	artifactPath := ArtifactPath(kind, in.Track, in.Name, version)
	digest := contentDigest(in.RawSource)

	_, found, err := s.KV.Get(ctx, versionedKey(kind, in.Track, in.Name), version)
	if err != nil {
		return nil, err
	}
	if found {
		if in.Track == "stable" {
			return nil, apperrors.New(apperrors.AlreadyExists, "%s %s/%s@%s is immutable on stable", kind, in.Track, in.Name, version)
		}
		if !in.ForceRepublish {
			return nil, apperrors.New(apperrors.AlreadyExists, "%s %s/%s@%s already exists; set ForceRepublish to republish", kind, in.Track, in.Name, version)
		}
		if kind == KindModule || kind == KindStack {
			if in.Track == "beta" && !s.AllowBetaRepublishWithReferences {
				hasRef, err := refs.HasLiveReference(ctx, string(kind), in.Track, in.Name, version)
				if err != nil {
					return nil, err
				}
				if hasRef {
					return nil, apperrors.New(apperrors.AlreadyExists, "%s %s/%s@%s has live references; republish blocked", kind, in.Track, in.Name, version)
				}
			}
		}
	}

	if err := s.Object.Put(ctx, artifactPath, in.RawSource); err != nil {
		return nil, err
	}
	if root != "" {
		if err := s.Object.Put(ctx, RootModulePath(kind, in.Track, in.Name, version), []byte(root)); err != nil {
			return nil, err
		}
	}

	entry := Entry{
		Track: in.Track, Kind: kind, Name: in.Name, Version: version,
		Manifest: manifestJSON, Inputs: inputs, Outputs: outputs, Providers: providers,
		ArtifactKey: artifactPath, RootDigest: digest, PublishedAt: time.Now(),
	}

	publishWrite := facade.Write{Put: &facade.Item{
		PK: versionedKey(kind, in.Track, in.Name), SK: version,
		Attributes: entryAttributes(entry),
	}}
	if !in.ForceRepublish {
		// Backstops the Get-then-check above against a concurrent publisher racing
		// the same (track, name, version); only one TransactWrite can win (spec §4.2
		// step 5).
		publishWrite.ConditionAttribute = "publishedAt"
		publishWrite.ConditionAbsent = true
	}
	writes := []facade.Write{publishWrite}

	isNewLatest, err := s.isHighestSemver(ctx, kind, in.Track, in.Name, version)
	if err != nil {
		return nil, err
	}
	if isNewLatest {
		writes = append(writes, facade.Write{Put: &facade.Item{
			PK: latestKey(kind, in.Track, in.Name), SK: "-",
			Attributes: map[string]any{"version": version},
		}})
	}
	writes = append(writes, facade.Write{Put: &facade.Item{
		PK: indexKey(kind, in.Name), SK: in.Track + "#" + version,
		Attributes: map[string]any{"track": in.Track, "version": version},
	}})
	// Unconditional upsert: every publish re-asserts membership in the name index
	// so GET /{modules,stacks,providers} can enumerate names without a table scan.
	writes = append(writes, facade.Write{Put: &facade.Item{
		PK: namesKey(kind), SK: in.Name,
		Attributes: map[string]any{"name": in.Name},
	}})

	operationID := uuid.NewString()
	if err := s.KV.TransactWrite(ctx, writes, operationID); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Service) isHighestSemver(ctx context.Context, kind Kind, track, name, version string) (bool, error) {
	items, err := s.KV.Query(ctx, facade.QueryInput{PK: versionedKey(kind, track, name)})
	if err != nil {
		return false, err
	}
	candidate, err := semver.ParseVersion(version)
	if err != nil {
		return false, apperrors.Wrap(apperrors.Malformed, err, "invalid semver %q", version)
	}
	for _, item := range items {
		if item.SK == version {
			continue
		}
		other, err := semver.ParseVersion(item.SK)
		if err != nil {
			continue
		}
		if semver.Compare(other, candidate) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// GetByVersion fetches one published entry.
func (s *Service) GetByVersion(ctx context.Context, kind Kind, track, name, version string) (*Entry, error) {
	item, found, err := s.KV.Get(ctx, versionedKey(kind, track, name), version)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.New(apperrors.NotFound, "%s %s/%s@%s not found", kind, track, name, version)
	}
	return entryFromItem(kind, track, name, version, item.Attributes), nil
}

// GetLatest resolves the LATEST pointer for (kind, track, name).
func (s *Service) GetLatest(ctx context.Context, kind Kind, track, name string) (*Entry, error) {
	item, found, err := s.KV.Get(ctx, latestKey(kind, track, name), "-")
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.New(apperrors.NotFound, "%s %s/%s has no published version", kind, track, name)
	}
	version, _ := item.Attributes["version"].(string)
	return s.GetByVersion(ctx, kind, track, name, version)
}

// ListVersions returns every published version row for (kind, track, name).
func (s *Service) ListVersions(ctx context.Context, kind Kind, track, name string) ([]*Entry, error) {
	items, err := s.KV.Query(ctx, facade.QueryInput{PK: versionedKey(kind, track, name)})
	if err != nil {
		return nil, err
	}
	out := make([]*Entry, 0, len(items))
	for _, item := range items {
		out = append(out, entryFromItem(kind, track, name, item.SK, item.Attributes))
	}
	return out, nil
}

// ListNames enumerates every published name for a kind, for the `GET /modules`-style
// listing routes (spec §6); each row is a membership pointer asserted on every publish.
func (s *Service) ListNames(ctx context.Context, kind Kind) ([]string, error) {
	items, err := s.KV.Query(ctx, facade.QueryInput{PK: namesKey(kind)})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.SK)
	}
	return out, nil
}

// Deprecate soft-flags a published version (spec §4.2 "Deprecation").
func (s *Service) Deprecate(ctx context.Context, kind Kind, track, name, version string) error {
	return s.KV.ConditionalUpdate(ctx, versionedKey(kind, track, name), version, "deprecated", false, true)
}

// DownloadURL returns a time-bounded presigned URL for the published artifact.
func (s *Service) DownloadURL(ctx context.Context, kind Kind, track, name, version string, ttl time.Duration) (string, error) {
	return s.Object.PresignGet(ctx, ArtifactPath(kind, track, name, version), ttl)
}

// ArtifactPath returns the deterministic object-store path for a published
// artifact's raw source, shared with cmd/runner so the runner can fetch the same
// artifact a claim was resolved against without going through the catalog API.
func ArtifactPath(kind Kind, track, name, version string) string {
	return fmt.Sprintf("/%ss/%s/%s/%s/src.zip", lowerPlural(kind), track, name, version)
}

// RootModulePath returns the deterministic object-store path for a published
// artifact's generated root module, shared with cmd/runner.
func RootModulePath(kind Kind, track, name, version string) string {
	return fmt.Sprintf("/%ss/%s/%s/%s/root/main.tf", lowerPlural(kind), track, name, version)
}

func lowerPlural(kind Kind) string {
	switch kind {
	case KindProvider:
		return "provider"
	case KindStack:
		return "stack"
	default:
		return "module"
	}
}

func contentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func entryAttributes(e Entry) map[string]any {
	return map[string]any{
		"manifest":    string(e.Manifest),
		"artifactKey": e.ArtifactKey,
		"rootDigest":  e.RootDigest,
		"publishedAt": e.PublishedAt.Format(time.RFC3339Nano),
		"deprecated":  e.Deprecated,
		"inputs":      string(mustMarshal(e.Inputs)),
		"outputs":     string(mustMarshal(e.Outputs)),
		"providers":   string(mustMarshal(e.Providers)),
	}
}

func entryFromItem(kind Kind, track, name, version string, attrs map[string]any) *Entry {
	e := &Entry{Track: track, Kind: kind, Name: name, Version: version}
	if v, ok := attrs["manifest"].(string); ok {
		e.Manifest = json.RawMessage(v)
	}
	if v, ok := attrs["artifactKey"].(string); ok {
		e.ArtifactKey = v
	}
	if v, ok := attrs["rootDigest"].(string); ok {
		e.RootDigest = v
	}
	if v, ok := attrs["deprecated"].(bool); ok {
		e.Deprecated = v
	}
	if v, ok := attrs["publishedAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			e.PublishedAt = t
		}
	}
	if v, ok := attrs["inputs"].(string); ok && v != "" {
		_ = json.Unmarshal([]byte(v), &e.Inputs)
	}
	if v, ok := attrs["outputs"].(string); ok && v != "" {
		_ = json.Unmarshal([]byte(v), &e.Outputs)
	}
	if v, ok := attrs["providers"].(string); ok && v != "" {
		_ = json.Unmarshal([]byte(v), &e.Providers)
	}
	return e
}

// AsCatalogReader adapts Service to resolver.CatalogReader.
type AsCatalogReader struct {
	*Service
}

func (a AsCatalogReader) GetVersion(ctx context.Context, track, kind, name, version string) (*resolver.CatalogEntry, error) {
	e, err := a.Service.GetByVersion(ctx, Kind(kind), track, name, version)
	if err != nil {
		return nil, err
	}
	return toCatalogEntry(e), nil
}

func (a AsCatalogReader) GetLatest(ctx context.Context, track, kind, name string) (*resolver.CatalogEntry, error) {
	e, err := a.Service.GetLatest(ctx, Kind(kind), track, name)
	if err != nil {
		return nil, err
	}
	return toCatalogEntry(e), nil
}

func (a AsCatalogReader) ResolveProvider(ctx context.Context, req manifest.ProviderRequirement) (string, error) {
	track := "stable"
	var entry *Entry
	var err error
	if req.Version != "" {
		entry, err = a.Service.GetByVersion(ctx, KindProvider, track, req.Name, req.Version)
	} else {
		entry, err = a.Service.GetLatest(ctx, KindProvider, track, req.Name)
	}
	if err != nil {
		return "", err
	}
	return entry.RootDigest, nil
}

func toCatalogEntry(e *Entry) *resolver.CatalogEntry {
	return &resolver.CatalogEntry{
		Track: e.Track, Name: e.Name, Version: e.Version, Kind: string(e.Kind),
		Inputs: e.Inputs, Providers: e.Providers, RootDigest: e.RootDigest, Deprecated: e.Deprecated,
	}
}

// Package resolver implements the claim resolver & manifest compiler (spec §4.3): it
// binds a claim to a catalog version, validates its variables, interpolates
// cross-deployment references, and emits a resolved plan for the orchestrator.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/graph"
	"github.com/infraweave-io/control-plane/internal/manifest"
	"github.com/infraweave-io/control-plane/internal/semver"
)

// CatalogEntry is the subset of a published module/stack row the resolver needs.
type CatalogEntry struct {
	Track          string
	Name           string
	Version        string
	Kind           string // "Module" or "Stack"
	Inputs         []manifest.Variable
	Providers      []manifest.ProviderRequirement
	RootDigest     string
	Deprecated     bool
}

// CatalogReader is satisfied by the catalog service; kept as a narrow interface here
// so the resolver never imports the catalog package directly (spec §9: components
// communicate through the façade/registry, not direct coupling).
type CatalogReader interface {
	GetVersion(ctx context.Context, track, kind, name, version string) (*CatalogEntry, error)
	GetLatest(ctx context.Context, track, kind, name string) (*CatalogEntry, error)
	ResolveProvider(ctx context.Context, req manifest.ProviderRequirement) (digest string, err error)
}

// DeploymentOutputs is satisfied by the deployment registry; used to resolve
// cross-deployment references (spec §4.3 step 4).
type DeploymentOutputs interface {
	ReadOutputs(ctx context.Context, project, region, name string) (map[string]any, bool, error)
}

// Context carries the project/region scope and git provenance a claim resolves within.
type Context struct {
	Project     string
	Region      string
	Environment string
	Committer   string
	CommitSHA   string
	Repo        string
}

// ResolvedPlan is the output of resolution handed to the orchestrator (spec §4.3 step 6).
type ResolvedPlan struct {
	RootArtifactDigest string
	Track              string
	Kind               string
	Name               string
	Version            string
	InputMap           map[string]any
	Providers          []string
	DependencyRefs     []string
}

var crossRefPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)::([A-Za-z0-9_.\-]+)::([A-Za-z0-9_]+)\s*\}\}`)

// Resolve runs the full algorithm in spec §4.3.
func Resolve(ctx context.Context, catalog CatalogReader, deployments DeploymentOutputs, depGraph *graph.Graph, deploymentName string, claim *manifest.Claim, rc Context) (*ResolvedPlan, error) {
	kind := "Module"
	version := claim.Spec.ModuleVersion
	if claim.Spec.StackVersion != "" {
		kind = "Stack"
		version = claim.Spec.StackVersion
	}
	track := claim.Spec.Track
	if track == "" {
		track = "stable"
	}

	entry, err := ResolveNamed(ctx, catalog, track, kind, claim.Kind, version)
	if err != nil {
		return nil, err
	}
	// Deprecated versions remain usable. entry.Deprecated is not consulted here or by
	// the orchestrator, so resolving to a deprecated version records no warning event.

	if err := manifest.ValidateVariables(entry.Inputs, claim.Spec.Variables); err != nil {
		return nil, err
	}

	inputs := make(map[string]any, len(claim.Spec.Variables))
	for k, v := range claim.Spec.Variables {
		inputs[k] = v
	}

	depRefs, err := interpolateCrossReferences(ctx, deployments, depGraph, deploymentName, rc, inputs)
	if err != nil {
		return nil, err
	}

	providers := make([]string, 0, len(entry.Providers))
	for _, req := range entry.Providers {
		digest, err := catalog.ResolveProvider(ctx, req)
		if err != nil {
			return nil, err
		}
		providers = append(providers, digest)
	}

	compileImplicitVariables(inputs, deploymentName, claim, rc, entry)

	return &ResolvedPlan{
		RootArtifactDigest: entry.RootDigest,
		Track:              track,
		Kind:               kind,
		Name:               claim.Kind,
		Version:            entry.Version,
		InputMap:           inputs,
		Providers:          providers,
		DependencyRefs:     depRefs,
	}, nil
}

// ResolveNamed looks up the exact catalog entry for (track, kind, name, version),
// falling back to LATEST when version is empty, and applying the pre-release
// selection tie-break from spec §4.3 ("Tie-breaks and policies").
func ResolveNamed(ctx context.Context, catalog CatalogReader, track, kind, name, version string) (*CatalogEntry, error) {
	if version == "" {
		entry, err := catalog.GetLatest(ctx, track, kind, name)
		if err != nil {
			return nil, err
		}
		// Only the LATEST resolution needs the pre-release guard: an explicit version
		// below is always an exact pin by construction (the caller named it), so the
		// tie-break policy treats naming a pre-release outright as the "exact pin"
		// override and never blocks it.
		if semver.IsPreRelease(entry.Version) && track != "dev" {
			return nil, apperrors.New(apperrors.NotFound, "latest resolved to pre-release version %s, only selectable on track dev", entry.Version)
		}
		return entry, nil
	}

	entry, err := catalog.GetVersion(ctx, track, kind, name, version)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func interpolateCrossReferences(ctx context.Context, deployments DeploymentOutputs, depGraph *graph.Graph, deploymentName string, rc Context, inputs map[string]any) ([]string, error) {
	var refs []string
	for key, value := range inputs {
		s, ok := value.(string)
		if !ok {
			continue
		}
		match := crossRefPattern.FindStringSubmatch(s)
		if match == nil {
			continue
		}
		referentName, outputName := match[2], match[3]

		if depGraph != nil {
			if err := depGraph.AddEdge(deploymentName, referentName); err != nil {
				return nil, err
			}
		}

		outputs, found, err := deployments.ReadOutputs(ctx, rc.Project, rc.Region, referentName)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, apperrors.New(apperrors.UnresolvedDependency, "dependency %q not found", referentName)
		}
		outValue, ok := outputs[outputName]
		if !ok {
			return nil, apperrors.New(apperrors.UnresolvedDependency, "output %q not found on deployment %q", outputName, referentName)
		}
		inputs[key] = fmt.Sprint(outValue)
		refs = append(refs, referentName)
	}
	return refs, nil
}

func compileImplicitVariables(inputs map[string]any, deploymentName string, claim *manifest.Claim, rc Context, entry *CatalogEntry) {
	reserved := map[string]any{
		"INFRAWEAVE_DEPLOYMENT_ID": deploymentName,
		"INFRAWEAVE_ENVIRONMENT":   rc.Environment,
		"INFRAWEAVE_REFERENCE":     fmt.Sprintf("%s/%s/%s", rc.Project, rc.Region, deploymentName),
		"INFRAWEAVE_MODULE_TRACK":  entry.Track,
		"INFRAWEAVE_MODULE_TYPE":   entry.Kind,
		"INFRAWEAVE_MODULE_VERSION": entry.Version,
		"INFRAWEAVE_GIT_COMMITTER": rc.Committer,
		"INFRAWEAVE_GIT_SHA":       rc.CommitSHA,
		"INFRAWEAVE_GIT_REPO":      rc.Repo,
	}
	if claim.Spec.DriftDetection != nil {
		if b, err := json.Marshal(claim.Spec.DriftDetection); err == nil {
			reserved["INFRAWEAVE_DRIFT_DETECTION"] = string(b)
		}
	}
	for k, v := range reserved {
		inputs[k] = v // caller-provided values of reserved names are ignored (spec §4.3 step 5)
	}
}

// ParseDriftInterval validates and parses a drift-detection interval string (spec §9
// Open Question: "implementation must define it"). Accepted shapes are a positive
// integer followed by ms/s/m/h, matching the examples in spec §6 ("1h", "30m").
var driftIntervalPattern = regexp.MustCompile(`^[0-9]+(ms|s|m|h)$`)

func ParseDriftInterval(s string) (time.Duration, error) {
	if !driftIntervalPattern.MatchString(s) {
		return 0, apperrors.New(apperrors.Malformed, "invalid drift interval %q", s)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Malformed, err, "parse drift interval %q", s)
	}
	return d, nil
}

// Package app is the composition root: it wires the façade, catalog, registry,
// resolver, orchestrator, drift controller, and event log into one App value that
// every cmd/* entrypoint and adapter (gitops, k8sop, the HTTP router) builds its
// handlers against. Keeping the wiring in one place means cmd/controlplane,
// cmd/runner, cmd/cli, and cmd/loadtest never duplicate how a capability set gets
// assembled from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/catalog"
	"github.com/infraweave-io/control-plane/internal/config"
	"github.com/infraweave-io/control-plane/internal/drift"
	"github.com/infraweave-io/control-plane/internal/events"
	"github.com/infraweave-io/control-plane/internal/facade"
	"github.com/infraweave-io/control-plane/internal/facade/aws"
	"github.com/infraweave-io/control-plane/internal/facade/azure"
	"github.com/infraweave-io/control-plane/internal/facade/local"
	"github.com/infraweave-io/control-plane/internal/manifest"
	"github.com/infraweave-io/control-plane/internal/orchestrator"
	"github.com/infraweave-io/control-plane/internal/registry"
	"github.com/infraweave-io/control-plane/internal/resolver"
)

// App owns every long-lived component a control-plane process needs, assembled once
// from a loaded Config.
type App struct {
	Config       *config.Config
	Capability   facade.Capability
	Catalog      *catalog.Service
	CatalogReader catalog.AsCatalogReader
	Registry     *registry.Registry
	Events       *events.Recorder
	Orchestrator *orchestrator.Orchestrator
	Drift        *drift.Controller
	Logger       *zap.Logger
}

// New assembles an App from a loaded Config, selecting the capability set named by
// cfg.Cloud (spec §4.1).
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	cap, err := BuildCapability(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reg := registry.New(cap.KV)
	cat := &catalog.Service{KV: cap.KV, Object: cap.Object}
	evts := events.New(cap.KV)
	orch := orchestrator.New(cap, reg, evts, logger)
	orch.LockTimeout = cfg.LockTimeout

	return &App{
		Config:        cfg,
		Capability:    cap,
		Catalog:       cat,
		CatalogReader: catalog.AsCatalogReader{Service: cat},
		Registry:      reg,
		Events:        evts,
		Orchestrator:  orch,
		Logger:        logger,
	}, nil
}

// BuildCapability assembles the cloud-specific facade.Capability named by cfg.Cloud
// (spec §4.1). Exported so cmd/runner can build the same capability set without a full
// App (it has no need for the catalog/registry/orchestrator wiring New assembles).
func BuildCapability(ctx context.Context, cfg *config.Config) (facade.Capability, error) {
	switch cfg.Cloud {
	case facade.Local:
		return local.New(local.Options{
			ObjectRoot:     "./runner-setup/objects",
			PresignBaseURL: "http://localhost:8081/objects",
			RunnerPath:     "infraweave-runner",
			NATSURL:        cfg.NATSURL,
		})
	case facade.AWS:
		return aws.New(ctx, aws.Options{
			Region:          cfg.Region,
			TableName:       cfg.DynamoDBTableName,
			Bucket:          cfg.S3Bucket,
			LogPrefix:       "logs",
			Cluster:         cfg.ECSCluster,
			TaskDefinition:  cfg.ECSTaskDefinition,
			ContainerName:   cfg.ECSContainerName,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SessionToken:    cfg.AWSSessionToken,
		})
	case facade.Azure:
		return azure.New(ctx, azure.Options{
			SubscriptionID:     cfg.SubscriptionID,
			ResourceGroup:      cfg.ResourceGroup,
			CosmosEndpoint:     cfg.CosmosEndpoint,
			CosmosDatabase:     cfg.CosmosDatabase,
			CosmosContainer:    cfg.CosmosContainer,
			StorageAccountName: cfg.StorageAccountName,
			StorageContainer:   "state",
			StorageAccountKey:  cfg.StorageAccountKey,
			LogPrefix:          "logs",
			JobName:            cfg.ContainerAppJobName,
			JobContainerName:   "runner",
			NATSURL:            cfg.NATSURL,
		})
	default:
		return facade.Capability{}, apperrors.New(apperrors.Malformed, "unknown cloud runtime %q", cfg.Cloud)
	}
}

// RunClaim resolves claim against the catalog/registry and drives it through the
// orchestrator, satisfying gitops.ClaimRunner and k8sop.ClaimRunner (spec §4.3/§4.4).
//
// project is the authorization boundary the caller was scoped to — for the router path
// this is payload["project"], already checked against the caller's token by
// router.Dispatch (spec §4.6) — and is used as-is for the deployment's project. It is
// deliberately kept distinct from claim.Metadata.Namespace (spec §4.5's schema keeps
// project and namespace as separate key components): a caller scoped to project "p1"
// must not be able to write into project "p2" merely by setting a different
// metadata.namespace on the claim body. Callers with no independent project concept
// (gitops, the k8s operator adapter) pass "" and fall back to the claim's namespace.
func (a *App) RunClaim(ctx context.Context, committer, commitSHA, repo, project string, claim *manifest.Claim) error {
	if project == "" {
		project = claim.Metadata.Namespace
	}
	if project == "" {
		project = "default"
	}
	region := claim.Spec.Region

	depGraph, err := a.Registry.BuildGraph(ctx, project, region)
	if err != nil {
		return err
	}

	plan, err := resolver.Resolve(ctx, a.CatalogReader, a.Registry, depGraph, claim.Metadata.Name, claim, resolver.Context{
		Project: project, Region: region, Committer: committer, CommitSHA: commitSHA, Repo: repo,
	})
	if err != nil {
		return err
	}

	kind := "Module"
	version := claim.Spec.ModuleVersion
	if claim.Spec.StackVersion != "" {
		kind = "Stack"
		version = claim.Spec.StackVersion
	}

	deployment := registry.Deployment{
		Project: project, Region: region, Namespace: claim.Metadata.Namespace, Name: claim.Metadata.Name,
		Track: claim.Spec.Track, ModuleName: claim.Kind, Version: version, Kind: kind,
		Inputs: plan.InputMap, Status: registry.StatusRunning,
		DriftEnabled:   claim.Spec.DriftDetection != nil && claim.Spec.DriftDetection.Enabled,
		DependencyRefs: plan.DependencyRefs,
		GitCommitter:   committer, GitSHA: commitSHA, GitRepo: repo,
	}
	if claim.Spec.DriftDetection != nil && deployment.DriftEnabled {
		epoch, err := drift.NextEpoch(claim.Spec.DriftDetection.Interval, time.Now())
		if err == nil {
			deployment.DriftNextEpoch = epoch
		}
	}

	deploymentID := fmt.Sprintf("%s/%s/%s/%s", project, region, claim.Metadata.Namespace, claim.Metadata.Name)
	job := &orchestrator.Job{
		ID: deploymentID + "#" + commitSHA, DeploymentID: deploymentID,
		Project: project, Region: region, StateKey: claim.Metadata.Namespace + "#" + claim.Metadata.Name,
		Event: orchestrator.EventApply,
	}
	return a.Orchestrator.Run(ctx, job, plan, &deployment)
}

// DestroyDeployment re-submits a deployment's last-known plan as a destroy-kind job
// (spec §6 CLI `destroy <namespace> <file>`), reusing the persisted registry row rather
// than requiring the caller to resupply a claim — the claim that created a deployment is
// no longer needed to tear it down.
func (a *App) DestroyDeployment(ctx context.Context, project, region, namespace, name string) error {
	d, found, err := a.Registry.Get(ctx, project, region, namespace, name)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.New(apperrors.NotFound, "deployment %s/%s not found", namespace, name)
	}

	deploymentID := fmt.Sprintf("%s/%s/%s/%s", project, region, namespace, name)
	job := &orchestrator.Job{
		ID: deploymentID + "#destroy", DeploymentID: deploymentID,
		Project: project, Region: region, StateKey: namespace + "#" + name,
		Event: orchestrator.EventDestroy,
	}
	plan := &resolver.ResolvedPlan{
		Track: d.Track, Kind: d.Kind, Name: d.ModuleName, Version: d.Version,
		InputMap: d.Inputs, DependencyRefs: d.DependencyRefs,
	}
	return a.Orchestrator.Run(ctx, job, plan, d)
}

// EnqueueDrift satisfies drift.JobEnqueuer: it re-submits a deployment's last-known
// claim as a plan-kind job (spec §4.7).
func (a *App) EnqueueDrift(ctx context.Context, d *registry.Deployment) error {
	deploymentID := fmt.Sprintf("%s/%s/%s/%s", d.Project, d.Region, d.Namespace, d.Name)
	job := &orchestrator.Job{
		ID: deploymentID + "#drift", DeploymentID: deploymentID,
		Project: d.Project, Region: d.Region, StateKey: d.Namespace + "#" + d.Name,
		Event: orchestrator.EventPlan,
	}
	plan := &resolver.ResolvedPlan{
		Track: d.Track, Kind: d.Kind, Name: d.ModuleName, Version: d.Version,
		InputMap: d.Inputs, DependencyRefs: d.DependencyRefs,
	}
	return a.Orchestrator.Run(ctx, job, plan, d)
}

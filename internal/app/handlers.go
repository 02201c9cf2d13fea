package app

import (
	"context"
	"time"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/catalog"
	"github.com/infraweave-io/control-plane/internal/manifest"
	"github.com/infraweave-io/control-plane/internal/router"
	"github.com/infraweave-io/control-plane/internal/router/authn"
)

// RegisterRoutes binds every event named in spec §6's HTTP/CLI surface to a Handler
// closing over App, the single wiring point both cmd/controlplane's HTTP transport
// (which cmd/cli and cmd/loadtest post to) and any direct-invocation caller of
// router.Dispatch (tests) dispatch through.
func (a *App) RegisterRoutes(r *router.Router) {
	r.Register("run_claim", a.handleRunClaim)
	r.Register("destroy_deployment", a.handleDestroyDeployment)
	r.Register("publish_module", a.handlePublishModule)
	r.Register("publish_stack", a.handlePublishStack)
	r.Register("publish_provider", a.handlePublishProvider)
	r.Register("list_modules", a.handleListKind(catalog.KindModule))
	r.Register("list_stacks", a.handleListKind(catalog.KindStack))
	r.Register("list_providers", a.handleListKind(catalog.KindProvider))
	r.Register("get_module_version", a.handleGetVersion(catalog.KindModule))
	r.Register("get_stack_version", a.handleGetVersion(catalog.KindStack))
	r.Register("get_provider_version", a.handleGetVersion(catalog.KindProvider))
	r.Register("download_module", a.handleDownload(catalog.KindModule))
	r.Register("deprecate_module", a.handleDeprecate(catalog.KindModule))
	r.Register("deployment_get", a.handleDeploymentGet)
	r.Register("deployment_list", a.handleDeploymentList)
	r.Register("job_status", a.handleJobStatus)
	r.Register("logs", a.handleLogs)
}

func (a *App) handleRunClaim(ctx context.Context, caller authn.Identity, payload map[string]any) (any, error) {
	raw, _ := payload["claim"].(string)
	if raw == "" {
		return nil, apperrors.New(apperrors.Malformed, "payload.claim is required")
	}
	claim, err := manifest.ParseClaim([]byte(raw))
	if err != nil {
		return nil, err
	}
	// project is the value router.Dispatch already authorized caller against (run_claim
	// is not in unscopedEvents, so payload["project"] is guaranteed non-empty here) —
	// pass it through as the deployment's project rather than letting RunClaim derive
	// one from claim.Metadata.Namespace, which the caller fully controls.
	project, _ := payload["project"].(string)
	committer := caller.Subject
	if err := a.RunClaim(ctx, committer, "", "api", project, claim); err != nil {
		return nil, err
	}
	return map[string]any{"accepted": true}, nil
}

func (a *App) handleDestroyDeployment(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
	project, region, namespace, name, err := deploymentKey(payload)
	if err != nil {
		return nil, err
	}
	if err := a.DestroyDeployment(ctx, project, region, namespace, name); err != nil {
		return nil, err
	}
	return map[string]any{"accepted": true}, nil
}

func (a *App) handlePublishModule(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
	in, raw, err := publishInput(payload)
	if err != nil {
		return nil, err
	}
	mod, err := manifest.ParseModule(raw)
	if err != nil {
		return nil, err
	}
	entry, err := a.Catalog.PublishModule(ctx, in, mod, nil, a.Registry)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (a *App) handlePublishStack(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
	in, raw, err := publishInput(payload)
	if err != nil {
		return nil, err
	}
	stack, err := manifest.ParseStack(raw)
	if err != nil {
		return nil, err
	}
	entry, err := a.Catalog.PublishStack(ctx, in, stack, nil, a.Registry)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (a *App) handlePublishProvider(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
	in, raw, err := publishInput(payload)
	if err != nil {
		return nil, err
	}
	p, err := manifest.ParseProvider(raw)
	if err != nil {
		return nil, err
	}
	entry, err := a.Catalog.PublishProvider(ctx, in, p, a.Registry)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func publishInput(payload map[string]any) (catalog.PublishInput, []byte, error) {
	track, _ := payload["track"].(string)
	name, _ := payload["name"].(string)
	version, _ := payload["version"].(string)
	source, _ := payload["source"].(string)
	force, _ := payload["forceRepublish"].(bool)
	if track == "" || name == "" || version == "" || source == "" {
		return catalog.PublishInput{}, nil, apperrors.New(apperrors.Malformed, "publish requires track, name, version, source")
	}
	return catalog.PublishInput{Track: track, Name: name, Version: version, RawSource: []byte(source), ForceRepublish: force}, []byte(source), nil
}

func (a *App) handleListKind(kind catalog.Kind) router.Handler {
	return func(ctx context.Context, _ authn.Identity, _ map[string]any) (any, error) {
		return a.Catalog.ListNames(ctx, kind)
	}
}

func (a *App) handleGetVersion(kind catalog.Kind) router.Handler {
	return func(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
		track, name, version, err := trackNameVersion(payload)
		if err != nil {
			return nil, err
		}
		if version == "latest" || version == "" {
			return a.Catalog.GetLatest(ctx, kind, track, name)
		}
		return a.Catalog.GetByVersion(ctx, kind, track, name, version)
	}
}

func (a *App) handleDownload(kind catalog.Kind) router.Handler {
	return func(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
		track, name, version, err := trackNameVersion(payload)
		if err != nil {
			return nil, err
		}
		url, err := a.Catalog.DownloadURL(ctx, kind, track, name, version, downloadTTL)
		if err != nil {
			return nil, err
		}
		return map[string]any{"url": url}, nil
	}
}

func (a *App) handleDeprecate(kind catalog.Kind) router.Handler {
	return func(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
		track, name, version, err := trackNameVersion(payload)
		if err != nil {
			return nil, err
		}
		return nil, a.Catalog.Deprecate(ctx, kind, track, name, version)
	}
}

func trackNameVersion(payload map[string]any) (track, name, version string, err error) {
	track, _ = payload["track"].(string)
	name, _ = payload["name"].(string)
	version, _ = payload["version"].(string)
	if track == "" || name == "" {
		return "", "", "", apperrors.New(apperrors.Malformed, "track and name are required")
	}
	return track, name, version, nil
}

func (a *App) handleDeploymentGet(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
	project, region, namespace, name, err := deploymentKey(payload)
	if err != nil {
		return nil, err
	}
	d, found, err := a.Registry.Get(ctx, project, region, namespace, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.New(apperrors.NotFound, "deployment %s/%s not found", namespace, name)
	}
	return d, nil
}

func (a *App) handleDeploymentList(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
	project, _ := payload["project"].(string)
	region, _ := payload["region"].(string)
	if project == "" || region == "" {
		return nil, apperrors.New(apperrors.Malformed, "project and region are required")
	}
	return a.Registry.ListByProjectRegion(ctx, project, region)
}

func (a *App) handleJobStatus(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
	project, region, namespace, name, err := deploymentKey(payload)
	if err != nil {
		return nil, err
	}
	d, found, err := a.Registry.Get(ctx, project, region, namespace, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.New(apperrors.NotFound, "deployment %s/%s not found", namespace, name)
	}
	return map[string]any{"jobId": d.LastJobID, "status": string(d.Status)}, nil
}

func (a *App) handleLogs(ctx context.Context, _ authn.Identity, payload map[string]any) (any, error) {
	project, region, namespace, name, err := deploymentKey(payload)
	if err != nil {
		return nil, err
	}
	d, found, err := a.Registry.Get(ctx, project, region, namespace, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.New(apperrors.NotFound, "deployment %s/%s not found", namespace, name)
	}
	limit := intFromPayload(payload["limit"])
	deploymentID := project + "/" + region + "/" + namespace + "/" + name
	events, err := a.Events.List(ctx, deploymentID, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"jobId": d.LastJobID, "events": events}, nil
}

// intFromPayload accepts an int (a direct-invocation caller's native Go value) or a
// float64 (what encoding/json decodes any JSON number into), since payload comes from
// both paths router.Dispatch serves (spec §9 Open Question resolved: one handler for
// both HTTP and direct invocation).
func intFromPayload(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func deploymentKey(payload map[string]any) (project, region, namespace, name string, err error) {
	project, _ = payload["project"].(string)
	region, _ = payload["region"].(string)
	namespace, _ = payload["namespace"].(string)
	name, _ = payload["name"].(string)
	if project == "" || region == "" || name == "" {
		return "", "", "", "", apperrors.New(apperrors.Malformed, "project, region, and name are required")
	}
	if namespace == "" {
		namespace = "default"
	}
	return project, region, namespace, name, nil
}

const downloadTTL = 15 * time.Minute


// Package orchestrator drives the runner job state machine (spec §4.4): it compiles a
// resolved plan into a launch environment, acquires a state lock, starts a runner
// container, streams its status, and finalizes the deployment transactionally.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/facade"
	"github.com/infraweave-io/control-plane/internal/registry"
	"github.com/infraweave-io/control-plane/internal/resolver"
)

// Phase is one state in the job state machine (spec §4.4 diagram).
type Phase string

const (
	PhaseInit       Phase = "Init"
	PhaseCompiling  Phase = "Compiling"
	PhaseLocking    Phase = "Locking"
	PhaseLaunching  Phase = "Launching"
	PhaseRunning    Phase = "Running"
	PhaseFinalizing Phase = "Finalizing"
	PhaseSucceeded  Phase = "Succeeded"
	PhaseFailed     Phase = "Failed"
	PhaseCancelled  Phase = "Cancelled"
)

// EventKind is the Terraform operation a job drives (spec §3 Job).
type EventKind string

const (
	EventPlan    EventKind = "plan"
	EventApply   EventKind = "apply"
	EventDestroy EventKind = "destroy"
	EventDrift   EventKind = "drift"
)

// Default retry budgets per phase (spec §4.4 "Failure semantics").
const (
	maxCompileAttempts = 1
	maxLaunchAttempts  = 3
	maxFinalizeAttempts = 5
)

// DefaultLockTimeout is the polling ceiling before a Locking phase fails Busy (spec §4.4).
const DefaultLockTimeout = 10 * time.Minute

// EventRecorder persists append-only Event rows (spec §3 "Event"); kept as a narrow
// interface here so the orchestrator never depends on a concrete events package.
type EventRecorder interface {
	Record(ctx context.Context, deploymentID string, kind string, payload map[string]any) error
}

// Job is the orchestrator's working state for one deployment+event (spec §3 "Job").
type Job struct {
	ID           string
	DeploymentID string
	Project      string
	Region       string
	StateKey     string
	Event        EventKind
	Phase        Phase
	RunnerHandle facade.JobHandle
	FailureKind  apperrors.Kind
}

// Orchestrator wires a capability set plus the registry and event log it finalizes
// into (spec §4.4, §4.5).
type Orchestrator struct {
	Capability  facade.Capability
	Registry    *registry.Registry
	Events      EventRecorder
	Logger      *zap.Logger
	LockTimeout time.Duration
}

func New(cap facade.Capability, reg *registry.Registry, events EventRecorder, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{Capability: cap, Registry: reg, Events: events, Logger: logger, LockTimeout: DefaultLockTimeout}
}

// Run drives a job through the full state machine (spec §4.4).
func (o *Orchestrator) Run(ctx context.Context, job *Job, plan *resolver.ResolvedPlan, d *registry.Deployment) error {
	job.Phase = PhaseInit
	o.recordEvent(ctx, job, "job.started", map[string]any{"event": string(job.Event)})

	job.Phase = PhaseCompiling
	if plan == nil {
		return o.fail(ctx, job, d, apperrors.New(apperrors.Malformed, "no resolved plan for job %s", job.ID))
	}

	job.Phase = PhaseLocking
	if err := o.acquireLock(ctx, job); err != nil {
		return o.fail(ctx, job, d, err)
	}
	defer o.releaseLock(ctx, job)

	job.Phase = PhaseLaunching
	env := o.buildLaunchEnv(job, plan, d)
	handle, err := o.startWithRetry(ctx, job, env)
	if err != nil {
		return o.fail(ctx, job, d, err)
	}
	job.RunnerHandle = handle

	job.Phase = PhaseRunning
	status, err := o.awaitCompletion(ctx, job)
	if err != nil {
		return o.fail(ctx, job, d, err)
	}

	job.Phase = PhaseFinalizing
	return o.finalize(ctx, job, d, status)
}

func (o *Orchestrator) acquireLock(ctx context.Context, job *Job) error {
	lockPK := fmt.Sprintf("LOCK#%s#%s#%s", job.Project, job.Region, job.StateKey)
	deadline := time.Now().Add(o.LockTimeout)
	backoff := 250 * time.Millisecond

	for {
		writes := []facade.Write{{
			Put: &facade.Item{
				PK:         lockPK,
				SK:         "-",
				Attributes: map[string]any{"owner": job.ID, "acquired_at": time.Now().Unix()},
			},
			ConditionAttribute: "owner",
			ConditionAbsent:    true,
		}}
		err := o.Capability.KV.TransactWrite(ctx, writes, job.ID+":lock")
		if err == nil {
			return nil
		}
		if apperrors.KindOf(err) != apperrors.Conflict {
			return err
		}
		if time.Now().After(deadline) {
			return apperrors.New(apperrors.Busy, "lock %s held past timeout", lockPK)
		}
		jitter := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-ctx.Done():
			return apperrors.Wrap(apperrors.Cancelled, ctx.Err(), "lock acquisition cancelled")
		case <-time.After(backoff + jitter):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (o *Orchestrator) releaseLock(ctx context.Context, job *Job) {
	lockPK := fmt.Sprintf("LOCK#%s#%s#%s", job.Project, job.Region, job.StateKey)
	if err := o.Capability.KV.Delete(ctx, lockPK, "-", job.ID+":unlock"); err != nil && o.Logger != nil {
		o.Logger.Warn("failed to release lock", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// buildLaunchEnv constructs TF_VAR_*/INFRAWEAVE_* environment injection (spec §4.4
// "Locking → Launching").
func (o *Orchestrator) buildLaunchEnv(job *Job, plan *resolver.ResolvedPlan, d *registry.Deployment) map[string]string {
	env := map[string]string{
		"INFRAWEAVE_JOB_ID":        job.ID,
		"INFRAWEAVE_EVENT":         string(job.Event),
		"INFRAWEAVE_STATE_KEY":     job.StateKey,
		"INFRAWEAVE_ROOT_DIGEST":   plan.RootArtifactDigest,
		"INFRAWEAVE_PROJECT":       job.Project,
		"INFRAWEAVE_REGION":        job.Region,
		"INFRAWEAVE_DEPLOYMENT_ID": job.DeploymentID,
		"INFRAWEAVE_TRACK":         plan.Track,
		"INFRAWEAVE_KIND":          plan.Kind,
		"INFRAWEAVE_NAME":          plan.Name,
		"INFRAWEAVE_VERSION":       plan.Version,
	}
	for k, v := range plan.InputMap {
		env["TF_VAR_"+k] = fmt.Sprint(v)
	}
	return env
}

func (o *Orchestrator) startWithRetry(ctx context.Context, job *Job, env map[string]string) (facade.JobHandle, error) {
	var lastErr error
	for attempt := 1; attempt <= maxLaunchAttempts; attempt++ {
		handle, err := o.Capability.Exec.Start(ctx, facade.ExecStartInput{
			JobID: job.ID, Env: env, OperationID: job.ID + ":start",
		})
		if err == nil {
			return handle, nil
		}
		lastErr = err
		if !apperrors.IsRetryable(err) {
			return "", err
		}
	}
	return "", apperrors.Wrap(apperrors.Transient, lastErr, "launch failed after %d attempts", maxLaunchAttempts)
}

// awaitCompletion polls Exec.status until a terminal state or the job's wall-clock
// budget elapses (spec §5 "a job that exceeds its wall-clock budget... is cancelled").
func (o *Orchestrator) awaitCompletion(ctx context.Context, job *Job) (facade.ExecStatus, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = o.Capability.Exec.Stop(context.Background(), job.RunnerHandle)
			return "", apperrors.Wrap(apperrors.Cancelled, ctx.Err(), "job %s cancelled", job.ID)
		case <-ticker.C:
			status, err := o.Capability.Exec.Status(ctx, job.RunnerHandle)
			if err != nil {
				return "", err
			}
			switch status {
			case facade.ExecSucceeded, facade.ExecFailed:
				return status, nil
			case facade.ExecLost:
				return "", apperrors.New(apperrors.RunnerLost, "runner for job %s lost", job.ID)
			}
		}
	}
}

// finalize performs the transactional commit of spec §4.4 "Finalizing → Succeeded/Failed".
func (o *Orchestrator) finalize(ctx context.Context, job *Job, d *registry.Deployment, status facade.ExecStatus) error {
	var lastErr error
	for attempt := 1; attempt <= maxFinalizeAttempts; attempt++ {
		err := o.commitFinalize(ctx, job, d, status)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperrors.IsRetryable(err) {
			return err
		}
	}
	return apperrors.Wrap(apperrors.Transient, lastErr, "finalize failed after %d attempts", maxFinalizeAttempts)
}

func (o *Orchestrator) commitFinalize(ctx context.Context, job *Job, d *registry.Deployment, status facade.ExecStatus) error {
	if status == facade.ExecFailed {
		job.Phase = PhaseFailed
		d.Status = registry.StatusFailed
	} else {
		job.Phase = PhaseSucceeded
		d.Status = registry.StatusReady
		if job.Event == EventDestroy {
			d.Deleted = true
			d.Status = registry.StatusDeleted
		}
	}
	d.LastJobID = job.ID

	// The runner already wrote its extracted Terraform outputs through
	// Registry.UpdateOutputs before exiting (spec §4.4 "Finalizing"); d.Outputs is
	// whatever RunClaim/DestroyDeployment/EnqueueDrift started the job with and is
	// never itself populated with fresh outputs, so re-read the persisted row here
	// and carry its outputs forward instead of clobbering them with d's stale value.
	if current, found, err := o.Registry.Get(ctx, d.Project, d.Region, d.Namespace, d.Name); err == nil && found {
		d.Outputs = current.Outputs
	}

	if err := o.Registry.Upsert(ctx, *d, job.ID+":finalize"); err != nil {
		return err
	}
	lockPK := fmt.Sprintf("LOCK#%s#%s#%s", job.Project, job.Region, job.StateKey)
	if err := o.Capability.KV.Delete(ctx, lockPK, "-", job.ID+":finalize-unlock"); err != nil {
		return err
	}
	o.recordEvent(ctx, job, string(job.Event)+".finished", map[string]any{"status": string(status)})
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, job *Job, d *registry.Deployment, cause error) error {
	job.Phase = PhaseFailed
	job.FailureKind = apperrors.KindOf(cause)
	o.recordEvent(ctx, job, "job.failed", map[string]any{"kind": string(job.FailureKind), "error": cause.Error()})
	return cause
}

func (o *Orchestrator) recordEvent(ctx context.Context, job *Job, kind string, payload map[string]any) {
	if o.Events == nil {
		return
	}
	if err := o.Events.Record(ctx, job.DeploymentID, kind, payload); err != nil && o.Logger != nil {
		o.Logger.Warn("failed to record event", zap.String("job_id", job.ID), zap.String("kind", kind), zap.Error(err))
	}
}

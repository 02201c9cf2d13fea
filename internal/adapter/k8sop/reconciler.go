package k8sop

import (
	"context"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/manifest"
	"github.com/infraweave-io/control-plane/internal/metrics"
)

const ConditionTypeRunApplied = "RunApplied"

// ClaimRunner is satisfied by app.App.RunClaim, kept narrow so this adapter never
// imports internal/app or internal/router directly (spec §9).
type ClaimRunner interface {
	RunClaim(ctx context.Context, committer, commitSHA, repo, project string, claim *manifest.Claim) error
}

// Reconciler watches DeploymentClaim resources and translates each generation
// change into a run_claim dispatch, mirroring the file-based GitOps path (spec
// §4.7) but sourced from a cluster-native resource instead of a git commit.
//
// +kubebuilder:rbac:groups=infraweave.io,resources=deploymentclaims,verbs=get;list;watch
// +kubebuilder:rbac:groups=infraweave.io,resources=deploymentclaims/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch;update
type Reconciler struct {
	client.Client
	Runner   ClaimRunner
	Recorder record.EventRecorder
}

func (r *Reconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	logger := log.FromContext(ctx).WithValues("namespace", req.Namespace, "name", req.Name)

	var dc DeploymentClaim
	if err := r.Get(ctx, req.NamespacedName, &dc); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		metrics.K8sOpReconcileTotal.WithLabelValues("get_error").Inc()
		return ctrl.Result{}, err
	}

	claim := &manifest.Claim{
		APIVersion: GroupVersion.String(),
		Kind:       dc.Spec.Kind,
		Metadata:   manifest.Metadata{Name: dc.Name, Namespace: dc.Namespace},
		Spec: manifest.ClaimSpec{
			ModuleVersion: dc.Spec.ModuleVersion,
			StackVersion:  dc.Spec.StackVersion,
			Region:        dc.Spec.Region,
			Variables:     toAnyMap(dc.Spec.Variables),
		},
	}

	committer := committerFor(&dc)
	// The operator adapter has no caller-scoped project of its own (the watch is
	// cluster-wide, trusted via RBAC); "" lets RunClaim fall back to the claim's
	// namespace, matching dc.Namespace.
	runErr := r.Runner.RunClaim(ctx, committer, dc.ResourceVersion, dc.Namespace, "", claim)

	condition := metav1.Condition{
		Type:               ConditionTypeRunApplied,
		Status:             metav1.ConditionTrue,
		Reason:             "Accepted",
		Message:            "run_claim accepted",
		ObservedGeneration: dc.Generation,
	}
	outcome := "accepted"
	if runErr != nil {
		condition.Status = metav1.ConditionFalse
		condition.Reason = string(apperrors.KindOf(runErr))
		condition.Message = runErr.Error()
		outcome = "rejected"
		logger.Error(runErr, "run_claim failed")
		r.recordEventf(&dc, "Warning", "RunClaimFailed", "run_claim failed: %v", runErr)
	} else {
		r.recordEventf(&dc, "Normal", "RunClaimAccepted", "run_claim accepted for %s", dc.Spec.Kind)
	}
	metrics.K8sOpReconcileTotal.WithLabelValues(outcome).Inc()

	dc.Status.Phase = condition.Reason
	dc.Status.Message = condition.Message
	meta.SetStatusCondition(&dc.Status.Conditions, condition)
	if err := r.Status().Update(ctx, &dc); err != nil {
		return ctrl.Result{}, err
	}

	if runErr != nil && apperrors.IsRetryable(runErr) {
		return ctrl.Result{Requeue: true}, nil
	}
	return ctrl.Result{}, nil
}

func (r *Reconciler) recordEventf(obj client.Object, eventType, reason, messageFmt string, args ...any) {
	if r.Recorder == nil {
		return
	}
	r.Recorder.Eventf(obj, eventType, reason, messageFmt, args...)
}

func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&DeploymentClaim{}).
		Complete(r)
}

func committerFor(dc *DeploymentClaim) string {
	if v, ok := dc.Annotations["infraweave.io/committer"]; ok && v != "" {
		return v
	}
	return "k8sop-controller"
}

func toAnyMap(m map[string]string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

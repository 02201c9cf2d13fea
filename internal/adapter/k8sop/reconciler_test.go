package k8sop

import (
	"context"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/infraweave-io/control-plane/internal/apperrors"
	"github.com/infraweave-io/control-plane/internal/manifest"
)

func newScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		t.Fatalf("AddToScheme(client-go): %v", err)
	}
	if err := AddToScheme(scheme); err != nil {
		t.Fatalf("AddToScheme(k8sop): %v", err)
	}
	return scheme
}

type fakeRunner struct {
	err     error
	claim   *manifest.Claim
	invoked int
}

func (f *fakeRunner) RunClaim(_ context.Context, _, _, _, _ string, claim *manifest.Claim) error {
	f.invoked++
	f.claim = claim
	return f.err
}

func TestReconcileAcceptedSetsReadyCondition(t *testing.T) {
	scheme := newScheme(t)
	dc := &DeploymentClaim{
		ObjectMeta: metav1.ObjectMeta{Name: "demo", Namespace: "default"},
		Spec:       DeploymentClaimSpec{Kind: "S3Bucket", ModuleVersion: "1.0.0", Region: "us-east-1"},
	}
	cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(dc).WithStatusSubresource(dc).Build()

	runner := &fakeRunner{}
	r := &Reconciler{Client: cl, Runner: runner}

	_, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "demo"}})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if runner.invoked != 1 {
		t.Fatalf("expected RunClaim invoked once, got %d", runner.invoked)
	}
	if runner.claim.Kind != "S3Bucket" || runner.claim.Spec.Region != "us-east-1" {
		t.Fatalf("unexpected claim built from spec: %+v", runner.claim)
	}

	var got DeploymentClaim
	if err := cl.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "demo"}, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status.Phase != "Accepted" {
		t.Fatalf("expected phase Accepted, got %q", got.Status.Phase)
	}
}

func TestReconcileFailureRequeuesRetryableErrors(t *testing.T) {
	scheme := newScheme(t)
	dc := &DeploymentClaim{
		ObjectMeta: metav1.ObjectMeta{Name: "demo", Namespace: "default"},
		Spec:       DeploymentClaimSpec{Kind: "S3Bucket", Region: "us-east-1"},
	}
	cl := fake.NewClientBuilder().WithScheme(scheme).WithObjects(dc).WithStatusSubresource(dc).Build()

	runner := &fakeRunner{err: apperrors.New(apperrors.Transient, "runner unavailable")}
	r := &Reconciler{Client: cl, Runner: runner}

	result, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "demo"}})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !result.Requeue {
		t.Fatal("expected requeue for a transient run_claim error")
	}

	var got DeploymentClaim
	if err := cl.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "demo"}, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status.Phase != string(apperrors.Transient) {
		t.Fatalf("expected phase %q, got %q", apperrors.Transient, got.Status.Phase)
	}
}

func TestReconcileMissingResourceIsANoop(t *testing.T) {
	scheme := newScheme(t)
	cl := fake.NewClientBuilder().WithScheme(scheme).Build()
	r := &Reconciler{Client: cl, Runner: &fakeRunner{}}

	result, err := r.Reconcile(context.Background(), ctrl.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "missing"}})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Requeue {
		t.Fatal("expected no requeue for a deleted resource")
	}
}

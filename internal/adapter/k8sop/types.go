// Package k8sop is the thin Kubernetes-operator adapter named in spec §1/§2: it
// reconciles a DeploymentClaim custom resource by translating its spec into a claim
// manifest and invoking run_claim through the same ClaimRunner interface the GitOps
// ingester uses. Kept intentionally thin — all claim-resolution and orchestration
// logic lives in internal/resolver and internal/orchestrator, not here.
package k8sop

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

// GroupVersion is the API group/version this adapter registers against the scheme.
var GroupVersion = schema.GroupVersion{Group: "infraweave.io", Version: "v1alpha1"}

// DeploymentClaim is the CRD-less watch target: a cluster-native way to author the
// same claim manifest spec §6 defines for file-based GitOps and CLI submission.
//
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced,shortName=iwc
// +kubebuilder:printcolumn:name="Status",type=string,JSONPath=`.status.phase`
// +kubebuilder:printcolumn:name="Module",type=string,JSONPath=`.spec.moduleVersion`
type DeploymentClaim struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   DeploymentClaimSpec   `json:"spec"`
	Status DeploymentClaimStatus `json:"status,omitempty"`
}

// DeploymentClaimSpec mirrors the YAML claim manifest's spec (spec §6), projected
// into CRD fields a cluster user can `kubectl apply`.
type DeploymentClaimSpec struct {
	Kind          string            `json:"kind"`
	ModuleVersion string            `json:"moduleVersion,omitempty"`
	StackVersion  string            `json:"stackVersion,omitempty"`
	Region        string            `json:"region"`
	Variables     map[string]string `json:"variables,omitempty"`
}

// DeploymentClaimStatus reports the last-observed run_claim outcome (spec §9
// supplemented feature: condition-style status reporting, mirrored from
// internal/registry.Condition).
type DeploymentClaimStatus struct {
	Phase      string             `json:"phase,omitempty"`
	Message    string             `json:"message,omitempty"`
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
type DeploymentClaimList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []DeploymentClaim `json:"items"`
}

var (
	SchemeBuilder = &scheme.Builder{GroupVersion: GroupVersion}
	AddToScheme   = SchemeBuilder.AddToScheme
)

func init() {
	SchemeBuilder.Register(&DeploymentClaim{}, &DeploymentClaimList{})
}

// Code in this file follows the generated deepcopy pattern controller-gen would
// otherwise produce from the kubebuilder markers in types.go; hand-maintained here.

package k8sop

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto copies the receiver into out.
func (in *DeploymentClaimSpec) DeepCopyInto(out *DeploymentClaimSpec) {
	*out = *in
	if in.Variables != nil {
		out.Variables = make(map[string]string, len(in.Variables))
		for k, v := range in.Variables {
			out.Variables[k] = v
		}
	}
}

// DeepCopy returns a deep copy of in.
func (in *DeploymentClaimSpec) DeepCopy() *DeploymentClaimSpec {
	if in == nil {
		return nil
	}
	out := new(DeploymentClaimSpec)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *DeploymentClaimStatus) DeepCopyInto(out *DeploymentClaimStatus) {
	*out = *in
	if in.Conditions != nil {
		out.Conditions = make([]metav1.Condition, len(in.Conditions))
		for i := range in.Conditions {
			in.Conditions[i].DeepCopyInto(&out.Conditions[i])
		}
	}
}

// DeepCopy returns a deep copy of in.
func (in *DeploymentClaimStatus) DeepCopy() *DeploymentClaimStatus {
	if in == nil {
		return nil
	}
	out := new(DeploymentClaimStatus)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (in *DeploymentClaim) DeepCopyInto(out *DeploymentClaim) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy returns a deep copy of in.
func (in *DeploymentClaim) DeepCopy() *DeploymentClaim {
	if in == nil {
		return nil
	}
	out := new(DeploymentClaim)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *DeploymentClaim) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver into out.
func (in *DeploymentClaimList) DeepCopyInto(out *DeploymentClaimList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]DeploymentClaim, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopy returns a deep copy of in.
func (in *DeploymentClaimList) DeepCopy() *DeploymentClaimList {
	if in == nil {
		return nil
	}
	out := new(DeploymentClaimList)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *DeploymentClaimList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

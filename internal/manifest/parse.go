package manifest

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

func unmarshal(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return apperrors.Wrap(apperrors.Malformed, err, "decode manifest")
	}
	return nil
}

// ParseClaim decodes a claim document (spec §3 Claim, §6) and rejects unknown
// apiVersion/kind combinations per §4.3 step 1.
func ParseClaim(data []byte) (*Claim, error) {
	var c Claim
	if err := unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.APIVersion != "infraweave.io/v1" {
		return nil, apperrors.New(apperrors.Malformed, "unknown apiVersion %q", c.APIVersion)
	}
	if c.Kind == "" {
		return nil, apperrors.New(apperrors.Malformed, "claim kind is required")
	}
	if c.Spec.Variables == nil {
		return nil, apperrors.New(apperrors.Malformed, "spec.variables must be a mapping")
	}
	if c.Spec.ModuleVersion == "" && c.Spec.StackVersion == "" {
		return nil, apperrors.New(apperrors.Malformed, "claim must set spec.moduleVersion or spec.stackVersion")
	}
	return &c, Validate(&c)
}

// ParseModule decodes a module.yaml document.
func ParseModule(data []byte) (*ModuleManifest, error) {
	var m ModuleManifest
	if err := unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, Validate(&m)
}

// ParseStack decodes a stack.yaml document.
func ParseStack(data []byte) (*StackManifest, error) {
	var s StackManifest
	if err := unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, Validate(&s)
}

// ParseProvider decodes a provider.yaml document.
func ParseProvider(data []byte) (*ProviderManifest, error) {
	var p ProviderManifest
	if err := unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, Validate(&p)
}

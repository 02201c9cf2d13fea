package main

import (
	"gopkg.in/yaml.v3"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

// claimMeta reads just the metadata block of a claim file, letting `destroy` identify
// a deployment without running the claim through manifest.ParseClaim's full spec
// validation — a destroy target doesn't need a resolvable module version.
type claimMeta struct {
	Metadata struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
}

func claimName(data []byte) (string, error) {
	var m claimMeta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return "", &cliError{exitCode: exitUserError, cause: err}
	}
	if m.Metadata.Name == "" {
		return "", &cliError{exitCode: exitUserError, cause: apperrors.New(apperrors.Malformed, "claim metadata.name is required")}
	}
	return m.Metadata.Name, nil
}

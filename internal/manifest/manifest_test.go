package manifest

import (
	"testing"

	"github.com/infraweave-io/control-plane/internal/apperrors"
)

func TestParseClaimRejectsUnknownAPIVersion(t *testing.T) {
	_, err := ParseClaim([]byte(`
apiVersion: other.io/v2
kind: S3Bucket
metadata: { name: demo }
spec:
  moduleVersion: "0.1.0"
  region: us-east-1
  variables: {}
`))
	if apperrors.KindOf(err) != apperrors.Malformed {
		t.Fatalf("expected Malformed, got %v", err)
	}
}

func TestParseClaimRequiresVersionPin(t *testing.T) {
	_, err := ParseClaim([]byte(`
apiVersion: infraweave.io/v1
kind: S3Bucket
metadata: { name: demo }
spec:
  region: us-east-1
  variables: {}
`))
	if err == nil {
		t.Fatal("expected error when neither moduleVersion nor stackVersion is set")
	}
}

func TestParseClaimAccepts(t *testing.T) {
	c, err := ParseClaim([]byte(`
apiVersion: infraweave.io/v1
kind: S3Bucket
metadata: { name: demo, namespace: default }
spec:
  moduleVersion: "0.1.0"
  region: us-east-1
  variables:
    bucketName: b-123
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Spec.Variables["bucketName"] != "b-123" {
		t.Fatalf("unexpected variables: %v", c.Spec.Variables)
	}
}

func TestValidateVariablesUnknown(t *testing.T) {
	schema := []Variable{{Name: "bucketName", Type: TypeString}}
	err := ValidateVariables(schema, map[string]any{"typo": "x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateVariablesMissingRequired(t *testing.T) {
	schema := []Variable{{Name: "bucketName", Type: TypeString}}
	err := ValidateVariables(schema, map[string]any{})
	if err == nil {
		t.Fatal("expected MissingRequired error")
	}
}

func TestValidateVariablesTypeMismatch(t *testing.T) {
	schema := []Variable{{Name: "count", Type: TypeNumber}}
	err := ValidateVariables(schema, map[string]any{"count": "not-a-number"})
	if err == nil {
		t.Fatal("expected TypeMismatch error")
	}
}

func TestValidateVariablesConstraintViolation(t *testing.T) {
	minLen := 3
	schema := []Variable{{
		Name:        "bucketName",
		Type:        TypeString,
		Constraints: []Constraint{{MinLength: &minLen}},
	}}
	err := ValidateVariables(schema, map[string]any{"bucketName": "ab"})
	if err == nil {
		t.Fatal("expected ConstraintViolation error")
	}
}

func TestValidateVariablesDefaultAllowsOmission(t *testing.T) {
	schema := []Variable{{Name: "region", Type: TypeString, Default: "us-east-1"}}
	if err := ValidateVariables(schema, map[string]any{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package main

import "testing"

func TestClaimNameExtractsMetadataName(t *testing.T) {
	doc := []byte(`
apiVersion: infraweave.io/v1
kind: S3Bucket
metadata:
  name: billing-bucket
  namespace: billing
spec:
  moduleVersion: 1.0.0
  region: us-east-1
  variables: {}
`)
	name, err := claimName(doc)
	if err != nil {
		t.Fatalf("claimName: %v", err)
	}
	if name != "billing-bucket" {
		t.Fatalf("expected billing-bucket, got %q", name)
	}
}

func TestClaimNameRejectsMissingName(t *testing.T) {
	_, err := claimName([]byte("metadata:\n  namespace: billing\n"))
	if err == nil {
		t.Fatal("expected an error for a claim with no metadata.name")
	}
}

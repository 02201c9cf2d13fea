package terraform

import (
	"strings"
	"testing"

	"github.com/infraweave-io/control-plane/internal/manifest"
)

func TestModuleRootHoistsInputsAndOutputs(t *testing.T) {
	mod := manifest.ModuleManifest{
		Spec: manifest.ModuleSpec{
			ModuleName: "S3Bucket",
			Version:    "0.1.0",
			Inputs:     []manifest.Variable{{Name: "bucketName", Type: manifest.TypeString}},
			Outputs:    []manifest.Variable{{Name: "arn", Type: manifest.TypeString}},
		},
	}
	out := ModuleRoot(mod, []ProviderSource{{Alias: "aws", Source: "hashicorp/aws", Version: ">= 5.0"}})

	for _, want := range []string{
		`variable "bucketName"`,
		`module "this"`,
		`source = "./src"`,
		`bucketName = var.bucketName`,
		`output "arn"`,
		`value = module.this.arn`,
		`source  = "hashicorp/aws"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestStackRootWiresClaimedModules(t *testing.T) {
	stack := manifest.StackManifest{
		Spec: manifest.StackSpec{
			Modules: []manifest.ModuleClaim{
				{Module: "S3Bucket", Version: "0.1.0", Alias: "bucket", VariableMapping: map[string]string{"bucketName": "\"b-123\""}},
				{Module: "IamPolicy", Version: "0.2.0", Alias: "policy", VariableMapping: map[string]string{"resourceArn": "bucket.arn"}},
			},
		},
	}
	out := StackRoot(stack, nil)

	if !strings.Contains(out, `module "bucket"`) || !strings.Contains(out, `source = "./modules/bucket"`) {
		t.Fatalf("expected bucket module block, got:\n%s", out)
	}
	if !strings.Contains(out, "resourceArn = module.bucket.arn") {
		t.Fatalf("expected cross-module ref rewritten to module.bucket.arn, got:\n%s", out)
	}
	if !strings.Contains(out, `bucketName = "b-123"`) {
		t.Fatalf("expected literal variable mapping preserved verbatim, got:\n%s", out)
	}
}

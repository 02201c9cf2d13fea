// Package terraform generates the synthetic root modules the catalog service stores
// alongside published artifacts (spec §4.2 step 3, §9). It is a string-template
// transformation over a small explicit grammar — variable blocks, provider blocks, a
// module invocation block, and output blocks — not a general HCL parser; anything
// outside that grammar is reproduced verbatim from the source module's own files.
package terraform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/infraweave-io/control-plane/internal/manifest"
)

// ProviderSource maps a provider alias to its Terraform source address and version
// constraint, resolved by the catalog against the provider table before compilation.
type ProviderSource struct {
	Alias   string
	Source  string
	Version string
}

// ModuleRoot renders the root module generated for a single published module (spec
// §4.2 step 3): declares the listed providers, hoists all inputs to root variables,
// hoists outputs to root outputs, and invokes the module with `source = "./src"`.
func ModuleRoot(mod manifest.ModuleManifest, providers []ProviderSource) string {
	var b strings.Builder

	writeTerraformBlock(&b, providers)
	writeVariableBlocks(&b, mod.Spec.Inputs)

	b.WriteString(fmt.Sprintf("module %q {\n", "this"))
	b.WriteString("  source = \"./src\"\n")
	for _, v := range mod.Spec.Inputs {
		fmt.Fprintf(&b, "  %s = var.%s\n", v.Name, v.Name)
	}
	b.WriteString("}\n\n")

	writeOutputBlocks(&b, mod.Spec.Outputs, "this")
	return b.String()
}

// StackRoot renders the root module generated for a stack (spec §4.2 step 3): the
// providers of all claimed modules are merged, each claimed module is placed under
// ./modules/<alias> with its own source, and variable mappings plus cross-module
// outputs are wired between them.
func StackRoot(stack manifest.StackManifest, providers []ProviderSource) string {
	var b strings.Builder

	writeTerraformBlock(&b, providers)
	writeVariableBlocks(&b, stack.Spec.Inputs)

	for _, claim := range stack.Spec.Modules {
		fmt.Fprintf(&b, "module %q {\n", claim.Alias)
		fmt.Fprintf(&b, "  source = \"./modules/%s\"\n", claim.Alias)
		keys := make([]string, 0, len(claim.VariableMapping))
		for k := range claim.VariableMapping {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, localVar := range keys {
			expr := claim.VariableMapping[localVar]
			fmt.Fprintf(&b, "  %s = %s\n", localVar, rewriteCrossModuleRef(expr))
		}
		b.WriteString("}\n\n")
	}

	writeOutputBlocks(&b, stack.Spec.Outputs, "")
	return b.String()
}

func writeTerraformBlock(b *strings.Builder, providers []ProviderSource) {
	if len(providers) == 0 {
		return
	}
	b.WriteString("terraform {\n  required_providers {\n")
	for _, p := range providers {
		fmt.Fprintf(b, "    %s = {\n      source  = %q\n", p.Alias, p.Source)
		if p.Version != "" {
			fmt.Fprintf(b, "      version = %q\n", p.Version)
		}
		b.WriteString("    }\n")
	}
	b.WriteString("  }\n}\n\n")
}

func writeVariableBlocks(b *strings.Builder, vars []manifest.Variable) {
	for _, v := range vars {
		fmt.Fprintf(b, "variable %q {\n", v.Name)
		fmt.Fprintf(b, "  type = %s\n", hclType(v.Type))
		if v.Nullable {
			b.WriteString("  nullable = true\n")
		}
		b.WriteString("}\n\n")
	}
}

func writeOutputBlocks(b *strings.Builder, vars []manifest.Variable, moduleRef string) {
	for _, v := range vars {
		fmt.Fprintf(b, "output %q {\n", v.Name)
		if moduleRef != "" {
			fmt.Fprintf(b, "  value = module.%s.%s\n", moduleRef, v.Name)
		} else {
			fmt.Fprintf(b, "  value = %s\n", v.Name)
		}
		b.WriteString("}\n\n")
	}
}

func hclType(t manifest.VariableType) string {
	switch t {
	case manifest.TypeString:
		return "string"
	case manifest.TypeNumber:
		return "number"
	case manifest.TypeBool:
		return "bool"
	case manifest.TypeList:
		return "list(any)"
	case manifest.TypeMap:
		return "map(any)"
	default:
		return "any"
	}
}

// rewriteCrossModuleRef passes an expression through unchanged unless it is a bare
// `alias.output` reference, in which case it is qualified as `module.alias.output` —
// the one semantic rewrite the grammar performs; anything else (literals, dynamic
// expressions) is reproduced verbatim per spec §9.
func rewriteCrossModuleRef(expr string) string {
	trimmed := strings.TrimSpace(expr)
	if looksLikeBareModuleRef(trimmed) {
		return "module." + trimmed
	}
	return expr
}

func looksLikeBareModuleRef(s string) bool {
	if s == "" || strings.ContainsAny(s, " \"'(){}[]") {
		return false
	}
	return strings.Count(s, ".") == 1
}

// Package manifest parses and validates the YAML documents named in spec §6: claim,
// module, stack, and provider manifests.
package manifest

// VariableType enumerates the scalar/compound kinds a module input or output can carry.
type VariableType string

const (
	TypeString VariableType = "string"
	TypeNumber VariableType = "number"
	TypeBool   VariableType = "bool"
	TypeList   VariableType = "list"
	TypeMap    VariableType = "map"
)

// Constraint is a single predicate applied to a variable's value (spec §4.3 step 3:
// "regex/length/enum").
type Constraint struct {
	Regex     string `yaml:"regex,omitempty"`
	MinLength *int   `yaml:"minLength,omitempty"`
	MaxLength *int   `yaml:"maxLength,omitempty"`
	Enum      []string `yaml:"enum,omitempty"`
}

// Variable describes one entry in a module's input or output schema.
type Variable struct {
	Name        string       `yaml:"name" validate:"required"`
	Type        VariableType `yaml:"type" validate:"required,oneof=string number bool list map"`
	Nullable    bool         `yaml:"nullable,omitempty"`
	Default     any          `yaml:"default,omitempty"`
	Description string       `yaml:"description,omitempty"`
	Constraints []Constraint `yaml:"constraints,omitempty"`
}

// ProviderRequirement names a provider dependency and the version range a module/stack
// accepts, e.g. {name: "aws", version: ">= 5.0, < 6.0"} (spec §3 Module).
type ProviderRequirement struct {
	Name    string `yaml:"name" validate:"required"`
	Version string `yaml:"version,omitempty"`
}

// Example is a documented sample invocation of a module.
type Example struct {
	Name        string         `yaml:"name" validate:"required"`
	Description string         `yaml:"description,omitempty"`
	Variables   map[string]any `yaml:"variables,omitempty"`
}

// ModuleClaim is one child of a Stack's composition (spec §3 Stack).
type ModuleClaim struct {
	Module          string            `yaml:"module" validate:"required"`
	Version         string            `yaml:"version" validate:"required"`
	Alias           string            `yaml:"alias" validate:"required"`
	VariableMapping map[string]string `yaml:"variableMapping,omitempty"`
}

// Metadata is the shared `metadata: { name }` block across manifest kinds.
type Metadata struct {
	Name      string `yaml:"name" validate:"required"`
	Namespace string `yaml:"namespace,omitempty"`
}

// ModuleSpec is the body of a module.yaml manifest (spec §6).
type ModuleSpec struct {
	ModuleName  string                `yaml:"moduleName" validate:"required"`
	Version     string                `yaml:"version" validate:"required"`
	Reference   string                `yaml:"reference,omitempty"`
	Providers   []ProviderRequirement `yaml:"providers,omitempty"`
	Description string                `yaml:"description,omitempty"`
	Examples    []Example             `yaml:"examples,omitempty"`
	Inputs      []Variable            `yaml:"inputs,omitempty"`
	Outputs     []Variable            `yaml:"outputs,omitempty"`
}

// ModuleManifest is the full parsed module.yaml document.
type ModuleManifest struct {
	APIVersion string     `yaml:"apiVersion" validate:"required"`
	Kind       string     `yaml:"kind" validate:"required,eq=Module"`
	Metadata   Metadata   `yaml:"metadata" validate:"required"`
	Spec       ModuleSpec `yaml:"spec" validate:"required"`
}

// StackSpec additionally carries the ordered ModuleClaim composition (spec §3 Stack).
type StackSpec struct {
	ModuleSpec `yaml:",inline"`
	Modules    []ModuleClaim `yaml:"modules" validate:"required,min=1,dive"`
}

// StackManifest is the full parsed stack.yaml document.
type StackManifest struct {
	APIVersion string    `yaml:"apiVersion" validate:"required"`
	Kind       string    `yaml:"kind" validate:"required,eq=Stack"`
	Metadata   Metadata  `yaml:"metadata" validate:"required"`
	Spec       StackSpec `yaml:"spec" validate:"required"`
}

// ProviderSpec is the body of a provider.yaml manifest.
type ProviderSpec struct {
	Version          string     `yaml:"version" validate:"required"`
	SourceAddress    string     `yaml:"sourceAddress" validate:"required"`
	RequiredVariable []Variable `yaml:"requiredVariables,omitempty"`
}

// ProviderManifest is the full parsed provider.yaml document.
type ProviderManifest struct {
	APIVersion string       `yaml:"apiVersion" validate:"required"`
	Kind       string       `yaml:"kind" validate:"required,eq=Provider"`
	Metadata   Metadata     `yaml:"metadata" validate:"required"`
	Spec       ProviderSpec `yaml:"spec" validate:"required"`
}

// WebhookSpec is a drift-detection notification target.
type WebhookSpec struct {
	URL     string `yaml:"url" validate:"required"`
	Message string `yaml:"message,omitempty"`
}

// DriftDetection configures the periodic reconciliation sweep for one claim (spec §6).
type DriftDetection struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      string        `yaml:"interval,omitempty"`
	AutoRemediate bool          `yaml:"autoRemediate,omitempty"`
	Webhooks      []WebhookSpec `yaml:"webhooks,omitempty"`
}

// DependsOn names another claim this one references (spec §6 `dependsOn`).
type DependsOn struct {
	Kind string `yaml:"kind" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

// ClaimSpec is the body of a claim document (spec §3 Claim, §6).
type ClaimSpec struct {
	ModuleVersion  string          `yaml:"moduleVersion,omitempty"`
	StackVersion   string          `yaml:"stackVersion,omitempty"`
	// Track selects the catalog visibility channel to resolve against (spec §3
	// Track); the manifest shape in spec §6 does not name this field explicitly, so
	// it defaults to "stable" when omitted (see DESIGN.md).
	Track          string          `yaml:"track,omitempty"`
	Region         string          `yaml:"region" validate:"required"`
	Variables      map[string]any  `yaml:"variables"`
	DriftDetection *DriftDetection `yaml:"driftDetection,omitempty"`
	DependsOn      []DependsOn     `yaml:"dependsOn,omitempty"`
}

// Claim is the full parsed claim document submitted by `run_claim` (spec §3, §6).
type Claim struct {
	APIVersion string    `yaml:"apiVersion" validate:"required"`
	Kind       string    `yaml:"kind" validate:"required"`
	Metadata   Metadata  `yaml:"metadata" validate:"required"`
	Spec       ClaimSpec `yaml:"spec" validate:"required"`
}

package model

// Resource is one declared infrastructure resource. Its canonical id is
// "{type}.{name}"; that literal format is a contract with downstream
// blast-radius consumers and must not change without a migration note.
type Resource struct {
	Type         string            `json:"type"`
	Name         string            `json:"name"`
	Provider     string            `json:"provider,omitempty"`
	File         string            `json:"file"`
	Line         int               `json:"line"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"` // explicit depends_on
	References   []string          `json:"references,omitempty"`   // interpolated references, superset scan
}

// ID returns the canonical resource id.
func (r Resource) ID() string {
	return r.Type + "." + r.Name
}

// InfraModule is a module call inside an infrastructure tree.
type InfraModule struct {
	Name       string            `json:"name"`
	Source     string            `json:"source,omitempty"`
	File       string            `json:"file"`
	Line       int               `json:"line"`
	Variables  map[string]string `json:"variables,omitempty"`
	References []string          `json:"references,omitempty"`
}

// InfraVariable is a declared input variable.
type InfraVariable struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	Default     string   `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
	File        string   `json:"file"`
	Line        int      `json:"line"`
	UsedBy      []string `json:"used_by,omitempty"` // resource/module ids referencing var.<name>
}

// InfraOutput is a declared output value.
type InfraOutput struct {
	Name        string   `json:"name"`
	Value       string   `json:"value,omitempty"`
	Description string   `json:"description,omitempty"`
	File        string   `json:"file"`
	Line        int      `json:"line"`
	References  []string `json:"references,omitempty"`
}

// InfraIndex is the infrastructure counterpart of StructureIndex: the
// merged result of parsing every declarative config file in a tree.
type InfraIndex struct {
	RunID     string          `json:"runId"`
	Root      string          `json:"root"`
	Resources []Resource      `json:"resources"`
	Modules   []InfraModule   `json:"modules"`
	Variables []InfraVariable `json:"variables"`
	Outputs   []InfraOutput   `json:"outputs"`
	Providers []string        `json:"providers,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
}

// DependencyGraph maps a node id to the ids it depends on. Edge direction
// is "depends on", never "is depended on by".
type DependencyGraph map[string][]string

// Severity classifies the size of a blast radius.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// BlastRadius is the transitive-dependent set for one node that has at
// least one direct dependent.
type BlastRadius struct {
	Target            string   `json:"target"`
	AffectedResources []string `json:"affected_resources"`
	Severity          Severity `json:"severity"`
}

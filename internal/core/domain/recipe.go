// Package domain contains the core value types and graph algorithms of the
// build engine: recipes, rules, builds, the interned node/edge graph, and
// the command log entry shape.
package domain

// DepsFormat identifies how a rule's compiler-emitted dependency output, if
// any, should be interpreted.
type DepsFormat string

const (
	// DepsNone means the rule declares no discovered-dependency format.
	DepsNone DepsFormat = "none"
	// DepsGCC means the rule's depfile is a GCC/Clang -MMD makefile fragment.
	DepsGCC DepsFormat = "gcc"
	// DepsMSVC is accepted at parse time but treated identically to DepsNone;
	// no MSVC-specific dependency capture is implemented.
	DepsMSVC DepsFormat = "msvc"
	// DepsDMD is accepted at parse time but treated identically to DepsNone.
	DepsDMD DepsFormat = "dmd"
)

// DefaultDescription is the description template used by a Rule that omits one.
const DefaultDescription = "Processing $in"

// Rule is an immutable template for producing outputs from inputs via a
// command line. Rules are created when a Recipe is parsed and never mutated
// afterward.
type Rule struct {
	Name        string
	Description string
	Command     string
	Depfile     string
	Deps        DepsFormat
	Jobs        int
}

// EffectiveDescription returns the rule's description, falling back to
// DefaultDescription when none was declared.
func (r Rule) EffectiveDescription() string {
	if r.Description == "" {
		return DefaultDescription
	}
	return r.Description
}

// Build instantiates a Rule with concrete input/output paths and optional
// local bindings.
type Build struct {
	RuleName        string
	Inputs          []string
	ImplicitInputs  []string
	OrderOnlyInputs []string
	Outputs         []string
	ImplicitOutputs []string
	Bindings        map[string]string
	// Jobs overrides the rule's default when non-zero.
	Jobs int
}

// Recipe is the declarative build input: an ordered set of rules, an
// ordered set of builds, top-level bindings, and a cache directory.
type Recipe struct {
	Rules    []Rule
	Builds   []Build
	Bindings map[string]string
	// CacheDir is where the command log and any declared outputs live.
	// Defaults to the process working directory.
	CacheDir string
}

// RuleByName returns the rule with the given name and whether it was found.
func (r *Recipe) RuleByName(name string) (Rule, bool) {
	for _, rule := range r.Rules {
		if rule.Name == name {
			return rule, true
		}
	}
	return Rule{}, false
}

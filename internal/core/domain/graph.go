package domain

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.trai.ch/cook/internal/engine/expand"
	"go.trai.ch/zerr"
)

// NodeState is the freshness classification of a file artifact.
type NodeState int

const (
	// NodeUnknown means check_state has not yet run for this node.
	NodeUnknown NodeState = iota
	// NodeNotExist means the node has a producing edge but no file on disk.
	NodeNotExist
	// NodeDirty means the node's output exists but is stale relative to its inputs or command hash.
	NodeDirty
	// NodeUpToDate means the node needs no rebuild.
	NodeUpToDate
)

// String returns a human-readable name for the state.
func (s NodeState) String() string {
	switch s {
	case NodeUnknown:
		return "unknown"
	case NodeNotExist:
		return "not-exist"
	case NodeDirty:
		return "dirty"
	case NodeUpToDate:
		return "up-to-date"
	default:
		return "invalid"
	}
}

// EdgeState is the scheduling lifecycle of a build instance. States advance
// monotonically; there are no back-transitions.
type EdgeState int

const (
	// EdgeUnknown means the edge has not yet been visited by the planner.
	EdgeUnknown EdgeState = iota
	// EdgeMustBuild means the planner has determined the edge needs to run
	// but it is still waiting on at least one input.
	EdgeMustBuild
	// EdgeReady means the edge's inputs are all up to date and it sits in
	// the ready queue awaiting dispatch.
	EdgeReady
	// EdgeInProgress means a worker is currently running the edge's command.
	EdgeInProgress
	// EdgeCompleted means the edge finished successfully.
	EdgeCompleted
)

// String returns a human-readable name for the state.
func (s EdgeState) String() string {
	switch s {
	case EdgeUnknown:
		return "unknown"
	case EdgeMustBuild:
		return "must-build"
	case EdgeReady:
		return "ready"
	case EdgeInProgress:
		return "in-progress"
	case EdgeCompleted:
		return "completed"
	default:
		return "invalid"
	}
}

// Node is a file artifact in the build graph, keyed by its canonical path.
type Node struct {
	Path InternedString
	// State starts Unknown and moves monotonically toward UpToDate within a
	// build session.
	State NodeState
	// MTime is the modification time observed the last time this node's
	// state was computed.
	MTime time.Time
	// InEdge is the index into Graph.Edges of the edge that produces this
	// node, or -1 if the node is a primary input.
	InEdge int
	// OutEdges lists the indices of edges that consume this node as an input.
	OutEdges []int
}

// NeedsRebuild reports whether the node's current state requires its
// producing edge to run.
func (n *Node) NeedsRebuild() bool {
	return n.State == NodeNotExist || n.State == NodeDirty
}

// Edge is one Build instance connecting input nodes to output nodes via a
// rule. Variable expansion of its command/description/depfile is performed
// once, lazily, and cached.
type Edge struct {
	Rule *Rule
	Jobs int
	State EdgeState

	Inputs          []InternedString
	ImplicitInputs  []InternedString
	OrderOnlyInputs []InternedString
	Outputs         []InternedString
	ImplicitOutputs []InternedString

	Bindings map[string]string

	once        sync.Once
	expandErr   error
	command     string
	description string
	depfile     string
}

// AllInputs returns inputs, implicit inputs, and order-only inputs, in that order.
func (e *Edge) AllInputs() []InternedString {
	all := make([]InternedString, 0, len(e.Inputs)+len(e.ImplicitInputs)+len(e.OrderOnlyInputs))
	all = append(all, e.Inputs...)
	all = append(all, e.ImplicitInputs...)
	all = append(all, e.OrderOnlyInputs...)
	return all
}

// UpdateOnlyInputs returns inputs and implicit inputs, excluding order-only
// inputs, which influence scheduling order but not the dirty decision.
func (e *Edge) UpdateOnlyInputs() []InternedString {
	all := make([]InternedString, 0, len(e.Inputs)+len(e.ImplicitInputs))
	all = append(all, e.Inputs...)
	all = append(all, e.ImplicitInputs...)
	return all
}

// AllOutputs returns outputs and implicit outputs, in that order.
func (e *Edge) AllOutputs() []InternedString {
	all := make([]InternedString, 0, len(e.Outputs)+len(e.ImplicitOutputs))
	all = append(all, e.Outputs...)
	all = append(all, e.ImplicitOutputs...)
	return all
}

// AddDiscoveredInput inserts a dependency path discovered from a depfile.
// It lands after the declared implicit inputs and before order-only inputs,
// which is the region AllInputs already reserves for ImplicitInputs.
func (e *Edge) AddDiscoveredInput(path InternedString) {
	for _, p := range e.ImplicitInputs {
		if p == path {
			return
		}
	}
	e.ImplicitInputs = append(e.ImplicitInputs, path)
}

// ensureExpanded performs the one-time variable expansion of the edge's
// command, description, and depfile templates.
func (e *Edge) ensureExpanded(recipeBindings map[string]string) error {
	e.once.Do(func() {
		inPaths := make([]string, len(e.Inputs))
		for i, p := range e.Inputs {
			inPaths[i] = p.String()
		}
		outAll := e.AllOutputs()
		outPaths := make([]string, len(outAll))
		for i, p := range outAll {
			outPaths[i] = p.String()
		}
		inVal := expand.JoinEscaped(inPaths)
		outVal := expand.JoinEscaped(outPaths)

		resolve := func(name string) (string, bool) {
			if v, ok := e.Bindings[name]; ok {
				return v, true
			}
			if v, ok := recipeBindings[name]; ok {
				return v, true
			}
			return "", false
		}

		var err error
		e.command, err = expand.Template(e.Rule.Command, inVal, outVal, resolve)
		if err != nil {
			e.expandErr = err
			return
		}
		e.description, err = expand.Template(e.Rule.EffectiveDescription(), inVal, outVal, resolve)
		if err != nil {
			e.expandErr = err
			return
		}
		if e.Rule.Depfile != "" {
			e.depfile, err = expand.Template(e.Rule.Depfile, inVal, outVal, resolve)
			if err != nil {
				e.expandErr = err
				return
			}
		}
	})
	return e.expandErr
}

// Command returns the edge's fully expanded command line.
func (e *Edge) Command(recipeBindings map[string]string) (string, error) {
	if err := e.ensureExpanded(recipeBindings); err != nil {
		return "", err
	}
	return e.command, nil
}

// Description returns the edge's fully expanded description.
func (e *Edge) Description(recipeBindings map[string]string) (string, error) {
	if err := e.ensureExpanded(recipeBindings); err != nil {
		return "", err
	}
	return e.description, nil
}

// DepfilePath returns the edge's fully expanded depfile path, empty if the
// rule declares none.
func (e *Edge) DepfilePath(recipeBindings map[string]string) (string, error) {
	if err := e.ensureExpanded(recipeBindings); err != nil {
		return "", err
	}
	return e.depfile, nil
}

// Graph is the interned dependency graph of nodes (files) and edges
// (builds). Nodes live in a map keyed by interned path; edges live in a
// slice indexed by position. Cross-references are by key/index, never by
// owning pointer, so the structure has no cycles at the storage level even
// though the graph it represents may (erroneously) have one.
type Graph struct {
	Nodes map[InternedString]*Node
	Edges []*Edge
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[InternedString]*Node)}
}

// intern returns the Node for path, creating it if necessary.
func (g *Graph) intern(path string) *Node {
	key := NewInternedString(filepath.Clean(path))
	n, ok := g.Nodes[key]
	if !ok {
		n = &Node{Path: key, InEdge: -1}
		g.Nodes[key] = n
	}
	return n
}

// InternForDiscovery returns the Node for path, creating it as a primary
// input (no producing edge) if the state engine has not seen it before. It
// is the entry point for depfile-discovered dependencies, which may name
// files no Build declares.
func (g *Graph) InternForDiscovery(path string) InternedString {
	return g.intern(path).Path
}

// internAll interns every path in paths and returns their keys in order.
func (g *Graph) internAll(paths []string) []InternedString {
	out := make([]InternedString, len(paths))
	for i, p := range paths {
		out[i] = g.intern(p).Path
	}
	return out
}

// BuildGraph constructs a Graph from a Recipe in one pass: rules are
// indexed by name, every input/output path is interned into a Node, and
// each Build becomes an Edge wired into its Nodes' in_edge/out_edges.
func BuildGraph(recipe *Recipe) (*Graph, error) {
	ruleIdx := make(map[string]*Rule, len(recipe.Rules))
	for i := range recipe.Rules {
		ruleIdx[recipe.Rules[i].Name] = &recipe.Rules[i]
	}

	g := NewGraph()
	for _, b := range recipe.Builds {
		rule, ok := ruleIdx[b.RuleName]
		if !ok {
			return nil, zerr.With(ErrUnknownRule, "rule", b.RuleName)
		}

		jobs := rule.Jobs
		if jobs == 0 {
			jobs = 1
		}
		if b.Jobs != 0 {
			jobs = b.Jobs
		}
		if jobs <= 0 {
			return nil, zerr.With(ErrZeroJobs, "rule", b.RuleName)
		}

		e := &Edge{
			Rule:     rule,
			Jobs:     jobs,
			Bindings: b.Bindings,
		}
		e.Inputs = g.internAll(b.Inputs)
		e.ImplicitInputs = g.internAll(b.ImplicitInputs)
		e.OrderOnlyInputs = g.internAll(b.OrderOnlyInputs)
		e.Outputs = g.internAll(b.Outputs)
		e.ImplicitOutputs = g.internAll(b.ImplicitOutputs)

		idx := len(g.Edges)
		g.Edges = append(g.Edges, e)

		for _, in := range e.AllInputs() {
			n := g.Nodes[in]
			n.OutEdges = append(n.OutEdges, idx)
		}
		for _, out := range e.AllOutputs() {
			n := g.Nodes[out]
			if n.InEdge != -1 {
				return nil, zerr.With(ErrDuplicateOutputProducer, "path", out.String())
			}
			n.InEdge = idx
		}
	}

	return g, nil
}

// Validate performs a topological check of the graph and returns
// ErrNoProgressPossible if a cycle exists. The build graph is a DAG by
// contract; this check is a best-effort, load-time safety net — the
// scheduler is still required to detect and surface stalled progress at
// build time regardless of whether Validate was called.
func (g *Graph) Validate() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(g.Edges))
	var path []int

	var visit func(idx int) error
	visit = func(idx int) error {
		color[idx] = gray
		path = append(path, idx)

		for _, in := range g.Edges[idx].UpdateOnlyInputs() {
			n := g.Nodes[in]
			if n.InEdge < 0 {
				continue
			}
			switch color[n.InEdge] {
			case gray:
				return g.buildCycleError(path, n.InEdge)
			case white:
				if err := visit(n.InEdge); err != nil {
					return err
				}
			}
		}

		color[idx] = black
		path = path[:len(path)-1]
		return nil
	}

	for idx := range g.Edges {
		if color[idx] == white {
			if err := visit(idx); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildCycleError renders the cycle from path back to the edge at index back
// as a rule-name chain for the error's metadata.
func (g *Graph) buildCycleError(path []int, back int) error {
	start := 0
	for i, idx := range path {
		if idx == back {
			start = i
			break
		}
	}
	names := make([]string, 0, len(path)-start+1)
	for _, idx := range path[start:] {
		names = append(names, g.Edges[idx].Rule.Name)
	}
	names = append(names, g.Edges[back].Rule.Name)
	return zerr.With(ErrNoProgressPossible, "cycle", strings.Join(names, " -> "))
}

// Sinks returns every node with no out edges: the default build targets
// when the caller supplies none explicitly.
func (g *Graph) Sinks() []*Node {
	var sinks []*Node
	for _, n := range g.Nodes {
		if len(n.OutEdges) == 0 {
			sinks = append(sinks, n)
		}
	}
	return sinks
}

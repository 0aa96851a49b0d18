// Package state implements the per-node freshness classification that
// drives planning: check_state, its idempotent wrapper check_state_if_needed,
// and the post-build fingerprint update.
package state

import (
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/cook/internal/core/ports"
	"go.trai.ch/zerr"
)

// Engine classifies graph nodes against the filesystem and a command log.
type Engine struct {
	graph    *domain.Graph
	log      ports.CommandLog
	bindings map[string]string
}

// NewEngine creates a state Engine bound to graph and log, using bindings as
// the recipe's top-level variable fallback for command expansion.
func NewEngine(graph *domain.Graph, log ports.CommandLog, bindings map[string]string) *Engine {
	return &Engine{graph: graph, log: log, bindings: bindings}
}

// CheckStateIfNeeded runs check_state on n unless it has already been
// classified this session.
func (e *Engine) CheckStateIfNeeded(n *domain.Node) error {
	if n.State != domain.NodeUnknown {
		return nil
	}
	return e.checkState(n)
}

// checkState computes n's freshness per the state engine's six rules,
// recursing into n's update-only inputs first.
func (e *Engine) checkState(n *domain.Node) error {
	if n.InEdge < 0 {
		info, err := os.Stat(n.Path.String())
		if err != nil {
			return zerr.With(domain.ErrMissingPrimaryInput, "path", n.Path.String())
		}
		n.MTime = info.ModTime()
		n.State = domain.NodeUpToDate
		return nil
	}

	edge := e.graph.Edges[n.InEdge]

	info, err := os.Stat(n.Path.String())
	if err != nil {
		if os.IsNotExist(err) {
			n.State = domain.NodeNotExist
			return nil
		}
		return zerr.With(zerr.Wrap(err, "failed to stat output"), "path", n.Path.String())
	}
	n.MTime = info.ModTime()

	entry, hasEntry := e.log.Entry(n.Path.String())
	if hasEntry {
		for _, dep := range entry.Deps {
			edge.AddDiscoveredInput(e.graph.InternForDiscovery(dep))
		}
	}

	updateInputs := edge.UpdateOnlyInputs()
	dirty := false
	for _, in := range updateInputs {
		inNode := e.graph.Nodes[in]
		if err := e.CheckStateIfNeeded(inNode); err != nil {
			return err
		}
		if inNode.NeedsRebuild() || inNode.MTime.After(n.MTime) {
			dirty = true
			break
		}
	}
	if dirty {
		n.State = domain.NodeDirty
		return nil
	}

	if !hasEntry {
		n.State = domain.NodeDirty
		return nil
	}

	var mostRecent int64
	for _, in := range updateInputs {
		inNode := e.graph.Nodes[in]
		if t := inNode.MTime.UnixNano(); t > mostRecent {
			mostRecent = t
		}
	}

	hash, err := e.CommandHash(edge)
	if err != nil {
		return err
	}

	if entry.CmdHash != hash || mostRecent > entry.MTime.UnixNano() {
		n.State = domain.NodeDirty
	} else {
		n.State = domain.NodeUpToDate
	}
	return nil
}

// CommandHash returns the 64-bit hash of edge's fully expanded command line.
func (e *Engine) CommandHash(edge *domain.Edge) (uint64, error) {
	cmd, err := edge.Command(e.bindings)
	if err != nil {
		return 0, err
	}
	h := xxhash.New()
	_, _ = h.WriteString(cmd)
	return h.Sum64(), nil
}

// PostBuild refreshes n's mtime from disk, computes edge's command hash, and
// writes a fresh log entry recording deps as n's discovered dependencies. It
// is called once per output node of an edge that completed successfully.
func (e *Engine) PostBuild(n *domain.Node, edge *domain.Edge, deps []string) error {
	info, err := os.Stat(n.Path.String())
	if err != nil {
		return zerr.With(zerr.Wrap(err, "output missing after build"), "path", n.Path.String())
	}
	n.MTime = info.ModTime()

	hash, err := e.CommandHash(edge)
	if err != nil {
		return err
	}

	e.log.SetEntry(n.Path.String(), domain.CommandLogEntry{
		MTime:   n.MTime,
		CmdHash: hash,
		Deps:    deps,
	})
	n.State = domain.NodeUpToDate
	return nil
}

// Package scheduler drives the ready-queue execution loop: it plans which
// edges must run to freshen a set of targets, dispatches them to workers
// within a global job budget, and advances the graph as completions arrive.
package scheduler

import (
	"context"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/semaphore"

	"go.trai.ch/cook/internal/core/domain"
	"go.trai.ch/cook/internal/core/ports"
	"go.trai.ch/cook/internal/engine/state"
	"go.trai.ch/cook/internal/engine/worker"
	"go.trai.ch/zerr"
)

// Scheduler owns the graph, state engine, and adapters needed to run a
// build to completion. It is not safe for concurrent use by multiple
// goroutines; Build itself is single-threaded aside from its dispatched
// workers.
type Scheduler struct {
	graph     *domain.Graph
	state     *state.Engine
	runner    ports.CommandRunner
	depfiles  ports.DepfileReader
	telemetry ports.Telemetry
	logger    ports.Logger
	bindings  map[string]string
	maxJobs   int
}

// New creates a Scheduler. maxJobs is the global job-cost budget; the
// caller is responsible for defaulting it to the logical CPU count.
func New(
	graph *domain.Graph,
	st *state.Engine,
	runner ports.CommandRunner,
	depfiles ports.DepfileReader,
	telemetry ports.Telemetry,
	logger ports.Logger,
	bindings map[string]string,
	maxJobs int,
) *Scheduler {
	return &Scheduler{
		graph:     graph,
		state:     st,
		runner:    runner,
		depfiles:  depfiles,
		telemetry: telemetry,
		logger:    logger,
		bindings:  bindings,
		maxJobs:   maxJobs,
	}
}

// Build brings every node named in targets (or, if targets is empty, every
// sink node) up to date, returning the first build failure encountered.
func (s *Scheduler) Build(ctx context.Context, targets []string) error {
	targetNodes, err := s.resolveTargets(targets)
	if err != nil {
		return err
	}

	run := &run{
		sched:       s,
		ctx:         ctx,
		sem:         semaphore.NewWeighted(int64(s.maxJobs)),
		completions: make(chan worker.Result),
	}

	for _, n := range targetNodes {
		if err := s.state.CheckStateIfNeeded(n); err != nil {
			return err
		}
		if n.NeedsRebuild() && n.InEdge >= 0 {
			if err := run.plan(s.graph.Edges[n.InEdge]); err != nil {
				return err
			}
		}
	}

	return run.execute()
}

// resolveTargets maps target paths to graph nodes, defaulting to every sink
// (a node with no out_edges) when the caller names none.
func (s *Scheduler) resolveTargets(targets []string) ([]*domain.Node, error) {
	if len(targets) == 0 {
		return s.graph.Sinks(), nil
	}

	nodes := make([]*domain.Node, 0, len(targets))
	for _, t := range targets {
		key := domain.NewInternedString(filepath.Clean(t))
		n, ok := s.graph.Nodes[key]
		if !ok {
			return nil, zerr.With(domain.ErrUnknownTarget, "target", t)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// run holds the mutable state of a single Build invocation: the ready
// queue, the outstanding job budget, and the completion channel that
// workers post back to.
type run struct {
	sched       *Scheduler
	ctx         context.Context
	sem         *semaphore.Weighted
	completions chan worker.Result

	queue    []*domain.Edge
	inFlight int
	firstErr error
}

// plan is add_edge_to_plan: it marks edge MustBuild, recurses into any
// input's still-unplanned producing edge, and enqueues edge as Ready once
// every input is already fresh.
func (r *run) plan(edge *domain.Edge) error {
	if edge.State != domain.EdgeUnknown {
		return nil
	}
	edge.State = domain.EdgeMustBuild

	waiting := false
	for _, in := range edge.AllInputs() {
		n := r.sched.graph.Nodes[in]
		if err := r.sched.state.CheckStateIfNeeded(n); err != nil {
			return err
		}
		if !n.NeedsRebuild() {
			continue
		}
		waiting = true
		if n.InEdge < 0 {
			continue
		}
		producer := r.sched.graph.Edges[n.InEdge]
		if producer.State == domain.EdgeUnknown {
			if err := r.plan(producer); err != nil {
				return err
			}
		}
	}

	if !waiting {
		r.enqueueReady(edge)
	}
	return nil
}

func (r *run) enqueueReady(edge *domain.Edge) {
	edge.State = domain.EdgeReady
	r.queue = append(r.queue, edge)
}

// execute runs the dispatch loop until the ready queue drains or a fatal
// error is raised. Edges already dispatched when a failure occurs are
// allowed to finish; no new work is enqueued once firstErr is set.
func (r *run) execute() error {
	for len(r.queue) > 0 {
		dispatched := r.dispatchReady()

		if dispatched == 0 && r.inFlight == 0 {
			return zerr.With(domain.ErrNoProgressPossible, "pending", strconv.Itoa(len(r.queue)))
		}

		if r.inFlight > 0 {
			res := <-r.completions
			r.inFlight--
			r.handleCompletion(res)

		drain:
			for {
				select {
				case res := <-r.completions:
					r.inFlight--
					r.handleCompletion(res)
				default:
					break drain
				}
			}
		}

		if r.firstErr != nil {
			break
		}
	}

	for r.inFlight > 0 {
		res := <-r.completions
		r.inFlight--
		r.handleCompletion(res)
	}

	if r.firstErr == nil {
		stalled := 0
		for _, e := range r.sched.graph.Edges {
			if e.State == domain.EdgeMustBuild {
				stalled++
			}
		}
		if stalled > 0 {
			return zerr.With(domain.ErrNoProgressPossible, "pending", strconv.Itoa(stalled))
		}
	}

	return r.firstErr
}

// dispatchReady scans the queue from the head, starting every Ready edge
// whose job cost still fits the remaining budget. It returns the number of
// edges newly dispatched this scan.
//
// An edge whose declared job cost exceeds the scheduler's total budget can
// never satisfy semaphore.Weighted.TryAcquire, which fails outright when n
// exceeds the semaphore's size rather than waiting for it to drain. Such an
// edge's acquisition is capped at the total budget instead: it still claims
// the whole budget, so no other edge dispatches alongside it, but it is no
// longer permanently stuck in the ready queue.
func (r *run) dispatchReady() int {
	if r.firstErr != nil {
		return 0
	}

	maxCost := int64(r.sched.maxJobs)
	dispatched := 0
	for _, edge := range r.queue {
		if edge.State != domain.EdgeReady {
			continue
		}
		cost := int64(edge.Jobs)
		if cost > maxCost {
			cost = maxCost
		}
		if !r.sem.TryAcquire(cost) {
			continue
		}
		edge.State = domain.EdgeInProgress
		r.inFlight++
		dispatched++
		go r.dispatch(edge, cost)
	}
	return dispatched
}

// dispatch runs one edge on a detached goroutine and posts its result back
// on the completion channel. It owns telemetry recording for the edge so
// the worker itself stays graph- and log-free.
func (r *run) dispatch(edge *domain.Edge, cost int64) {
	ctx := r.ctx
	var vtx ports.Vertex
	if r.sched.telemetry != nil {
		desc, err := edge.Description(r.sched.bindings)
		if err != nil {
			desc = edge.Rule.Name
		}
		id := edge.Rule.Name
		if outs := edge.AllOutputs(); len(outs) > 0 {
			id = outs[0].String()
		}
		ctx, vtx = r.sched.telemetry.Record(ctx, desc, ports.WithID(id))
	}

	res := worker.Run(ctx, r.sched.runner, r.sched.depfiles, edge, r.sched.bindings)

	if vtx != nil {
		vtx.Complete(res.Err)
	}

	r.sem.Release(cost)
	r.completions <- res
}

// handleCompletion is the Completion/Failure handler: it retires edge from
// the queue and either records the first fatal error or runs post_build for
// every output and promotes newly ready downstream edges.
func (r *run) handleCompletion(res worker.Result) {
	edge := res.Edge
	r.removeFromQueue(edge)

	if res.Err != nil {
		if r.firstErr == nil {
			r.firstErr = r.buildFailureError(edge, res)
		}
		return
	}

	edge.State = domain.EdgeCompleted
	if r.sched.logger != nil && len(res.Output) > 0 {
		r.sched.logger.Info(string(res.Output))
	}

	for _, out := range edge.AllOutputs() {
		n := r.sched.graph.Nodes[out]
		if err := r.sched.state.PostBuild(n, edge, res.Deps); err != nil {
			if r.firstErr == nil {
				r.firstErr = err
			}
			continue
		}
		r.promoteDownstream(n)
	}
}

// promoteDownstream re-checks every MustBuild edge consuming n and enqueues
// it once none of its update-only inputs still need rebuild.
func (r *run) promoteDownstream(n *domain.Node) {
	for _, idx := range n.OutEdges {
		downstream := r.sched.graph.Edges[idx]
		if downstream.State != domain.EdgeMustBuild {
			continue
		}

		ready := true
		for _, in := range downstream.UpdateOnlyInputs() {
			if r.sched.graph.Nodes[in].NeedsRebuild() {
				ready = false
				break
			}
		}
		if ready {
			r.enqueueReady(downstream)
		}
	}
}

func (r *run) removeFromQueue(edge *domain.Edge) {
	for i, e := range r.queue {
		if e == edge {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

func (r *run) buildFailureError(edge *domain.Edge, res worker.Result) error {
	cmd, _ := edge.Command(r.sched.bindings)
	desc, _ := edge.Description(r.sched.bindings)
	err := zerr.With(zerr.Wrap(res.Err, domain.ErrBuildFailed.Error()), "description", desc)
	err = zerr.With(err, "command", cmd)
	err = zerr.With(err, "exit_code", strconv.Itoa(res.ExitCode))
	if len(res.Output) > 0 {
		err = zerr.With(err, "output", string(res.Output))
	}
	return err
}

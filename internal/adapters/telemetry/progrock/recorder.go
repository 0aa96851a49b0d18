// Package progrock provides the Progrock implementation of the telemetry
// adapter: one vertex per dispatched edge, laid out on the tape as a flat
// stream rather than a task tree.
package progrock

import (
	"context"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/cook/internal/core/ports"
)

// Recorder implements ports.Telemetry using the progrock library. It keys
// vertices by the edge's own identity (its primary output path) rather than
// by display name, so a rule's description can change across builds without
// splitting one edge's history across two vertices.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

// New creates a new Recorder with a default in-memory tape.
func New() ports.Telemetry {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a new Recorder writing to w.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{
		w:   w,
		rec: progrock.NewRecorder(w),
	}
}

// Record starts a vertex for one dispatched edge. name is the edge's
// resolved description; WithID overrides the digest input with a stable
// identity when the caller has one (the scheduler always supplies the
// edge's primary output).
func (r *Recorder) Record(ctx context.Context, name string, opts ...ports.VertexOption) (context.Context, ports.Vertex) {
	var cfg ports.VertexConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	digestInput := name
	if cfg.ID != "" {
		digestInput = cfg.ID
	}

	v := r.rec.Vertex(digest.FromString(digestInput), name)
	vertex := &Vertex{vertex: v, edgeID: cfg.ID}
	return ports.ContextWithVertex(ctx, vertex), vertex
}

// Close flushes and closes the recording session.
func (r *Recorder) Close() error {
	if c, ok := r.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

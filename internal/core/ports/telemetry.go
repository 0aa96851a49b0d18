package ports

import (
	"context"
	"io"

	"go.trai.ch/cook/internal/core/domain"
)

// Telemetry is the entry point for recording build progress as a set of
// vertices, one per dispatched edge.
//
//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks
type Telemetry interface {
	// Record starts a new vertex named name and returns a context carrying it.
	Record(ctx context.Context, name string, opts ...VertexOption) (context.Context, Vertex)
	// Close flushes and releases any resources held by the telemetry sink.
	Close() error
}

// Vertex is a single unit of progress: one dispatched edge.
type Vertex interface {
	// Stdout returns a writer that streams the edge's captured stdout.
	Stdout() io.Writer
	// Stderr returns a writer that streams the edge's captured stderr.
	Stderr() io.Writer
	// Log records a structured log line associated with this vertex.
	Log(level domain.LogLevel, msg string)
	// Complete marks the vertex finished, successfully if err is nil.
	Complete(err error)
	// Cached marks the vertex as skipped because its outputs were already
	// up to date.
	Cached()
}

// VertexConfig holds configuration for a starting vertex.
type VertexConfig struct {
	// ID identifies the vertex independently of its display name. The
	// scheduler sets it to the dispatched edge's primary output path, so an
	// edge reports under the same identity even when its description
	// changes between builds.
	ID string
}

// VertexOption is a functional option for configuring a vertex.
type VertexOption func(*VertexConfig)

// WithID sets the vertex's stable identity, overriding the default of
// hashing its display name.
func WithID(id string) VertexOption {
	return func(c *VertexConfig) {
		c.ID = id
	}
}

type vertexCtxKey struct{}

// ContextWithVertex returns a copy of ctx carrying v, retrievable with VertexFromContext.
func ContextWithVertex(ctx context.Context, v Vertex) context.Context {
	return context.WithValue(ctx, vertexCtxKey{}, v)
}

// VertexFromContext returns the Vertex stored in ctx, if any.
func VertexFromContext(ctx context.Context) (Vertex, bool) {
	v, ok := ctx.Value(vertexCtxKey{}).(Vertex)
	return v, ok
}

package progrock

import (
	"fmt"
	"io"

	"github.com/vito/progrock"
	"go.trai.ch/cook/internal/core/domain"
)

// Vertex implements ports.Vertex wrapping *progrock.VertexRecorder. It
// represents exactly one dispatched edge, so unlike a task-scoped span it
// never nests child vertices of its own.
type Vertex struct {
	vertex *progrock.VertexRecorder
	edgeID string
}

// Stdout returns a writer to capture standard output stream.
func (v *Vertex) Stdout() io.Writer {
	return v.vertex.Stdout()
}

// Stderr returns a writer to capture error output stream.
func (v *Vertex) Stderr() io.Writer {
	return v.vertex.Stderr()
}

// Log records a structured log message associated with this vertex,
// tagging it with the edge's output identity so a stream that interleaves
// several edges' logs can still be attributed to the one that produced it.
func (v *Vertex) Log(level domain.LogLevel, msg string) {
	if v.edgeID != "" {
		_, _ = fmt.Fprintf(v.vertex.Stdout(), "[%s] %s: %s\n", level.String(), v.edgeID, msg)
		return
	}
	_, _ = fmt.Fprintf(v.vertex.Stdout(), "[%s] %s\n", level.String(), msg)
}

// Complete marks the vertex as finished (successfully or with an error).
func (v *Vertex) Complete(err error) {
	v.vertex.Done(err)
}

// Cached marks the vertex as a cache hit.
func (v *Vertex) Cached() {
	v.vertex.Cached()
}

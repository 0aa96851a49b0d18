package depfile

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/cook/internal/core/ports"
)

// NodeID is the unique identifier for the depfile Reader Graft node.
const NodeID graft.ID = "adapter.depfile"

func init() {
	graft.Register(graft.Node[ports.DepfileReader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.DepfileReader, error) {
			return NewReader(), nil
		},
	})
}

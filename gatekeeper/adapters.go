package gatekeeper

import (
	"context"

	"github.com/forgepolicy/gatekeeper/econnode"
	"github.com/forgepolicy/gatekeeper/veto"
)

// econNodeLookup adapts econnode.Registry to veto.NodeLookup. The veto
// package intentionally never imports econnode directly (it names only the
// narrow Node/NodeLookup shapes it needs), so this adapter is the one place
// that bridges the two.
type econNodeLookup struct {
	registry *econnode.Registry
}

// NewEconNodeLookup adapts registry to veto.NodeLookup, for callers wiring
// a veto.Engine ahead of constructing the Service itself.
func NewEconNodeLookup(registry *econnode.Registry) veto.NodeLookup {
	return econNodeLookup{registry: registry}
}

func (l econNodeLookup) Get(nodeID uint64) (veto.Node, bool) {
	node, err := l.registry.Get(context.Background(), nodeID)
	if err != nil {
		return veto.Node{}, false
	}
	return veto.Node{
		ID:         node.ID,
		NodeType:   string(node.NodeType),
		EntityName: node.EntityName,
		PublicKey:  node.PublicKey,
		Weight:     node.Weight,
		Active:     node.Status == econnode.StatusActive,
	}, true
}

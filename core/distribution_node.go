package core

import (
	"cmp"
	"slices"

	"github.com/zyedidia/generic/mapset"
)

// DistributionNode groups every resource-capable entity of one vessel.
// Nodes of docked vessels are linked; the links form the graph providers
// and consumers are matched over.
type DistributionNode struct {
	VesselID   int64
	Rooms      []*Room
	Doors      []*Door
	Generators []*Generator
	SubSystems []*SubSystem
	Containers []*ResourceContainer

	links mapset.Set[*DistributionNode]
}

func newDistributionNode(vesselID int64) *DistributionNode {
	return &DistributionNode{VesselID: vesselID, links: mapset.New[*DistributionNode]()}
}

func (n *DistributionNode) link(other *DistributionNode) {
	if other == nil || other == n {
		return
	}
	n.links.Put(other)
	other.links.Put(n)
}

func (n *DistributionNode) unlink(other *DistributionNode) {
	if other == nil {
		return
	}
	n.links.Remove(other)
	other.links.Remove(n)
}

// Reachable returns n and every node linked to it, directly or not,
// ordered by vessel id.
func (n *DistributionNode) Reachable() []*DistributionNode {
	visited := mapset.New[*DistributionNode]()
	visited.Put(n)
	queue := []*DistributionNode{n}
	var out []*DistributionNode
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		cur.links.Each(func(next *DistributionNode) {
			if !visited.Has(next) {
				visited.Put(next)
				queue = append(queue, next)
			}
		})
	}
	slices.SortFunc(out, func(a, b *DistributionNode) int { return cmp.Compare(a.VesselID, b.VesselID) })
	return out
}

package core

import (
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/signalsfoundry/vessel-systems/model"
)

// consumer is anything that draws from providers: components, containers
// that refuel and rooms.
type consumer interface {
	ConsumerID() model.VesselObjectID
	InputResources() []model.ResourceType
	PreferredContainers() []int
	acceptsProvider(p Provider) bool
	links() *consumerLinks
}

func (r *Room) PreferredContainers() []int              { return nil }
func (c *ResourceContainer) PreferredContainers() []int { return nil }

// UpdateConnections rebuilds, for every consumer, the sorted list of
// providers it may draw each resource from. A provider reaches a consumer
// when their vessels' nodes are linked.
func (m *DistributionManager) UpdateConnections() {
	consumers := m.consumers()
	providers := m.providers()
	for _, c := range consumers {
		c.links().resetConnections()
	}

	reach := make(map[int64]mapset.Set[int64])
	reachable := func(vesselID int64) mapset.Set[int64] {
		if set, ok := reach[vesselID]; ok {
			return set
		}
		set := mapset.New[int64]()
		for _, n := range m.nodes {
			if n.VesselID != vesselID {
				continue
			}
			for _, r := range n.Reachable() {
				set.Put(r.VesselID)
			}
		}
		reach[vesselID] = set
		return set
	}

	for _, p := range providers {
		from := reachable(p.ID().VesselID)
		for _, c := range consumers {
			if !from.Has(c.ConsumerID().VesselID) {
				continue
			}
			if m.eligible(c, p) {
				c.links().connect(p.Resource(), p)
			}
		}
	}
	for _, c := range consumers {
		for _, list := range c.links().connected {
			sortProviders(list, c.ConsumerID().VesselID)
		}
	}
}

// eligible applies the linking rules between one consumer and provider.
func (m *DistributionManager) eligible(c consumer, p Provider) bool {
	r := p.Resource()
	if !slices.Contains(c.InputResources(), r) || !c.acceptsProvider(p) {
		return false
	}
	if preferred := m.preferredFor(c, r); len(preferred) > 0 {
		return p.Kind == ProviderContainer && slices.Contains(preferred, p.Container)
	}
	if p.Kind == ProviderContainer && p.Container.Bound() {
		return false
	}
	return true
}

// preferredFor resolves the consumer's listed containers holding r.
func (m *DistributionManager) preferredFor(c consumer, r model.ResourceType) []*ResourceContainer {
	var out []*ResourceContainer
	for _, id := range c.PreferredContainers() {
		cont := m.containerIndex[model.NewVesselObjectID(c.ConsumerID().VesselID, id)]
		if cont != nil && cont.Resource() == r {
			out = append(out, cont)
		}
	}
	return out
}

func (m *DistributionManager) consumers() []consumer {
	out := make([]consumer, 0, len(m.generators)+len(m.subsystems)+len(m.containers)+len(m.rooms))
	for _, g := range m.generators {
		out = append(out, g)
	}
	for _, s := range m.subsystems {
		out = append(out, s)
	}
	for _, c := range m.containers {
		out = append(out, c)
	}
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

func (m *DistributionManager) providers() []Provider {
	out := make([]Provider, 0, len(m.generators)+len(m.containers))
	for _, g := range m.generators {
		out = append(out, generatorProvider(g))
	}
	for _, c := range m.containers {
		out = append(out, containerProvider(c))
	}
	return out
}

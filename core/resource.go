package core

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/signalsfoundry/vessel-systems/model"
)

// reserveEpsilon absorbs float noise when comparing covered against
// needed amounts.
const reserveEpsilon = 1e-9

// ProviderKind discriminates the Provider variants. The declaration order
// is the preference order used when a consumer draws from several
// providers on the same vessel.
type ProviderKind int

const (
	ProviderSolar ProviderKind = iota
	ProviderGenerator
	ProviderCapacitor
	ProviderContainer
)

func (k ProviderKind) String() string {
	switch k {
	case ProviderSolar:
		return "solar"
	case ProviderGenerator:
		return "generator"
	case ProviderCapacitor:
		return "capacitor"
	case ProviderContainer:
		return "container"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Provider is anything a consumer can draw a resource from. Exactly one of
// Generator or Container is set, matching Kind. Provider is comparable and
// serves as a map key in Reservations.
type Provider struct {
	Kind      ProviderKind
	Generator *Generator
	Container *ResourceContainer
}

func generatorProvider(g *Generator) Provider {
	switch g.Type() {
	case model.GeneratorSolar:
		return Provider{Kind: ProviderSolar, Generator: g}
	case model.GeneratorCapacitor:
		return Provider{Kind: ProviderCapacitor, Generator: g}
	default:
		return Provider{Kind: ProviderGenerator, Generator: g}
	}
}

func containerProvider(c *ResourceContainer) Provider {
	return Provider{Kind: ProviderContainer, Container: c}
}

func (p Provider) ID() model.VesselObjectID {
	if p.Kind == ProviderContainer {
		return p.Container.ID()
	}
	return p.Generator.ID()
}

// Resource is the resource the provider hands out.
func (p Provider) Resource() model.ResourceType {
	if p.Kind == ProviderContainer {
		return p.Container.Resource()
	}
	return p.Generator.OutputResource()
}

func (p Provider) String() string {
	return p.Kind.String() + "/" + p.ID().String()
}

// sortProviders orders providers for a consumer on vessel home: same-vessel
// providers first, then by kind, then by id.
func sortProviders(providers []Provider, home int64) {
	slices.SortFunc(providers, func(a, b Provider) int {
		aAway, bAway := a.ID().VesselID != home, b.ID().VesselID != home
		if aAway != bAway {
			if aAway {
				return 1
			}
			return -1
		}
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return a.ID().Compare(b.ID())
	})
}

// Reservations is the scratch ledger of one distribution update. Capacity
// is a rate per provider; Quantity and Input are absolute amounts to debit
// from and credit to containers when the update commits.
type Reservations struct {
	Capacity map[Provider]float64
	Quantity map[*ResourceContainer]float64
	Input    map[*ResourceContainer]float64

	visiting mapset.Set[model.VesselObjectID]
}

// NewReservations returns an empty ledger.
func NewReservations() *Reservations {
	return &Reservations{
		Capacity: make(map[Provider]float64),
		Quantity: make(map[*ResourceContainer]float64),
		Input:    make(map[*ResourceContainer]float64),
		visiting: mapset.New[model.VesselObjectID](),
	}
}

// Clone copies the ledger. The visiting set is shared: a trial runs inside
// the same call chain as its parent.
func (r *Reservations) Clone() *Reservations {
	return &Reservations{
		Capacity: maps.Clone(r.Capacity),
		Quantity: maps.Clone(r.Quantity),
		Input:    maps.Clone(r.Input),
		visiting: r.visiting,
	}
}

// restore rolls r back to an earlier Clone.
func (r *Reservations) restore(backup *Reservations) {
	r.Capacity = maps.Clone(backup.Capacity)
	r.Quantity = maps.Clone(backup.Quantity)
	r.Input = maps.Clone(backup.Input)
}

func (r *Reservations) enter(id model.VesselObjectID) bool {
	if r.visiting.Has(id) {
		return false
	}
	r.visiting.Put(id)
	return true
}

func (r *Reservations) leave(id model.VesselObjectID) {
	r.visiting.Remove(id)
}

// FreeQuantity is what is left in c after reservations made so far.
func (r *Reservations) FreeQuantity(c *ResourceContainer) float64 {
	return math.Max(0, c.Quantity()-r.Quantity[c])
}

// FreeSpace is the room left in c after credits made so far.
func (r *Reservations) FreeSpace(c *ResourceContainer) float64 {
	return math.Max(0, c.Capacity()-c.Quantity()+r.Quantity[c]-r.Input[c])
}

// reserveFrom draws up to need (a rate) from providers in order over
// duration seconds and returns the rate actually covered. Partial cover is
// allowed; callers decide whether that is enough. onTake, when set, sees
// every per-provider draw.
func reserveFrom(providers []Provider, need, duration float64, res *Reservations, trail *[]string, onTake func(Provider, float64)) float64 {
	if need <= 0 {
		return 0
	}
	dt := effectiveDuration(duration)
	remaining := need
	for _, p := range providers {
		if remaining <= reserveEpsilon {
			break
		}
		var take float64
		switch p.Kind {
		case ProviderContainer:
			c := p.Container
			free := res.FreeQuantity(c) / dt
			if c.NominalOutput() > 0 {
				free = math.Min(free, c.NominalOutput()-res.Capacity[p])
			}
			take = math.Min(remaining, free)
			if take <= reserveEpsilon {
				continue
			}
			res.Quantity[c] += take * dt
		case ProviderCapacitor:
			g := p.Generator
			if g.Status() != model.StatusOnLine {
				continue
			}
			limit := math.Min(g.MaxOutput(), g.Charge()/dt)
			take = math.Min(remaining, limit-res.Capacity[p])
			if take <= reserveEpsilon {
				continue
			}
		default:
			g := p.Generator
			if g.Status() != model.StatusOnLine {
				continue
			}
			take = math.Min(remaining, g.MaxOutput()-res.Capacity[p])
			if take <= reserveEpsilon {
				continue
			}
			// The generator can only promise output its own inputs cover.
			if peak := g.PeakOutput(); peak > 0 && len(g.requirements) > 0 {
				if !g.CheckAvailableResources(take/peak, duration, false, res, trail) {
					continue
				}
			}
		}
		res.Capacity[p] += take
		remaining -= take
		if onTake != nil {
			onTake(p, take)
		}
	}
	return need - math.Max(0, remaining)
}

// effectiveDuration guards quantity-to-rate conversions against a zero
// tick; a zero-length check behaves as a one second window.
func effectiveDuration(duration float64) float64 {
	if duration <= 0 {
		return 1
	}
	return duration
}

func appendTrail(trail *[]string, format string, args ...any) {
	if trail == nil {
		return
	}
	*trail = append(*trail, fmt.Sprintf(format, args...))
}

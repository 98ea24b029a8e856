package core

import (
	"math"

	"github.com/signalsfoundry/vessel-systems/model"
)

// ResourceContainer is bounded storage. It provides its resource to
// consumers and, with a nominal input, refuels from generators.
type ResourceContainer struct {
	consumerLinks

	id     model.VesselObjectID
	vessel *Vessel
	data   model.ResourceContainerData

	quantity   float64
	airQuality float64
	output     float64
	input      float64

	changed bool
}

// NewResourceContainer instantiates a container from its definition.
func NewResourceContainer(v *Vessel, data model.ResourceContainerData) *ResourceContainer {
	c := &ResourceContainer{
		id:      model.NewVesselObjectID(v.ID(), data.InSceneID),
		vessel:  v,
		data:    data,
		changed: true,
	}
	c.quantity = math.Max(0, math.Min(data.Quantity, data.Capacity))
	if data.IsAirTank {
		c.airQuality = clamp01(data.AirQuality)
	}
	return c
}

func (c *ResourceContainer) ID() model.VesselObjectID         { return c.id }
func (c *ResourceContainer) ConsumerID() model.VesselObjectID { return c.id }
func (c *ResourceContainer) Vessel() *Vessel                  { return c.vessel }
func (c *ResourceContainer) Resource() model.ResourceType     { return c.data.Resource }
func (c *ResourceContainer) Quantity() float64                { return c.quantity }
func (c *ResourceContainer) Capacity() float64                { return c.data.Capacity }
func (c *ResourceContainer) NominalInput() float64            { return c.data.NominalInput }
func (c *ResourceContainer) NominalOutput() float64           { return c.data.NominalOutput }
func (c *ResourceContainer) IsAirTank() bool                  { return c.data.IsAirTank }
func (c *ResourceContainer) AirQuality() float64              { return c.airQuality }
func (c *ResourceContainer) Output() float64                  { return c.output }
func (c *ResourceContainer) Input() float64                   { return c.input }

// Bound reports whether the container belongs to one component and is
// only linked to consumers that list it.
func (c *ResourceContainer) Bound() bool { return c.data.Owner != 0 }

// Owner is the in-scene id of the owning component, 0 when unbound.
func (c *ResourceContainer) Owner() int { return c.data.Owner }

// FreeCapacity is the room left.
func (c *ResourceContainer) FreeCapacity() float64 {
	return math.Max(0, c.data.Capacity-c.quantity)
}

func (c *ResourceContainer) InputResources() []model.ResourceType {
	if c.data.NominalInput <= 0 {
		return nil
	}
	return []model.ResourceType{c.data.Resource}
}

// Containers refuel from generators only.
func (c *ResourceContainer) acceptsProvider(p Provider) bool {
	return p.Kind == ProviderGenerator || p.Kind == ProviderSolar
}

// Add stores up to amount and returns what fit. quality is the air quality
// of the added amount and is ignored for other resources.
func (c *ResourceContainer) Add(amount, quality float64) float64 {
	if amount <= 0 {
		return 0
	}
	accepted := math.Min(amount, c.FreeCapacity())
	if accepted <= 0 {
		return 0
	}
	if c.data.IsAirTank {
		c.airQuality = mixQuality(c.quantity, c.airQuality, accepted, quality)
	}
	c.quantity += accepted
	c.changed = true
	return accepted
}

// Remove takes up to amount and returns what was taken.
func (c *ResourceContainer) Remove(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	taken := math.Min(amount, c.quantity)
	c.quantity -= taken
	if taken > 0 {
		c.changed = true
	}
	return taken
}

// TransferTo moves up to amount into dst, limited by what c holds and what
// dst can take, and returns the amount moved. Nothing is created or lost.
func (c *ResourceContainer) TransferTo(dst *ResourceContainer, amount float64) float64 {
	if dst == nil || dst == c || dst.Resource() != c.Resource() {
		return 0
	}
	move := math.Min(amount, math.Min(c.quantity, dst.FreeCapacity()))
	if move <= 0 {
		return 0
	}
	c.Remove(move)
	dst.Add(move, c.airQuality)
	return move
}

// commit applies the debits and credits of one distribution update.
func (c *ResourceContainer) commit(debit, credit, duration float64) {
	dt := effectiveDuration(duration)
	taken := c.Remove(debit)
	added := c.Add(credit, 1)
	output, input := taken/dt, added/dt
	if math.Abs(output-c.output) > reserveEpsilon || math.Abs(input-c.input) > reserveEpsilon {
		c.changed = true
	}
	c.output, c.input = output, input
}

func (c *ResourceContainer) Details() model.ResourceContainerDetails {
	return model.ResourceContainerDetails{
		ID:         c.id,
		Resource:   c.data.Resource,
		Quantity:   c.quantity,
		Capacity:   c.data.Capacity,
		Output:     c.output,
		Input:      c.input,
		AirQuality: c.airQuality,
	}
}

func (c *ResourceContainer) Snapshot() model.ContainerSnapshot {
	return model.ContainerSnapshot{ID: c.id, Quantity: c.quantity, AirQuality: c.airQuality}
}

func (c *ResourceContainer) Restore(snap model.ContainerSnapshot) {
	c.quantity = math.Max(0, math.Min(snap.Quantity, c.data.Capacity))
	if c.data.IsAirTank {
		c.airQuality = clamp01(snap.AirQuality)
	}
	c.changed = true
}

// mixQuality is the volume-weighted quality of two air parcels.
func mixQuality(q1, quality1, q2, quality2 float64) float64 {
	total := q1 + q2
	if total <= 0 {
		return clamp01(quality2)
	}
	return clamp01((q1*quality1 + q2*quality2) / total)
}

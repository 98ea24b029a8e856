package core

import (
	"slices"

	"github.com/zyedidia/generic/mapset"
	"gonum.org/v1/gonum/floats"

	"github.com/signalsfoundry/vessel-systems/model"
)

// CompoundRoom is a maximal set of rooms not separated by a sealed door.
// Its members share one atmosphere.
type CompoundRoom struct {
	ID    model.VesselObjectID
	Rooms []*Room

	volume   float64
	pressure float64
	quality  float64
}

func (c *CompoundRoom) Volume() float64      { return c.volume }
func (c *CompoundRoom) AirPressure() float64 { return c.pressure }
func (c *CompoundRoom) AirQuality() float64  { return c.quality }

// AirQuantity is the air held, in m³ at one bar.
func (c *CompoundRoom) AirQuantity() float64 { return c.pressure * c.volume }

// CreateCompoundRooms partitions rooms by flood fill over open links and
// merges each part's atmosphere, volume-weighted. Members are written back
// at once, so a second call on unchanged doors yields the same partition
// and values.
func CreateCompoundRooms(rooms []*Room) []*CompoundRoom {
	sorted := slices.Clone(rooms)
	slices.SortFunc(sorted, func(a, b *Room) int { return a.id.Compare(b.id) })

	index := make(map[model.VesselObjectID]*Room, len(sorted))
	for _, r := range sorted {
		index[r.id] = r
	}
	lookup := func(vesselID int64, inScene int) *Room {
		return index[model.NewVesselObjectID(vesselID, inScene)]
	}

	// Links are undirected: a link listed by either room joins both.
	adjacent := make(map[*Room][]*Room, len(sorted))
	for _, r := range sorted {
		for _, n := range r.neighbours(lookup) {
			if _, ok := index[n.id]; !ok {
				continue
			}
			adjacent[r] = append(adjacent[r], n)
			adjacent[n] = append(adjacent[n], r)
		}
	}

	visited := mapset.New[*Room]()
	var out []*CompoundRoom
	for _, start := range sorted {
		if visited.Has(start) {
			continue
		}
		var members []*Room
		queue := []*Room{start}
		visited.Put(start)
		for len(queue) > 0 {
			r := queue[0]
			queue = queue[1:]
			members = append(members, r)
			for _, n := range adjacent[r] {
				if visited.Has(n) {
					continue
				}
				visited.Put(n)
				queue = append(queue, n)
			}
		}
		slices.SortFunc(members, func(a, b *Room) int { return a.id.Compare(b.id) })
		cr := &CompoundRoom{ID: members[0].id, Rooms: members}
		cr.merge()
		out = append(out, cr)
	}
	return out
}

// merge recomputes the shared atmosphere from the members and writes it
// back to them.
func (c *CompoundRoom) merge() {
	vol := make([]float64, len(c.Rooms))
	air := make([]float64, len(c.Rooms))
	quality := make([]float64, len(c.Rooms))
	for i, r := range c.Rooms {
		vol[i] = r.Volume()
		air[i] = r.pressure
		quality[i] = r.quality
		r.compound = c
	}
	c.volume = floats.Sum(vol)
	if c.volume <= 0 {
		c.pressure = floats.Sum(air) / float64(len(air))
		c.quality = floats.Sum(quality) / float64(len(quality))
	} else {
		c.pressure = floats.Dot(vol, air) / c.volume
		// Quality is weighted by the air each room holds.
		floats.Mul(air, vol)
		if held := floats.Sum(air); held > 0 {
			c.quality = floats.Dot(air, quality) / held
		} else {
			c.quality = floats.Dot(vol, quality) / c.volume
		}
	}
	c.setAir(c.pressure, c.quality)
}

// setAir stores new values on the compound and every member.
func (c *CompoundRoom) setAir(pressure, quality float64) {
	c.pressure = clamp01(pressure)
	c.quality = clamp01(quality)
	for _, r := range c.Rooms {
		r.SetAirPressure(c.pressure)
		r.SetAirQuality(c.quality)
	}
}

// providers returns the union of the members' providers of res, sorted for
// the compound's vessel.
func (c *CompoundRoom) providers(res model.ResourceType) []Provider {
	seen := mapset.New[Provider]()
	var out []Provider
	for _, r := range c.Rooms {
		for _, p := range r.ConnectedProviders(res) {
			if seen.Has(p) {
				continue
			}
			seen.Put(p)
			out = append(out, p)
		}
	}
	sortProviders(out, c.ID.VesselID)
	return out
}

// compoundVolume is the volume air moves through: the compound's when the
// room belongs to one.
func (r *Room) compoundVolume() float64 {
	if r.compound != nil {
		return r.compound.volume
	}
	return r.Volume()
}

package core

import (
	"math"
	"slices"

	"github.com/signalsfoundry/vessel-systems/model"
)

// Room holds atmosphere state. Pressure is in bar and quality is the clean
// fraction of the air; both stay within [0,1].
type Room struct {
	consumerLinks

	id     model.VesselObjectID
	vessel *Vessel
	data   model.RoomData

	pressure     float64
	quality      float64
	temperature  float64
	useGravity   bool
	airFiltering bool

	targetPressure *float64
	equalizeWith   *Room
	venting        bool

	compound     *CompoundRoom
	doors        []*Door
	consumers    []*AirConsumer
	nextConsumer int

	changed bool
}

// NewRoom instantiates a room from its definition.
func NewRoom(v *Vessel, data model.RoomData) *Room {
	data = data.Clone()
	r := &Room{
		id:           model.NewVesselObjectID(v.ID(), data.InSceneID),
		vessel:       v,
		data:         data,
		temperature:  data.Temperature,
		useGravity:   data.UseGravity,
		airFiltering: data.AirFiltering,
		changed:      true,
	}
	r.SetAirPressure(data.AirPressure)
	r.SetAirQuality(data.AirQuality)
	return r
}

func (r *Room) ID() model.VesselObjectID         { return r.id }
func (r *Room) ConsumerID() model.VesselObjectID { return r.id }
func (r *Room) Vessel() *Vessel                  { return r.vessel }
func (r *Room) Name() string                     { return r.data.Name }
func (r *Room) Volume() float64                  { return r.data.Volume }
func (r *Room) AirPressure() float64             { return r.pressure }
func (r *Room) AirQuality() float64              { return r.quality }
func (r *Room) Temperature() float64             { return r.temperature }
func (r *Room) UseGravity() bool                 { return r.useGravity }
func (r *Room) AirFiltering() bool               { return r.airFiltering }
func (r *Room) CompoundRoom() *CompoundRoom      { return r.compound }
func (r *Room) Doors() []*Door                   { return r.doors }
func (r *Room) Venting() bool                    { return r.venting }

// SetAirPressure clamps to [0,1]; NaN becomes 0.
func (r *Room) SetAirPressure(p float64) {
	p = clamp01(p)
	if p != r.pressure {
		r.pressure = p
		r.changed = true
	}
}

// SetAirQuality clamps to [0,1]; NaN becomes 0.
func (r *Room) SetAirQuality(q float64) {
	q = clamp01(q)
	if q != r.quality {
		r.quality = q
		r.changed = true
	}
}

func (r *Room) SetGravity(on bool) {
	if on != r.useGravity {
		r.useGravity = on
		r.changed = true
	}
}

func (r *Room) SetAirFiltering(on bool) {
	if on != r.airFiltering {
		r.airFiltering = on
		r.changed = true
	}
}

// TargetPressure returns the pressure target, if any.
func (r *Room) TargetPressure() (float64, bool) {
	if r.targetPressure == nil {
		return 0, false
	}
	return *r.targetPressure, true
}

// SetTargetPressure starts moving the room towards p. It cancels venting
// and equalizing.
func (r *Room) SetTargetPressure(p float64) {
	p = clamp01(p)
	r.targetPressure = &p
	r.equalizeWith = nil
	r.venting = false
	r.changed = true
}

// EqualizeWith starts equalizing with another room.
func (r *Room) EqualizeWith(other *Room) {
	if other == nil || other == r {
		return
	}
	r.targetPressure = nil
	r.equalizeWith = other
	r.venting = false
	r.changed = true
}

// Vent dumps the room's air overboard.
func (r *Room) Vent() {
	r.targetPressure = nil
	r.equalizeWith = nil
	r.venting = true
	r.changed = true
}

// ClearTargets cancels every pressure target.
func (r *Room) ClearTargets() {
	if r.targetPressure == nil && r.equalizeWith == nil && !r.venting {
		return
	}
	r.targetPressure = nil
	r.equalizeWith = nil
	r.venting = false
	r.changed = true
}

func (r *Room) pressurizeSpeed() float64 {
	if r.data.PressurizeSpeed > 0 {
		return r.data.PressurizeSpeed
	}
	return r.vessel.Tuning().PressurizeSpeed
}

func (r *Room) depressurizeSpeed() float64 {
	if r.data.DepressurizeSpeed > 0 {
		return r.data.DepressurizeSpeed
	}
	return r.vessel.Tuning().DepressurizeSpeed
}

func (r *Room) ventSpeed() float64 {
	if r.data.VentSpeed > 0 {
		return r.data.VentSpeed
	}
	return r.vessel.Tuning().VentSpeed
}

// Rooms draw Air and ScrubbedAir.
func (r *Room) InputResources() []model.ResourceType {
	return []model.ResourceType{model.ResourceAir, model.ResourceScrubbedAir}
}

// Rooms take Air only from air tanks and ScrubbedAir only from scrubbers.
func (r *Room) acceptsProvider(p Provider) bool {
	switch p.Resource() {
	case model.ResourceAir:
		return p.Kind == ProviderContainer && p.Container.IsAirTank()
	case model.ResourceScrubbedAir:
		return p.Kind != ProviderContainer && p.Generator.Type() == model.GeneratorScrubber
	}
	return false
}

// AddAirConsumer starts a fire, breach or damage effect and returns it.
func (r *Room) AddAirConsumer(kind model.AirConsumerType, sev model.Severity, persistent bool) *AirConsumer {
	r.nextConsumer++
	ac := &AirConsumer{ID: r.nextConsumer, Type: kind, Severity: sev, Persistent: persistent, Active: true}
	r.consumers = append(r.consumers, ac)
	r.changed = true
	return ac
}

// RemoveAirConsumer drops a consumer by id.
func (r *Room) RemoveAirConsumer(id int) bool {
	i := slices.IndexFunc(r.consumers, func(ac *AirConsumer) bool { return ac.ID == id })
	if i < 0 {
		return false
	}
	r.consumers = slices.Delete(r.consumers, i, i+1)
	r.changed = true
	return true
}

// AirConsumers returns the active consumers.
func (r *Room) AirConsumers() []*AirConsumer { return r.consumers }

// HasFire reports whether any fire burns in the room.
func (r *Room) HasFire() bool { return r.hasActive(model.AirConsumerFire) }

// HasBreach reports whether the hull is breached here.
func (r *Room) HasBreach() bool { return r.hasActive(model.AirConsumerBreach) }

func (r *Room) hasActive(kind model.AirConsumerType) bool {
	for _, ac := range r.consumers {
		if ac.Active && ac.Type == kind {
			return true
		}
	}
	return false
}

// FireCanBurn reports whether the atmosphere sustains a fire.
func (r *Room) FireCanBurn() bool {
	return r.quality*r.pressure >= r.vessel.Tuning().FireMinOxygen
}

// neighbours returns the rooms sharing an atmosphere with r given the
// current door states.
func (r *Room) neighbours(byInScene func(vesselID int64, inScene int) *Room) []*Room {
	var out []*Room
	for _, d := range r.doors {
		if other := d.otherSide(r); other != nil && !d.separates() {
			out = append(out, other)
		}
	}
	for _, id := range r.data.LinkedRooms {
		if other := byInScene(r.id.VesselID, id); other != nil && other != r {
			out = append(out, other)
		}
	}
	return out
}

func (r *Room) Details() model.RoomDetails {
	d := model.RoomDetails{
		ID:           r.id,
		AirPressure:  r.pressure,
		AirQuality:   r.quality,
		Temperature:  r.temperature,
		UseGravity:   r.useGravity,
		AirFiltering: r.airFiltering,
		Fire:         r.HasFire(),
		Breach:       r.HasBreach(),
		FireCanBurn:  r.FireCanBurn(),
		Venting:      r.venting,
	}
	if r.compound != nil {
		d.CompoundRoomID = r.compound.ID
	}
	if r.targetPressure != nil {
		p := *r.targetPressure
		d.TargetPressure = &p
	}
	if r.equalizeWith != nil {
		id := r.equalizeWith.id
		d.EquilizePressureRoom = &id
	}
	return d
}

func (r *Room) Snapshot() model.RoomSnapshot {
	return model.RoomSnapshot{
		ID:           r.id,
		AirPressure:  r.pressure,
		AirQuality:   r.quality,
		Temperature:  r.temperature,
		UseGravity:   r.useGravity,
		AirFiltering: r.airFiltering,
	}
}

func (r *Room) Restore(snap model.RoomSnapshot) {
	r.SetAirPressure(snap.AirPressure)
	r.SetAirQuality(snap.AirQuality)
	if !math.IsNaN(snap.Temperature) {
		r.temperature = snap.Temperature
	}
	r.useGravity = snap.UseGravity
	r.airFiltering = snap.AirFiltering
	r.changed = true
}

package nbi

import (
	"fmt"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/model"
)

// CommandRequest is an inbound vessel command. Target and Other address
// components by vessel and in-scene id; a zero Target.VesselID defaults to
// VesselID. Which of the remaining fields are read depends on Command.
type CommandRequest struct {
	VesselID int64                `json:"vessel_id"`
	Command  string               `json:"command"`
	Target   model.VesselObjectID `json:"target"`
	Other    model.VesselObjectID `json:"other,omitempty"`

	Enabled  bool       `json:"enabled,omitempty"`
	Value    float64    `json:"value,omitempty"`
	Vector   [3]float64 `json:"vector,omitempty"`
	Item     string     `json:"item,omitempty"`
	Duration float64    `json:"duration,omitempty"`

	ConsumerType model.AirConsumerType `json:"consumer_type,omitempty"`
	Severity     model.Severity        `json:"severity,omitempty"`
	Persistent   bool                  `json:"persistent,omitempty"`
	ConsumerID   int                   `json:"consumer_id,omitempty"`

	Slot int                      `json:"slot,omitempty"`
	Part *model.MachineryPartData `json:"part,omitempty"`
}

// CommandResponse reports command-specific results.
type CommandResponse struct {
	Command    string  `json:"command"`
	ConsumerID int     `json:"consumer_id,omitempty"`
	Loaded     float64 `json:"loaded,omitempty"`
}

type commandFunc func(m *core.DistributionManager, req CommandRequest, resp *CommandResponse) error

var commands = map[string]commandFunc{
	"set_door_open": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.SetDoorOpen(req.Target, req.Enabled)
	},
	"set_door_locked": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.SetDoorLocked(req.Target, req.Enabled)
	},
	"set_component_online": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.SetComponentOnline(req.Target, req.Enabled)
	},
	"set_operation_rate": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.SetOperationRate(req.Target, req.Value)
	},
	"set_target_pressure": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.SetRoomTargetPressure(req.Target, req.Value)
	},
	"equalize_rooms": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.EqualizeRooms(req.Target, req.Other)
	},
	"vent_room": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.VentRoom(req.Target)
	},
	"clear_room_targets": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.ClearRoomTargets(req.Target)
	},
	"set_air_filtering": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.SetRoomAirFiltering(req.Target, req.Enabled)
	},
	"add_air_consumer": func(m *core.DistributionManager, req CommandRequest, resp *CommandResponse) error {
		id, err := m.AddAirConsumer(req.Target, req.ConsumerType, req.Severity, req.Persistent)
		resp.ConsumerID = id
		return err
	},
	"remove_air_consumer": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.RemoveAirConsumer(req.Target, req.ConsumerID)
	},
	"set_engine_thrust": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.SetEngineThrust(req.Target, req.Value)
	},
	"set_rcs_maneuver": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.SetRCSManeuver(req.Target, core.Vec3{X: req.Vector[0], Y: req.Vector[1], Z: req.Vector[2]})
	},
	"set_ftl_warp": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.SetFTLWarp(req.Target, req.Enabled)
	},
	"queue_fabrication": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.QueueFabrication(req.Target, req.Item, req.Duration)
	},
	"load_cargo": func(m *core.DistributionManager, req CommandRequest, resp *CommandResponse) error {
		loaded, err := m.LoadCargo(req.Target, req.Item, req.Value)
		resp.Loaded = loaded
		return err
	},
	"fit_machinery_part": func(m *core.DistributionManager, req CommandRequest, _ *CommandResponse) error {
		return m.FitMachineryPart(req.Target, req.Slot, req.Part)
	},
}

// applyCommand resolves req.Command and runs it against m.
func applyCommand(m *core.DistributionManager, req CommandRequest) (CommandResponse, error) {
	resp := CommandResponse{Command: req.Command}
	fn, ok := commands[req.Command]
	if !ok {
		return resp, fmt.Errorf("%w: unknown command %q", core.ErrInvalidCommand, req.Command)
	}
	if req.Target.VesselID == 0 {
		req.Target.VesselID = req.VesselID
	}
	if req.Other.VesselID == 0 && req.Other.InSceneID != 0 {
		req.Other.VesselID = req.VesselID
	}
	return resp, fn(m, req, &resp)
}

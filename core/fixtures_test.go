package core

import (
	"context"
	"math"
	"testing"

	"github.com/signalsfoundry/vessel-systems/model"
)

const floatTol = 1e-9

func approxEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func power(nominal, standby float64) model.ResourceRequirement {
	return model.ResourceRequirement{Resource: model.ResourcePower, Nominal: nominal, Standby: standby}
}

func room(id int, volume, pressure, quality float64) model.RoomData {
	return model.RoomData{InSceneID: id, Volume: volume, AirPressure: pressure, AirQuality: quality}
}

func reactor(id int, output float64) model.GeneratorData {
	return model.GeneratorData{
		ComponentData: model.ComponentData{InSceneID: id, StartOnline: true},
		Type:          model.GeneratorPower,
		NominalOutput: output,
	}
}

func lights(id int, req ...model.ResourceRequirement) model.SubSystemData {
	return model.SubSystemData{
		ComponentData: model.ComponentData{InSceneID: id, Requirements: req},
		Type:          model.SubSystemLights,
	}
}

// newTestVessel builds a vessel or fails the test.
func newTestVessel(t *testing.T, id int64, s *model.VesselStructure, opts ...VesselOption) *Vessel {
	t.Helper()
	if s.Class == "" {
		s.Class = "test"
	}
	v, err := NewVessel(id, "vessel", s, opts...)
	if err != nil {
		t.Fatalf("NewVessel(%d): %v", id, err)
	}
	return v
}

// tick runs n updates of dt seconds on the vessel's manager.
func tick(t *testing.T, v *Vessel, n int, dt float64) {
	t.Helper()
	for i := 0; i < n; i++ {
		v.Manager().UpdateSystems(context.Background(), dt)
	}
}

func oid(vessel int64, inScene int) model.VesselObjectID {
	return model.NewVesselObjectID(vessel, inScene)
}

package core

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/signalsfoundry/vessel-systems/model"
)

const dockingScenarioYAML = `
structures:
  - class: tug
    tags: [efficient]
    rooms:
      - {id: 1, volume: 20, air_pressure: 1, air_quality: 1}
    docking_ports:
      - {id: 1, unlock_doors_on_dock: true}
    doors:
      - {id: 1, room1: 1, is_sealable: true, passage_area: 1, docking_port: 1, port_local_position: {x: 0.5}}
    generators:
      - {id: 2, type: power, nominal_output: 10, start_online: true}
    subsystems:
      - id: 3
        type: lights
        start_online: true
        requirements:
          - {resource: power, nominal: 2, standby: 0.5}
  - class: depot
    rooms:
      - {id: 1, volume: 40, air_pressure: 1, air_quality: 0.9}
    docking_ports:
      - {id: 1}
    doors:
      - {id: 1, room1: 1, is_sealable: true, passage_area: 1, docking_port: 1, port_local_position: {x: -0.5}}
    containers:
      - {id: 2, resource: air, capacity: 100, quantity: 80, is_air_tank: true, air_quality: 1}
vessels:
  - {id: 10, name: depot-1, class: depot}
  - id: 11
    name: tug-1
    class: tug
    sun_exposure: 0.4
    dock_to: {parent_id: 10, parent_port: 1, child_port: 1}
`

func TestLoadScenario_RegistersStructuresAndSpawns(t *testing.T) {
	catalog := NewStructureCatalog()
	sc, err := LoadScenario(catalog, strings.NewReader(dockingScenarioYAML))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	if got := catalog.Classes(); !slices.Equal(got, []string{"depot", "tug"}) {
		t.Fatalf("classes = %v", got)
	}

	tug, err := catalog.Get("tug")
	if err != nil {
		t.Fatalf("Get(tug): %v", err)
	}
	if len(tug.Generators) != 1 || tug.Generators[0].Type != model.GeneratorPower || tug.Generators[0].InSceneID != 2 {
		t.Fatalf("tug generators = %+v", tug.Generators)
	}
	req := tug.SubSystems[0].Requirements
	if len(req) != 1 || req[0].Resource != model.ResourcePower || req[0].Nominal != 2 {
		t.Fatalf("lights requirements = %+v", req)
	}

	if len(sc.Vessels) != 2 {
		t.Fatalf("vessels = %d", len(sc.Vessels))
	}
	depot, child := sc.Vessels[0].Definition(), sc.Vessels[1].Definition()
	if depot.SunExposure != 1 || depot.DockedTo != nil {
		t.Fatalf("depot definition = %+v", depot)
	}
	if child.SunExposure != 0.4 || child.DockedTo == nil || child.DockedTo.ParentID != 10 {
		t.Fatalf("tug definition = %+v", child)
	}

	engine := NewSimulationEngine(catalog)
	for _, vs := range sc.Vessels {
		if _, err := engine.Spawn(vs.Definition()); err != nil {
			t.Fatalf("Spawn(%d): %v", vs.ID, err)
		}
	}
	if engine.Vessel(11).IsMain() {
		t.Fatalf("tug did not dock")
	}
}

func TestLoadScenario_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"zero volume": `
structures:
  - class: bad
    rooms: [{id: 1, volume: 0}]
`,
		"unknown generator type": `
structures:
  - class: bad
    rooms: [{id: 1, volume: 5}]
    generators: [{id: 2, type: warp_core}]
`,
		"pressure above one": `
structures:
  - class: bad
    rooms: [{id: 1, volume: 5, air_pressure: 1.5}]
`,
		"unknown top-level key": `
structures:
  - class: bad
    rooms: [{id: 1, volume: 5}]
ships: []
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			catalog := NewStructureCatalog()
			_, err := LoadScenario(catalog, strings.NewReader(doc))
			if !errors.Is(err, ErrInvalidStructure) {
				t.Fatalf("err = %v, want ErrInvalidStructure", err)
			}
			if len(catalog.Classes()) != 0 {
				t.Fatalf("rejected scenario registered %v", catalog.Classes())
			}
		})
	}
}

func TestLoadScenario_DanglingReferenceFailsBeforeRegistering(t *testing.T) {
	doc := `
structures:
  - class: good
    rooms: [{id: 1, volume: 5}]
  - class: broken
    rooms: [{id: 1, volume: 5}]
    doors: [{id: 1, room1: 1, room2: 7, passage_area: 1}]
`
	catalog := NewStructureCatalog()
	_, err := LoadScenario(catalog, strings.NewReader(doc))
	if !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("err = %v, want ErrInvalidStructure", err)
	}
	if len(catalog.Classes()) != 0 {
		t.Fatalf("catalog = %v, want empty", catalog.Classes())
	}
}

func TestLoadScenarioFile_ReadsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.json")
	doc := `{"structures":[{"class":"pod","rooms":[{"id":1,"volume":3,"air_pressure":1,"air_quality":1}]}]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	catalog := NewStructureCatalog()
	if _, err := LoadScenarioFile(catalog, path); err != nil {
		t.Fatalf("LoadScenarioFile: %v", err)
	}
	if _, err := catalog.Get("pod"); err != nil {
		t.Fatalf("Get(pod): %v", err)
	}
	if _, err := LoadScenarioFile(catalog, filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file loaded")
	}
}

func TestSampleConfigsLoad(t *testing.T) {
	tuning, err := LoadTuningFile(filepath.Join("..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("LoadTuningFile: %v", err)
	}
	if got := tuning.RequirementMultiplier([]string{"efficient"}); got != 0.8 {
		t.Fatalf("efficient multiplier = %v, want 0.8", got)
	}

	catalog := NewStructureCatalog()
	sc, err := LoadScenarioFile(catalog, filepath.Join("..", "configs", "scenario.yaml"))
	if err != nil {
		t.Fatalf("LoadScenarioFile: %v", err)
	}
	engine := NewSimulationEngine(catalog, WithTuning(tuning))
	for _, vs := range sc.Vessels {
		if _, err := engine.Spawn(vs.Definition()); err != nil {
			t.Fatalf("Spawn(%d): %v", vs.ID, err)
		}
	}
	if err := engine.Dock(1, 1, 2, 1); err != nil {
		t.Fatalf("Dock: %v", err)
	}
}

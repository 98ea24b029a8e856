package core

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/vessel-systems/model"
)

//go:embed schema/scenario.schema.json
var scenarioSchemaJSON []byte

const scenarioSchemaURL = "mem://vessel-systems/scenario.schema.json"

var (
	scenarioSchemaOnce sync.Once
	scenarioSchema     *jsonschema.Schema
	scenarioSchemaErr  error
)

// Scenario is a set of structure definitions plus the vessels to spawn
// from them.
type Scenario struct {
	Structures []*model.VesselStructure `json:"structures"`
	Vessels    []VesselSpawn            `json:"vessels,omitempty"`
}

// VesselSpawn describes one vessel instance of a catalog class.
type VesselSpawn struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Class       string   `json:"class"`
	SunExposure *float64 `json:"sun_exposure,omitempty"`
	TLE1        string   `json:"tle1,omitempty"`
	TLE2        string   `json:"tle2,omitempty"`
	DockTo      *struct {
		ParentID   int64 `json:"parent_id"`
		ParentPort int   `json:"parent_port"`
		ChildPort  int   `json:"child_port"`
	} `json:"dock_to,omitempty"`
}

// Definition converts the spawn entry into a registry record.
func (s VesselSpawn) Definition() *model.VesselDefinition {
	def := &model.VesselDefinition{
		ID:          s.ID,
		Name:        s.Name,
		Class:       s.Class,
		TLE1:        s.TLE1,
		TLE2:        s.TLE2,
		SunExposure: 1,
	}
	if s.SunExposure != nil {
		def.SunExposure = clamp01(*s.SunExposure)
	}
	if s.TLE1 != "" && s.TLE2 != "" {
		def.MotionSource = model.MotionSourceTLE
	}
	if s.DockTo != nil {
		def.DockedTo = &model.DockingLink{
			ParentID:   s.DockTo.ParentID,
			ParentPort: s.DockTo.ParentPort,
			ChildPort:  s.DockTo.ChildPort,
		}
	}
	return def
}

func compiledScenarioSchema() (*jsonschema.Schema, error) {
	scenarioSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(scenarioSchemaURL, bytes.NewReader(scenarioSchemaJSON)); err != nil {
			scenarioSchemaErr = err
			return
		}
		scenarioSchema, scenarioSchemaErr = c.Compile(scenarioSchemaURL)
	})
	return scenarioSchema, scenarioSchemaErr
}

// LoadScenario reads a YAML or JSON scenario from r, validates it against
// the embedded schema and registers its structures in catalog. Structures
// are also instantiated once to catch dangling references before any
// vessel is spawned.
func LoadScenario(catalog *StructureCatalog, r io.Reader) (*Scenario, error) {
	if catalog == nil {
		return nil, fmt.Errorf("LoadScenario: catalog is nil")
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: read failed: %w", err)
	}

	// JSON is a subset of YAML, so one decoder covers both.
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("LoadScenario: decode failed: %w", err)
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: normalize failed: %w", err)
	}
	var generic any
	if err := json.Unmarshal(normalized, &generic); err != nil {
		return nil, fmt.Errorf("LoadScenario: normalize failed: %w", err)
	}

	schema, err := compiledScenarioSchema()
	if err != nil {
		return nil, fmt.Errorf("LoadScenario: schema: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	var sc Scenario
	if err := json.Unmarshal(normalized, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	for _, s := range sc.Structures {
		if _, err := NewVessel(0, s.Class, s); err != nil {
			return nil, fmt.Errorf("LoadScenario: class %q: %w", s.Class, err)
		}
	}
	for _, s := range sc.Structures {
		if err := catalog.Add(s); err != nil {
			return nil, fmt.Errorf("LoadScenario: %w", err)
		}
	}
	return &sc, nil
}

// LoadScenarioFile opens path and calls LoadScenario.
func LoadScenarioFile(catalog *StructureCatalog, path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadScenario(catalog, f)
}

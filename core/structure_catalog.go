package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/vessel-systems/model"
)

var (
	ErrVesselExists      = errors.New("vessel already exists")
	ErrVesselNotFound    = errors.New("vessel not found")
	ErrStructureExists   = errors.New("structure already exists")
	ErrStructureNotFound = errors.New("structure not found")
	ErrPortNotFound      = errors.New("docking port not found")
	ErrAlreadyDocked     = errors.New("already docked")
	ErrNotDocked         = errors.New("not docked")
	ErrComponentNotFound = errors.New("component not found")
	ErrDoorNotFound      = errors.New("door not found")
	ErrDoorLocked        = errors.New("door is locked")
	ErrInvalidStructure  = errors.New("invalid structure")
	ErrInvalidCommand    = errors.New("invalid command")
)

// StructureCatalog holds the static vessel structure definitions, keyed by
// class. It is safe for concurrent use; callers always receive deep copies
// so templates are never mutated by instantiation.
type StructureCatalog struct {
	mu         sync.RWMutex
	structures map[string]*model.VesselStructure
}

// NewStructureCatalog creates an empty catalog.
func NewStructureCatalog() *StructureCatalog {
	return &StructureCatalog{structures: make(map[string]*model.VesselStructure)}
}

// Add registers a structure under its class.
func (c *StructureCatalog) Add(s *model.VesselStructure) error {
	if s == nil || s.Class == "" {
		return fmt.Errorf("%w: empty class", ErrInvalidStructure)
	}
	if len(s.Rooms) == 0 {
		return fmt.Errorf("%w: class %q has no rooms", ErrInvalidStructure, s.Class)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.structures[s.Class]; exists {
		return fmt.Errorf("%w: %q", ErrStructureExists, s.Class)
	}
	c.structures[s.Class] = s.Clone()
	return nil
}

// Get returns a copy of the structure for class.
func (c *StructureCatalog) Get(class string) (*model.VesselStructure, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.structures[class]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStructureNotFound, class)
	}
	return s.Clone(), nil
}

// Remove drops a class from the catalog.
func (c *StructureCatalog) Remove(class string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.structures[class]; !ok {
		return fmt.Errorf("%w: %q", ErrStructureNotFound, class)
	}
	delete(c.structures, class)
	return nil
}

// Classes lists the registered classes in sorted order.
func (c *StructureCatalog) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.structures))
	for class := range c.structures {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/vessel-systems/model"
)

var (
	// ErrVesselExists indicates a vessel id is already registered.
	ErrVesselExists = errors.New("vessel already exists")
	// ErrVesselNotFound indicates a requested vessel was not found.
	ErrVesselNotFound = errors.New("vessel not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventVesselAdded EventType = iota
	EventVesselRemoved
	EventVesselMoved
	EventVesselDocked
	EventVesselUndocked
)

func (t EventType) String() string {
	switch t {
	case EventVesselAdded:
		return "added"
	case EventVesselRemoved:
		return "removed"
	case EventVesselMoved:
		return "moved"
	case EventVesselDocked:
		return "docked"
	case EventVesselUndocked:
		return "undocked"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type   EventType
	Vessel model.VesselDefinition
}

// KnowledgeBase is an in-memory, thread-safe registry of spawned vessels:
// identity, class, orbit, sun exposure and docking relations.
type KnowledgeBase struct {
	mu sync.RWMutex

	vessels map[int64]*model.VesselDefinition

	subs   map[int]func(Event)
	nextID int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		vessels: make(map[int64]*model.VesselDefinition),
		subs:    make(map[int]func(Event)),
	}
}

// AddVessel registers a vessel. The KB keeps its own copy.
func (kb *KnowledgeBase) AddVessel(v *model.VesselDefinition) error {
	if v == nil {
		return errors.New("vessel is nil")
	}
	kb.mu.Lock()
	if _, exists := kb.vessels[v.ID]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrVesselExists, v.ID)
	}
	cp := v.Clone()
	kb.vessels[v.ID] = cp
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventVesselAdded, Vessel: *cp.Clone()})
	return nil
}

// RemoveVessel drops a vessel.
func (kb *KnowledgeBase) RemoveVessel(id int64) error {
	kb.mu.Lock()
	v, ok := kb.vessels[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrVesselNotFound, id)
	}
	delete(kb.vessels, id)
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventVesselRemoved, Vessel: *v})
	return nil
}

// GetVessel returns a copy of the vessel with the given id, or nil.
func (kb *KnowledgeBase) GetVessel(id int64) *model.VesselDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.vessels[id].Clone()
}

// ListVessels returns copies of all vessels ordered by id.
func (kb *KnowledgeBase) ListVessels() []*model.VesselDefinition {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]*model.VesselDefinition, 0, len(kb.vessels))
	for _, v := range kb.vessels {
		res = append(res, v.Clone())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// UpdateVesselMotion stores a propagated position and sun exposure and
// notifies subscribers. It satisfies core.MotionUpdater.
func (kb *KnowledgeBase) UpdateVesselMotion(id int64, pos model.Motion, sunExposure float64) error {
	kb.mu.Lock()
	v, ok := kb.vessels[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrVesselNotFound, id)
	}
	v.Coordinates = pos
	v.SunExposure = sunExposure
	event := Event{Type: EventVesselMoved, Vessel: *v.Clone()}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	notify(subs, event)
	return nil
}

// SetDocking records that id is docked under link, or undocked when link
// is nil.
func (kb *KnowledgeBase) SetDocking(id int64, link *model.DockingLink) error {
	kb.mu.Lock()
	v, ok := kb.vessels[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrVesselNotFound, id)
	}
	typ := EventVesselUndocked
	v.DockedTo = nil
	if link != nil {
		l := *link
		v.DockedTo = &l
		typ = EventVesselDocked
	}
	event := Event{Type: typ, Vessel: *v.Clone()}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, event)
	return nil
}

// DockedChildren lists the ids of vessels docked directly under parentID,
// in ascending order.
func (kb *KnowledgeBase) DockedChildren(parentID int64) []int64 {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	var out []int64
	for id, v := range kb.vessels {
		if v.DockedTo != nil && v.DockedTo.ParentID == parentID {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Subscribe registers a callback for KB events. It returns an unsubscribe
// function; calling it more than once is harmless.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextID
	kb.nextID++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// subscribersLocked copies the callbacks in registration order. Caller
// holds kb.mu.
func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, kb.subs[id])
	}
	return out
}

func notify(subs []func(Event), e Event) {
	for _, sub := range subs {
		sub(e)
	}
}

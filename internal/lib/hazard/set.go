package hazard

import (
	"fmt"
	"time"
)

// Set is the mutable working set of hazards for one planning session.
// It is not safe for concurrent use; callers serialize access.
type Set struct {
	hazards []Hazard
	nextID  int
	now     func() time.Time
}

// NewSet creates an empty hazard set
func NewSet() *Set {
	return &Set{now: time.Now}
}

// Add realizes the shape and appends it to the set
func (s *Set) Add(shape Shape) (Hazard, error) {
	geometry, err := shape.Realize()
	if err != nil {
		return Hazard{}, err
	}

	s.nextID++
	h := Hazard{
		ID:           fmt.Sprintf("hz-%d", s.nextID),
		Kind:         shape.Kind,
		RadiusMeters: shape.RadiusMeters,
		Geometry:     geometry,
		CreatedAt:    s.now(),
	}
	if shape.Center != nil {
		center := *shape.Center
		h.Center = &center
	}

	s.hazards = append(s.hazards, h)
	return h, nil
}

// Remove deletes the hazard with the given ID, reporting whether it existed
func (s *Set) Remove(id string) bool {
	for i, h := range s.hazards {
		if h.ID == id {
			s.hazards = append(s.hazards[:i], s.hazards[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all hazards. IDs keep increasing so a cleared ID is never reused.
func (s *Set) Clear() {
	s.hazards = nil
}

// Get returns the hazard with the given ID
func (s *Set) Get(id string) (Hazard, bool) {
	for _, h := range s.hazards {
		if h.ID == id {
			return h, true
		}
	}
	return Hazard{}, false
}

// List returns a snapshot of the hazards in insertion order
func (s *Set) List() []Hazard {
	out := make([]Hazard, len(s.hazards))
	copy(out, s.hazards)
	return out
}

// Len returns the number of hazards
func (s *Set) Len() int {
	return len(s.hazards)
}

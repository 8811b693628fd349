package particle

import (
	"fmt"
)

// Collection is an insertion-ordered arena of particles keyed by ID
// Handles stay valid for the collection's lifetime; there is no removal short of Reset
type Collection struct {
	items []*Particle
	index map[ID]int
}

// NewCollection creates an empty collection
func NewCollection() *Collection {
	return &Collection{
		index: make(map[ID]int),
	}
}

// Add appends p, rejecting duplicate IDs
func (c *Collection) Add(p *Particle) error {
	if p == nil {
		return fmt.Errorf("add particle: nil particle")
	}
	if _, exists := c.index[p.ID]; exists {
		return fmt.Errorf("add particle: duplicate id %q", p.ID)
	}
	c.index[p.ID] = len(c.items)
	c.items = append(c.items, p)
	return nil
}

// Get resolves a handle
func (c *Collection) Get(id ID) (*Particle, bool) {
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return c.items[i], true
}

// IndexOf returns the insertion index of id
func (c *Collection) IndexOf(id ID) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// At returns the i-th particle in insertion order
func (c *Collection) At(i int) *Particle {
	return c.items[i]
}

// Len returns the particle count
func (c *Collection) Len() int {
	return len(c.items)
}

// All returns the particles in insertion order
// INTERNAL USE ONLY - callers must not append to or reorder the slice
func (c *Collection) All() []*Particle {
	return c.items
}

// Resolve maps handles to particles, skipping any that no longer resolve
func (c *Collection) Resolve(ids []ID) []*Particle {
	if len(ids) == 0 {
		return nil
	}
	out := make([]*Particle, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Reset drops every particle
func (c *Collection) Reset() {
	c.items = nil
	c.index = make(map[ID]int)
}

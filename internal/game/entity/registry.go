package entity

import (
	"errors"
	"slices"

	"github.com/Faultbox/worldview/pkg/math"
)

// ErrNotFound is returned for ids that do not name a live entity.
var ErrNotFound = errors.New("entity not found")

// ID names an entity slot and the generation it was created in. A stale
// ID never resolves to an entity created later in the same slot. The zero
// ID is never valid.
type ID struct {
	index uint32
	gen   uint32
}

// IsZero reports whether id is the zero ID.
func (id ID) IsZero() bool {
	return id.gen == 0
}

// Handle packs the id into a uint64 for components that cannot import
// this package.
func (id ID) Handle() uint64 {
	return uint64(id.gen)<<32 | uint64(id.index)
}

// IDFromHandle reverses Handle.
func IDFromHandle(h uint64) ID {
	return ID{index: uint32(h), gen: uint32(h >> 32)}
}

type slot struct {
	gen    uint32
	entity *Entity
}

// Registry is the arena owning every entity.
type Registry struct {
	slots []slot
	free  []uint32
	count int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Create allocates a new entity of the given kind.
func (r *Registry) Create(kind Kind) *Entity {
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = uint32(len(r.slots))
		r.slots = append(r.slots, slot{})
	}
	s := &r.slots[idx]
	s.gen++
	e := &Entity{
		id:       ID{index: idx, gen: s.gen},
		Kind:     kind,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
	}
	s.entity = e
	r.count++
	return e
}

// Get resolves id.
func (r *Registry) Get(id ID) (*Entity, bool) {
	if id.IsZero() || int(id.index) >= len(r.slots) {
		return nil, false
	}
	s := r.slots[id.index]
	if s.gen != id.gen || s.entity == nil {
		return nil, false
	}
	return s.entity, true
}

// Remove destroys the entity. Its parent forgets it and its children
// become roots.
func (r *Registry) Remove(id ID) error {
	e, ok := r.Get(id)
	if !ok {
		return ErrNotFound
	}
	r.Unlink(id)
	for _, c := range e.Children {
		if child, ok := r.Get(c); ok {
			child.Parent = ID{}
		}
	}
	e.Children = nil

	r.slots[id.index].entity = nil
	r.free = append(r.free, id.index)
	r.count--
	return nil
}

// Link makes parent the parent of child, replacing any previous parent.
func (r *Registry) Link(child, parent ID) error {
	c, ok := r.Get(child)
	if !ok {
		return ErrNotFound
	}
	if _, ok := r.Get(parent); !ok {
		return ErrNotFound
	}
	r.Unlink(child)
	p, _ := r.Get(parent)
	c.Parent = parent
	p.Children = append(p.Children, child)
	return nil
}

// Unlink detaches child from its parent, if any.
func (r *Registry) Unlink(child ID) {
	c, ok := r.Get(child)
	if !ok || c.Parent.IsZero() {
		return
	}
	if p, ok := r.Get(c.Parent); ok {
		p.Children = slices.DeleteFunc(p.Children, func(id ID) bool { return id == child })
	}
	c.Parent = ID{}
}

// Children resolves e's live children.
func (r *Registry) Children(e *Entity) []*Entity {
	out := make([]*Entity, 0, len(e.Children))
	for _, id := range e.Children {
		if c, ok := r.Get(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// All returns every live entity in slot order.
func (r *Registry) All() []*Entity {
	result := make([]*Entity, 0, r.count)
	for _, s := range r.slots {
		if s.entity != nil {
			result = append(result, s.entity)
		}
	}
	return result
}

// Count returns the number of live entities.
func (r *Registry) Count() int {
	return r.count
}

// CountByKind returns the number of live entities of a kind.
func (r *Registry) CountByKind(kind Kind) int {
	count := 0
	for _, s := range r.slots {
		if s.entity != nil && s.entity.Kind == kind {
			count++
		}
	}
	return count
}

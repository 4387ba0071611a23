package models

import (
	"sync"

	"github.com/aukilabs/hagall-spatial/quadtree"
)

// Entity is an object placed in a space.
type Entity struct {
	ID    uint32
	Label string

	mutex  sync.RWMutex
	bounds quadtree.Rect
}

func NewEntity(id uint32, label string, bounds quadtree.Rect) *Entity {
	return &Entity{
		ID:     id,
		Label:  label,
		bounds: bounds,
	}
}

// Hitbox returns the entity bounds.
func (e *Entity) Hitbox() quadtree.Rect {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.bounds
}

// SetBounds changes the entity bounds. Entities added to a space must be moved
// with Space.MoveEntity, otherwise the space index loses track of them.
func (e *Entity) SetBounds(r quadtree.Rect) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.bounds = r
}

package models

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hagall-spatial/quadtree"
	"github.com/google/uuid"
)

// SpaceOptions configures a space.
type SpaceOptions struct {
	Name string

	// The area covered by the space index.
	Bounds quadtree.Rect

	// The number of entities a quadtree node holds before it is split.
	NodeCapacity int

	// Rejects entities whose hitbox does not overlap the space bounds instead
	// of keeping them unindexed.
	Strict bool

	// Searches the whole index when an entity is not found by its hitbox on
	// removal.
	VerifiedRemoval bool
}

// SpaceStats describes the state of a space index.
type SpaceStats struct {
	Entities int `json:"entities"`
	Indexed  int `json:"indexed"`
	Nodes    int `json:"nodes"`
	Leaves   int `json:"leaves"`
	Depth    int `json:"depth"`
}

// Space represents an area where entities are placed and indexed by their
// hitbox.
type Space struct {
	ID     uint32
	UUID   string
	Name   string
	Bounds quadtree.Rect

	nodeCapacity    int
	strict          bool
	verifiedRemoval bool

	entityIDs SequentialIDGenerator
	mutex     sync.RWMutex
	entities  map[uint32]*Entity
	unindexed map[uint32]struct{}
	index     *quadtree.Node[*Entity]

	moduleStates map[string]any
	moduleMutex  sync.RWMutex
}

func NewSpace(id uint32, opts SpaceOptions) *Space {
	var indexOpts []quadtree.Option
	if opts.NodeCapacity > 0 {
		indexOpts = append(indexOpts, quadtree.WithCapacity(opts.NodeCapacity))
	}

	return &Space{
		ID:              id,
		UUID:            uuid.NewString(),
		Name:            opts.Name,
		Bounds:          opts.Bounds,
		nodeCapacity:    opts.NodeCapacity,
		strict:          opts.Strict,
		verifiedRemoval: opts.VerifiedRemoval,
		entities:        make(map[uint32]*Entity),
		unindexed:       make(map[uint32]struct{}),
		index:           quadtree.New[*Entity](opts.Bounds, indexOpts...),
		moduleStates:    make(map[string]any),
	}
}

// NodeCapacity returns the capacity of the quadtree nodes of the space index.
func (s *Space) NodeCapacity() int {
	if s.nodeCapacity < 1 {
		return quadtree.DefaultCapacity
	}
	return s.nodeCapacity
}

func (s *Space) NewEntityID() uint32 {
	return s.entityIDs.New()
}

// ReuseEntityID makes an id returned by NewEntityID available again. It is
// used when the entity created with the id could not be added.
func (s *Space) ReuseEntityID(id uint32) {
	s.entityIDs.Reuse(id)
}

// AddEntity adds the entity to the space and indexes it.
func (s *Space) AddEntity(e *Entity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.entities[e.ID]; ok {
		return errors.New("entity already exists").
			WithType(ErrTypeEntityExists).
			WithTag("space_id", s.ID).
			WithTag("entity_id", e.ID)
	}

	indexed, err := s.checkBounds(e.ID, e.Hitbox())
	if err != nil {
		return err
	}

	s.entities[e.ID] = e
	s.insert(e, indexed)
	instrumentEntityGauge(1)
	return nil
}

// RemoveEntity removes the entity with the given id from the space.
func (s *Space) RemoveEntity(id uint32) (*Entity, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}

	delete(s.entities, id)
	s.unindex(e)
	s.entityIDs.Reuse(id)
	instrumentEntityGauge(-1)
	return e, true
}

// MoveEntity changes the bounds of the entity with the given id and
// reindexes it.
func (s *Space) MoveEntity(id uint32, bounds quadtree.Rect) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return errors.New("entity not found").
			WithType(ErrTypeEntityNotFound).
			WithTag("space_id", s.ID).
			WithTag("entity_id", id)
	}

	indexed, err := s.checkBounds(id, bounds)
	if err != nil {
		return err
	}

	s.unindex(e)
	e.SetBounds(bounds)
	s.insert(e, indexed)
	return nil
}

func (s *Space) EntityByID(id uint32) (*Entity, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, ok := s.entities[id]
	return e, ok
}

// Entities returns the entities of the space ordered by id.
func (s *Space) Entities() []*Entity {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entities := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		entities = append(entities, e)
	}
	sortEntities(entities)
	return entities
}

func (s *Space) EntityCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.entities)
}

// Intersect returns the entities whose hitbox overlaps r, ordered by id.
func (s *Space) Intersect(r quadtree.Rect) []*Entity {
	start := time.Now()

	s.mutex.RLock()
	var entities []*Entity
	s.index.Intersect(r, func(e *Entity) {
		entities = append(entities, e)
	})
	s.mutex.RUnlock()

	instrumentQuery(QueryModeExact, start, len(entities))
	sortEntities(entities)
	return entities
}

// Candidates returns the entities stored in the index nodes overlapping r,
// ordered by id. It includes every entity overlapping r and may include
// entities that do not.
func (s *Space) Candidates(r quadtree.Rect) []*Entity {
	start := time.Now()

	s.mutex.RLock()
	entities := s.index.Candidates(r, nil)
	s.mutex.RUnlock()

	instrumentQuery(QueryModeConservative, start, len(entities))
	sortEntities(entities)
	return entities
}

// Any reports whether an entity hitbox overlaps r.
func (s *Space) Any(r quadtree.Rect) bool {
	start := time.Now()

	s.mutex.RLock()
	found := s.index.Any(r)
	s.mutex.RUnlock()

	results := 0
	if found {
		results = 1
	}
	instrumentQuery(QueryModeAny, start, results)
	return found
}

// Clear removes all the entities of the space. The index keeps its shape.
func (s *Space) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	instrumentEntityGauge(-len(s.entities))
	for id := range s.entities {
		s.entityIDs.Reuse(id)
	}
	clear(s.entities)
	clear(s.unindexed)
	s.index.Clear()
}

func (s *Space) Stats() SpaceStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := SpaceStats{
		Entities: len(s.entities),
		Indexed:  s.index.TotalObjectCount(),
	}

	s.index.Walk(func(n *quadtree.Node[*Entity], depth int) bool {
		stats.Nodes++
		if n.IsLeaf() {
			stats.Leaves++
		}
		stats.Depth = max(stats.Depth, depth)
		return true
	})
	return stats
}

func (s *Space) SetModuleState(moduleName string, state any) {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	s.moduleStates[moduleName] = state
}

func (s *Space) ModuleState(moduleName string) (any, bool) {
	s.moduleMutex.RLock()
	defer s.moduleMutex.RUnlock()

	state, ok := s.moduleStates[moduleName]
	return state, ok
}

// LoadOrInitModuleState returns the state of the given module, creating it
// with init when the module has no state yet.
func (s *Space) LoadOrInitModuleState(moduleName string, init func() any) any {
	s.moduleMutex.Lock()
	defer s.moduleMutex.Unlock()

	state, ok := s.moduleStates[moduleName]
	if !ok {
		state = init()
		s.moduleStates[moduleName] = state
	}
	return state
}

// checkBounds reports whether an entity with the given hitbox is indexed.
func (s *Space) checkBounds(entityID uint32, hitbox quadtree.Rect) (bool, error) {
	if s.Bounds.Overlaps(hitbox) {
		return true, nil
	}

	if s.strict {
		return false, errors.New("entity is out of space bounds").
			WithType(ErrTypeOutOfBounds).
			WithTag("space_id", s.ID).
			WithTag("entity_id", entityID).
			WithTag("hitbox", hitbox.String())
	}

	instrumentDroppedInsert()
	logs.WithTag("space_id", s.ID).
		WithTag("entity_id", entityID).
		WithTag("hitbox", hitbox.String()).
		Debug("entity is out of space bounds and is not indexed")
	return false, nil
}

func (s *Space) insert(e *Entity, indexed bool) {
	if !indexed {
		s.unindexed[e.ID] = struct{}{}
		return
	}
	s.index.Insert(e)
}

func (s *Space) unindex(e *Entity) {
	if _, ok := s.unindexed[e.ID]; ok {
		delete(s.unindexed, e.ID)
		return
	}

	if s.index.Remove(e) {
		return
	}

	hitbox := e.Hitbox()

	result := "missed"
	if s.verifiedRemoval && s.index.RemoveScan(e) {
		result = "recovered"
	}
	instrumentMissedRemoval(result)

	logs.WithTag("space_id", s.ID).
		WithTag("entity_id", e.ID).
		WithTag("hitbox", hitbox.String()).
		WithTag("result", result).
		Warn("entity was not found by its hitbox")
}

func sortEntities(entities []*Entity) {
	slices.SortFunc(entities, func(a, b *Entity) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

// SpaceStore is a registry of spaces.
type SpaceStore struct {
	initOnce sync.Once
	mutex    sync.RWMutex
	spaces   map[uint32]*Space
	ids      SequentialIDGenerator
}

func (s *SpaceStore) init() {
	s.spaces = map[uint32]*Space{}
}

func (s *SpaceStore) NewID() uint32 {
	return s.ids.New()
}

func (s *SpaceStore) Add(ctx context.Context, space *Space) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.spaces[space.ID]; ok {
		return errors.Newf("space %v already exists", space.ID)
	}
	s.spaces[space.ID] = space

	instrumentAddSpace()
	return nil
}

func (s *SpaceStore) Remove(ctx context.Context, space *Space) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.spaces[space.ID] != space {
		return
	}
	delete(s.spaces, space.ID)
	s.ids.Reuse(space.ID)

	instrumentRemoveSpace(space.EntityCount())
}

func (s *SpaceStore) Get(id uint32) (*Space, bool) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	space, ok := s.spaces[id]
	return space, ok
}

// List returns the spaces ordered by id.
func (s *SpaceStore) List() []*Space {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	spaces := make([]*Space, 0, len(s.spaces))
	for _, space := range s.spaces {
		spaces = append(spaces, space)
	}
	slices.SortFunc(spaces, func(a, b *Space) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return spaces
}

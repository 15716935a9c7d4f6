package component

import (
	"slices"

	"github.com/kamstrup/intmap"
	"github.com/zeusync/ecsruntime/internal/core/models"
)

const defaultCapacity = 64

// Instance is the type-erased view of a component instance.
type Instance interface {
	Entity() models.Entity
	ModelValue() any
}

// Untyped is the view of a Store the scene manager dispatches through when it
// only knows the component id.
type Untyped interface {
	ID() models.ComponentID
	HasComponent(entity models.Entity) bool
	GetInstance(entity models.Entity) (Instance, bool)
	GetOrCreateInstance(entity models.Entity) Instance
	Remove(entity models.Entity) bool
	RemoveAll()
	Len() int
	Entities() []models.EntityID
}

var (
	_ Untyped  = (*Store[struct{}])(nil)
	_ Instance = (*Component[struct{}])(nil)
)

// Component is the record attached to one entity for one component type.
type Component[T any] struct {
	entity models.Entity
	model  T
}

func (c *Component[T]) Entity() models.Entity { return c.entity }
func (c *Component[T]) Model() T              { return c.model }
func (c *Component[T]) ModelValue() any       { return c.model }

// Store keeps the sparse entity -> component mapping for one component type
// and drives its handler. It is not safe for concurrent use.
type Store[T any] struct {
	id       models.ComponentID
	scene    models.Scene
	handler  Handler[T]
	entities *intmap.Map[models.EntityID, *Component[T]]
}

// NewStore creates an empty store. A nil handler is replaced by a no-op one.
func NewStore[T any](id models.ComponentID, scene models.Scene, handler Handler[T]) *Store[T] {
	if handler == nil {
		handler = HandlerFuncs[T]{}
	}
	return &Store[T]{
		id:       id,
		scene:    scene,
		handler:  handler,
		entities: intmap.New[models.EntityID, *Component[T]](defaultCapacity),
	}
}

func (s *Store[T]) ID() models.ComponentID { return s.id }

// Handler returns the handler instance bound to this store.
func (s *Store[T]) Handler() Handler[T] { return s.handler }

// GetOrCreate returns the entity's component, creating it with a zero model
// and firing OnComponentCreated the first time.
func (s *Store[T]) GetOrCreate(entity models.Entity) *Component[T] {
	if c, ok := s.entities.Get(entity.ID()); ok {
		return c
	}
	c := &Component[T]{entity: entity}
	s.entities.Put(entity.ID(), c)
	s.handler.OnComponentCreated(s.scene, entity)
	return c
}

func (s *Store[T]) Get(entity models.Entity) (*Component[T], bool) {
	return s.entities.Get(entity.ID())
}

func (s *Store[T]) HasComponent(entity models.Entity) bool {
	return s.entities.Has(entity.ID())
}

// SetModel replaces the entity's model in place and fires OnComponentModelUpdated,
// preceded by OnComponentCreated when the entity had no component yet.
func (s *Store[T]) SetModel(entity models.Entity, model T) {
	c := s.GetOrCreate(entity)
	c.model = model
	s.handler.OnComponentModelUpdated(s.scene, c.entity, model)
}

// Remove fires OnComponentRemoved and forgets the component. It reports
// whether anything was removed; removing an absent component is a no-op.
func (s *Store[T]) Remove(entity models.Entity) bool {
	c, ok := s.entities.Get(entity.ID())
	if !ok {
		return false
	}
	s.handler.OnComponentRemoved(s.scene, c.entity)
	s.entities.Del(entity.ID())
	return true
}

// RemoveAll removes every component in ascending entity id order.
func (s *Store[T]) RemoveAll() {
	for _, id := range s.Entities() {
		if c, ok := s.entities.Get(id); ok {
			s.Remove(c.entity)
		}
	}
}

func (s *Store[T]) Len() int {
	return s.entities.Len()
}

// Entities returns the ids currently holding this component, sorted.
func (s *Store[T]) Entities() []models.EntityID {
	ids := make([]models.EntityID, 0, s.entities.Len())
	s.entities.ForEach(func(id models.EntityID, _ *Component[T]) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	return ids
}

// ForEach visits components in unspecified order until fn returns false.
// The store must not be mutated from fn.
func (s *Store[T]) ForEach(fn func(c *Component[T]) bool) {
	s.entities.ForEach(func(_ models.EntityID, c *Component[T]) bool {
		return fn(c)
	})
}

func (s *Store[T]) GetInstance(entity models.Entity) (Instance, bool) {
	c, ok := s.entities.Get(entity.ID())
	if !ok {
		return nil, false
	}
	return c, true
}

func (s *Store[T]) GetOrCreateInstance(entity models.Entity) Instance {
	return s.GetOrCreate(entity)
}

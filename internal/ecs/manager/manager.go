// Package manager routes component operations of one scene to the typed store
// of each component type.
package manager

import (
	"slices"

	"github.com/zeusync/ecsruntime/internal/core/events/bus"
	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/ecs"
	"github.com/zeusync/ecsruntime/internal/ecs/component"
	"github.com/zeusync/ecsruntime/internal/ecs/factory"
)

// StoreSummary describes one instantiated typed store.
type StoreSummary struct {
	ComponentID models.ComponentID
	EntityCount int
}

type Option func(m *SceneComponentsManager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l log.Log) Option {
	return func(m *SceneComponentsManager) {
		m.logger = l
	}
}

// WithEventBus publishes every lifecycle transition on b after the handler ran.
func WithEventBus(b bus.EventBus) Option {
	return func(m *SceneComponentsManager) {
		m.events = b
	}
}

// SceneComponentsManager owns the typed stores of one scene. The set of known
// component types is fixed at construction; stores are built on first use.
// It is not safe for concurrent use.
type SceneComponentsManager struct {
	scene       models.Scene
	definitions map[models.ComponentID]factory.Definition
	components  map[models.ComponentID]component.Untyped
	logger      log.Log
	events      bus.EventBus
}

// New creates a manager over a snapshot of definitions.
func New(scene models.Scene, definitions map[models.ComponentID]factory.Definition, opts ...Option) *SceneComponentsManager {
	defs := make(map[models.ComponentID]factory.Definition, len(definitions))
	for id, def := range definitions {
		defs[id] = def
	}
	m := &SceneComponentsManager{
		scene:       scene,
		definitions: defs,
		components:  make(map[models.ComponentID]component.Untyped),
		logger:      log.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if scene != nil {
		m.logger = m.logger.With(log.String("scene", scene.SceneID()))
	}
	return m
}

// FromFactory is New over the factory's current registry.
func FromFactory(scene models.Scene, f *factory.Factory, opts ...Option) *SceneComponentsManager {
	return New(scene, f.Definitions(), opts...)
}

func (m *SceneComponentsManager) Scene() models.Scene { return m.scene }

// GetOrCreateComponent attaches component type id to entity if needed and
// returns the typed store holding it.
func (m *SceneComponentsManager) GetOrCreateComponent(id models.ComponentID, entity models.Entity) (component.Untyped, error) {
	store, err := m.store(id)
	if err != nil {
		m.logger.Error("Cannot create component of unknown type",
			log.Int32("component_id", int32(id)),
			log.Int64("entity", int64(entity.ID())))
		return nil, err
	}
	store.GetOrCreateInstance(entity)
	return store, nil
}

// DeserializeComponent decodes data with the type's deserializer and stores
// the model on entity. Nothing changes when decoding fails.
func (m *SceneComponentsManager) DeserializeComponent(id models.ComponentID, entity models.Entity, data []byte) error {
	def, ok := m.definitions[id]
	if !ok {
		m.logger.Error("Cannot deserialize component of unknown type",
			log.Int32("component_id", int32(id)),
			log.Int64("entity", int64(entity.ID())))
		return ecs.NewError(ecs.ErrorCodeUnknownComponentType, id, nil)
	}

	return def.Deserialize(id, data, entity, func() component.Untyped {
		store, _ := m.store(id)
		return store
	})
}

// RemoveComponent detaches component type id from entity. Unknown types and
// absent components are no-ops.
func (m *SceneComponentsManager) RemoveComponent(id models.ComponentID, entity models.Entity) error {
	if _, ok := m.definitions[id]; !ok {
		m.logger.Warn("Ignoring removal of unknown component type",
			log.Int32("component_id", int32(id)),
			log.Int64("entity", int64(entity.ID())))
		return nil
	}
	store, ok := m.components[id]
	if !ok {
		return nil
	}
	store.Remove(entity)
	return nil
}

// RemoveEntity detaches every component from entity, in ascending component id order.
func (m *SceneComponentsManager) RemoveEntity(entity models.Entity) {
	for _, id := range m.instantiatedIDs() {
		m.components[id].Remove(entity)
	}
}

// Dispose removes every component from every store, firing removal callbacks.
func (m *SceneComponentsManager) Dispose() {
	for _, id := range m.instantiatedIDs() {
		m.components[id].RemoveAll()
	}
}

// Component returns the typed store for id if it has been instantiated.
func (m *SceneComponentsManager) Component(id models.ComponentID) (component.Untyped, bool) {
	store, ok := m.components[id]
	return store, ok
}

// HasComponent reports whether entity holds component type id.
func (m *SceneComponentsManager) HasComponent(id models.ComponentID, entity models.Entity) bool {
	store, ok := m.components[id]
	return ok && store.HasComponent(entity)
}

// Summary returns per-store entity counts for instantiated stores.
func (m *SceneComponentsManager) Summary() map[models.ComponentID]StoreSummary {
	out := make(map[models.ComponentID]StoreSummary, len(m.components))
	for id, store := range m.components {
		out[id] = StoreSummary{ComponentID: id, EntityCount: store.Len()}
	}
	return out
}

// Registered reports whether id is part of this manager's registry.
func (m *SceneComponentsManager) Registered(id models.ComponentID) bool {
	_, ok := m.definitions[id]
	return ok
}

func (m *SceneComponentsManager) store(id models.ComponentID) (component.Untyped, error) {
	if store, ok := m.components[id]; ok {
		return store, nil
	}
	def, ok := m.definitions[id]
	if !ok {
		return nil, ecs.NewError(ecs.ErrorCodeUnknownComponentType, id, nil)
	}
	store := def.NewStore(id, m.scene, m.listener())
	m.components[id] = store
	return store, nil
}

func (m *SceneComponentsManager) listener() component.Listener {
	if m.events == nil {
		return nil
	}
	return m.publish
}

func (m *SceneComponentsManager) publish(t component.Transition, id models.ComponentID, scene models.Scene, entity models.Entity, model any) {
	event := bus.Event{
		Kind:        transitionKinds[t],
		Entity:      entity.ID(),
		ComponentID: id,
		Model:       model,
	}
	if scene != nil {
		event.SceneID = scene.SceneID()
	}
	if err := m.events.Publish(event); err != nil {
		m.logger.Warn("Lifecycle event subscriber failed",
			log.String("kind", string(event.Kind)),
			log.Int32("component_id", int32(id)),
			log.Int64("entity", int64(entity.ID())),
			log.Error(err))
	}
}

var transitionKinds = map[component.Transition]bus.Kind{
	component.Created: bus.KindCreated,
	component.Updated: bus.KindUpdated,
	component.Removed: bus.KindRemoved,
}

func (m *SceneComponentsManager) instantiatedIDs() []models.ComponentID {
	ids := make([]models.ComponentID, 0, len(m.components))
	for id := range m.components {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Typed returns the store for id as its concrete model type, instantiating it
// if needed.
func Typed[T any](m *SceneComponentsManager, id models.ComponentID) (*component.Store[T], error) {
	store, err := m.store(id)
	if err != nil {
		return nil, err
	}
	typed, ok := store.(*component.Store[T])
	if !ok {
		return nil, ecs.NewError(ecs.ErrorCodeTypeMismatch, id, nil)
	}
	return typed, nil
}

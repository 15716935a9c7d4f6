// Package factory keeps the registry of component definitions a scene manager
// is built from.
package factory

import (
	"slices"

	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/ecs"
	"github.com/zeusync/ecsruntime/internal/ecs/codec"
	"github.com/zeusync/ecsruntime/internal/ecs/component"
)

// Definition binds a component model type to its deserializer and handler
// builder. The model type is fixed when the definition is created, so callers
// holding a Definition never need to know it.
type Definition struct {
	newStore    func(id models.ComponentID, scene models.Scene, listener component.Listener) component.Untyped
	deserialize func(id models.ComponentID, data []byte, entity models.Entity, resolve func() component.Untyped) error
}

// Define creates a Definition. handlerBuilder is called once per typed store.
func Define[T any](deserializer func([]byte) (T, error), handlerBuilder func() component.Handler[T]) Definition {
	return Definition{
		newStore: func(id models.ComponentID, scene models.Scene, listener component.Listener) component.Untyped {
			var handler component.Handler[T]
			if handlerBuilder != nil {
				handler = handlerBuilder()
			}
			return component.NewStore[T](id, scene, component.Observe(handler, id, listener))
		},
		deserialize: func(id models.ComponentID, data []byte, entity models.Entity, resolve func() component.Untyped) error {
			model, err := deserializer(data)
			if err != nil {
				return ecs.NewError(ecs.ErrorCodeDeserialization, id, err)
			}
			typed, ok := resolve().(*component.Store[T])
			if !ok {
				return ecs.NewError(ecs.ErrorCodeTypeMismatch, id, nil)
			}
			typed.SetModel(entity, model)
			return nil
		},
	}
}

// DefineWithCodec is Define using the codec's Decode as deserializer.
func DefineWithCodec[T any](c codec.Codec[T], handlerBuilder func() component.Handler[T]) Definition {
	return Define(c.Decode, handlerBuilder)
}

// NewStore builds an empty typed store with a fresh handler. A non-nil
// listener is called after each handler callback.
func (d Definition) NewStore(id models.ComponentID, scene models.Scene, listener component.Listener) component.Untyped {
	return d.newStore(id, scene, listener)
}

// Deserialize decodes data and applies it to the store returned by resolve.
// resolve is only called once decoding succeeded, so a bad payload never
// creates or mutates a store.
func (d Definition) Deserialize(id models.ComponentID, data []byte, entity models.Entity, resolve func() component.Untyped) error {
	return d.deserialize(id, data, entity, resolve)
}

// Factory is the component registry. It is filled once at startup.
type Factory struct {
	definitions map[models.ComponentID]Definition
}

func New() *Factory {
	return &Factory{definitions: make(map[models.ComponentID]Definition)}
}

// Register adds a definition. Registering the same id twice is rejected.
func (f *Factory) Register(id models.ComponentID, def Definition) error {
	if _, exists := f.definitions[id]; exists {
		return ecs.NewError(ecs.ErrorCodeAlreadyRegistered, id, nil)
	}
	f.definitions[id] = def
	return nil
}

// MustRegister is Register for static startup tables.
func (f *Factory) MustRegister(id models.ComponentID, def Definition) *Factory {
	if err := f.Register(id, def); err != nil {
		panic(err)
	}
	return f
}

// Lookup returns the definition for id.
func (f *Factory) Lookup(id models.ComponentID) (Definition, bool) {
	def, ok := f.definitions[id]
	return def, ok
}

// Definitions returns a copy of the registry.
func (f *Factory) Definitions() map[models.ComponentID]Definition {
	out := make(map[models.ComponentID]Definition, len(f.definitions))
	for id, def := range f.definitions {
		out[id] = def
	}
	return out
}

// IDs returns the registered ids in ascending order.
func (f *Factory) IDs() []models.ComponentID {
	ids := make([]models.ComponentID, 0, len(f.definitions))
	for id := range f.definitions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

package component

import "github.com/zeusync/ecsruntime/internal/core/models"

// Handler receives the lifecycle transitions of one component type. Calls are
// synchronous and ordered Created, ModelUpdated (any number of times), Removed
// for each entity. Scene and entity are only valid for the duration of a call.
type Handler[T any] interface {
	OnComponentCreated(scene models.Scene, entity models.Entity)
	OnComponentModelUpdated(scene models.Scene, entity models.Entity, model T)
	OnComponentRemoved(scene models.Scene, entity models.Entity)
}

var _ Handler[struct{}] = HandlerFuncs[struct{}]{}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs[T any] struct {
	Created func(scene models.Scene, entity models.Entity)
	Updated func(scene models.Scene, entity models.Entity, model T)
	Removed func(scene models.Scene, entity models.Entity)
}

func (h HandlerFuncs[T]) OnComponentCreated(scene models.Scene, entity models.Entity) {
	if h.Created != nil {
		h.Created(scene, entity)
	}
}

func (h HandlerFuncs[T]) OnComponentModelUpdated(scene models.Scene, entity models.Entity, model T) {
	if h.Updated != nil {
		h.Updated(scene, entity, model)
	}
}

func (h HandlerFuncs[T]) OnComponentRemoved(scene models.Scene, entity models.Entity) {
	if h.Removed != nil {
		h.Removed(scene, entity)
	}
}

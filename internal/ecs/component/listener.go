package component

import "github.com/zeusync/ecsruntime/internal/core/models"

// Transition names a lifecycle step.
type Transition uint8

const (
	Created Transition = iota + 1
	Updated
	Removed
)

func (t Transition) String() string {
	switch t {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Listener is told about a transition after the type's handler has run.
// model is nil except for Updated.
type Listener func(t Transition, id models.ComponentID, scene models.Scene, entity models.Entity, model any)

type observedHandler[T any] struct {
	inner    Handler[T]
	id       models.ComponentID
	listener Listener
}

// Observe wraps h so that listener follows every callback. A nil listener returns h unchanged.
func Observe[T any](h Handler[T], id models.ComponentID, listener Listener) Handler[T] {
	if listener == nil {
		return h
	}
	if h == nil {
		h = HandlerFuncs[T]{}
	}
	return observedHandler[T]{inner: h, id: id, listener: listener}
}

func (o observedHandler[T]) OnComponentCreated(scene models.Scene, entity models.Entity) {
	o.inner.OnComponentCreated(scene, entity)
	o.listener(Created, o.id, scene, entity, nil)
}

func (o observedHandler[T]) OnComponentModelUpdated(scene models.Scene, entity models.Entity, model T) {
	o.inner.OnComponentModelUpdated(scene, entity, model)
	o.listener(Updated, o.id, scene, entity, model)
}

func (o observedHandler[T]) OnComponentRemoved(scene models.Scene, entity models.Entity) {
	o.inner.OnComponentRemoved(scene, entity)
	o.listener(Removed, o.id, scene, entity, nil)
}

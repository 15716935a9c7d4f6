package bus

import (
	"time"

	"github.com/zeusync/ecsruntime/internal/core/models"
)

// EventBus is an in-process pub/sub bus for component lifecycle events.
//
// - Events are routed by Kind. Subscribers either listen on one scene or on
//   all scenes (the "" topic).
// - Delivery is synchronous in the publisher's goroutine, scene subscribers
//   first, then global ones, each group in subscription order.
// - Handler errors are joined and returned from Publish.
// - Metrics are always collected. Observers additionally see each delivery.
// - All methods are safe for concurrent use.
type EventBus interface {
	// Publish delivers the event to subscribers of event.Kind on event.SceneID and on all scenes.
	Publish(event Event) error
	// PublishWithFilters drops the event without error if any filter rejects it.
	PublishWithFilters(event Event, filters ...EventFilter) error

	// Subscribe listens to kind across every scene.
	Subscribe(kind Kind, handler EventHandler) (Subscription, error)
	// SubscribeScene listens to kind on a single scene.
	SubscribeScene(sceneID string, kind Kind, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is ignored.
	Unsubscribe(Subscription) error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	GetMetrics() EventBusMetrics
	GetTopics() []TopicInfo
}

// Kind identifies a lifecycle transition.
type Kind string

const (
	KindCreated Kind = "component.created"
	KindUpdated Kind = "component.updated"
	KindRemoved Kind = "component.removed"
)

// Event describes one lifecycle transition of one component instance.
// Model is set only for KindUpdated. Treat it as read-only.
type Event struct {
	Kind        Kind
	SceneID     string
	Entity      models.EntityID
	ComponentID models.ComponentID
	Model       any
	Timestamp   time.Time
}

type (
	EventHandler func(event Event) error
	EventFilter  func(event Event) bool
)

// Subscription is a registered handler. Cancel is safe to call more than once.
type Subscription interface {
	ID() string
	Kind() Kind
	SceneID() string
	IsActive() bool
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(sceneID string, kind Kind, event Event)
	OnDelivered(sceneID string, kind Kind, handlers int, err error, durationMicros int64)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	SubscribersActive uint64
	Topics            uint64
}

// TopicInfo summarizes the subscribers of one scene ("" for the global topic).
type TopicInfo struct {
	Name  string
	Kinds int
	Subs  int
}

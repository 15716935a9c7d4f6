package bus

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const globalTopic = ""

type subscription struct {
	id      string
	kind    Kind
	sceneID string
	handler EventHandler
	active  atomic.Bool
	cancel  func()
}

func (s *subscription) ID() string      { return s.id }
func (s *subscription) Kind() Kind      { return s.kind }
func (s *subscription) SceneID() string { return s.sceneID }
func (s *subscription) IsActive() bool  { return s.active.Load() }
func (s *subscription) Cancel() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

type inMemoryBus struct {
	mu sync.RWMutex
	// handlers: scene -> kind -> subscriptions in registration order
	handlers  map[string]map[Kind][]*subscription
	metrics   EventBusMetrics
	observers map[EventBusObserver]struct{}
}

// New creates an empty EventBus.
func New() EventBus {
	return &inMemoryBus{
		handlers:  make(map[string]map[Kind][]*subscription),
		observers: make(map[EventBusObserver]struct{}),
	}
}

func (b *inMemoryBus) Publish(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return b.deliver(event)
}

func (b *inMemoryBus) PublishWithFilters(event Event, filters ...EventFilter) error {
	for _, f := range filters {
		if !f(event) {
			b.mu.Lock()
			b.metrics.DroppedByFilters++
			b.mu.Unlock()
			return nil
		}
	}
	return b.Publish(event)
}

func (b *inMemoryBus) Subscribe(kind Kind, handler EventHandler) (Subscription, error) {
	return b.SubscribeScene(globalTopic, kind, handler)
}

func (b *inMemoryBus) SubscribeScene(sceneID string, kind Kind, handler EventHandler) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("nil event handler")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[sceneID] == nil {
		b.handlers[sceneID] = make(map[Kind][]*subscription)
	}
	s := &subscription{id: uuid.NewString(), kind: kind, sceneID: sceneID, handler: handler}
	s.active.Store(true)
	s.cancel = func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if !s.active.CompareAndSwap(true, false) {
			return
		}
		subs := b.handlers[sceneID][kind]
		b.handlers[sceneID][kind] = slices.DeleteFunc(subs, func(o *subscription) bool { return o == s })
	}
	b.handlers[sceneID][kind] = append(b.handlers[sceneID][kind], s)
	return s, nil
}

func (b *inMemoryBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

func (b *inMemoryBus) AddObserver(obs EventBusObserver) {
	b.mu.Lock()
	b.observers[obs] = struct{}{}
	b.mu.Unlock()
}

func (b *inMemoryBus) RemoveObserver(obs EventBusObserver) {
	b.mu.Lock()
	delete(b.observers, obs)
	b.mu.Unlock()
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metrics
}

func (b *inMemoryBus) GetTopics() []TopicInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]TopicInfo, 0, len(b.handlers))
	for name, kinds := range b.handlers {
		info := TopicInfo{Name: name}
		for _, subs := range kinds {
			if len(subs) > 0 {
				info.Kinds++
				info.Subs += len(subs)
			}
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b TopicInfo) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})
	return out
}

func (b *inMemoryBus) deliver(event Event) error {
	start := time.Now()

	b.mu.RLock()
	var subs []*subscription
	if event.SceneID != globalTopic {
		subs = append(subs, b.handlers[event.SceneID][event.Kind]...)
	}
	subs = append(subs, b.handlers[globalTopic][event.Kind]...)
	observers := make([]EventBusObserver, 0, len(b.observers))
	for obs := range b.observers {
		observers = append(observers, obs)
	}
	b.mu.RUnlock()

	for _, obs := range observers {
		obs.OnPublish(event.SceneID, event.Kind, event)
	}

	var all error
	delivered := 0
	for _, s := range subs {
		if !s.active.Load() {
			continue
		}
		delivered++
		if err := s.handler(event); err != nil {
			all = errors.Join(all, err)
		}
	}

	dur := time.Since(start).Microseconds()
	for _, obs := range observers {
		obs.OnDelivered(event.SceneID, event.Kind, delivered, all, dur)
	}

	b.mu.Lock()
	b.metrics.Published++
	b.metrics.DeliveredHandlers += uint64(delivered)
	if all != nil {
		b.metrics.Errors++
	}
	b.metrics.Topics = uint64(len(b.handlers))
	var active uint64
	for _, kinds := range b.handlers {
		for _, s := range kinds {
			active += uint64(len(s))
		}
	}
	b.metrics.SubscribersActive = active
	b.mu.Unlock()
	return all
}

// Package transport connects the component runtime to a scene runtime over a
// byte stream: outbound writes become frames, inbound frames are queued and
// applied on the host's update goroutine.
package transport

import (
	"context"
	"errors"

	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/ecs/writer"
	"github.com/zeusync/ecsruntime/internal/transport/wire"
)

// DefaultQueueSize is the inbound queue capacity used when none is configured.
const DefaultQueueSize = 1024

// Target is the part of the scene manager inbound messages are applied to.
type Target interface {
	DeserializeComponent(id models.ComponentID, entity models.Entity, data []byte) error
	RemoveComponent(id models.ComponentID, entity models.Entity) error
}

// EntityResolver maps a wire entity id to the host's entity.
type EntityResolver func(id models.EntityID) models.Entity

type ApplierOption func(a *Applier)

func WithApplierLogger(l log.Log) ApplierOption {
	return func(a *Applier) {
		a.logger = l
	}
}

// WithEntityResolver replaces the default models.NewEntity mapping.
func WithEntityResolver(r EntityResolver) ApplierOption {
	return func(a *Applier) {
		a.resolve = r
	}
}

// WithStaleDrop discards messages whose lamport timestamp is older than one
// already applied for the same entity and component from the same source.
// Every source keeps its own clock, so a peer that restarts its count does not
// have its writes dropped because of another peer's history.
func WithStaleDrop() ApplierOption {
	return func(a *Applier) {
		a.clocks = make(map[string]*wire.Clock)
	}
}

func WithQueueSize(n int) ApplierOption {
	return func(a *Applier) {
		if n > 0 {
			a.queue = make(chan inbound, n)
		}
	}
}

// WithRecorder forwards every successfully applied message to sink as a write
// on scene: puts carry the received payload, removals a nil tombstone.
func WithRecorder(scene models.Scene, sink writer.Sink) ApplierOption {
	return func(a *Applier) {
		a.scene = scene
		a.recorder = sink
	}
}

// inbound is a queued message tagged with the connection it arrived on. A
// forget entry carries no message and drops the source's clock once every
// message queued before it has been applied.
type inbound struct {
	source string
	msg    wire.Message
	forget bool
}

// Applier buffers inbound messages from reader goroutines. Enqueue, EnqueueFrom
// and Forget may be called concurrently; Apply, ApplyFrom and Drain must be
// called from the goroutine that owns the target.
type Applier struct {
	target   Target
	queue    chan inbound
	resolve  EntityResolver
	clocks   map[string]*wire.Clock
	scene    models.Scene
	recorder writer.Sink
	logger   log.Log
}

func NewApplier(target Target, opts ...ApplierOption) *Applier {
	a := &Applier{
		target:  target,
		queue:   make(chan inbound, DefaultQueueSize),
		resolve: models.NewEntity,
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enqueue queues m under the default source. It blocks until the message is
// queued or ctx is done.
func (a *Applier) Enqueue(ctx context.Context, m wire.Message) error {
	return a.EnqueueFrom(ctx, "", m)
}

// EnqueueFrom queues m as received from source, usually a connection id.
func (a *Applier) EnqueueFrom(ctx context.Context, source string, m wire.Message) error {
	return a.push(ctx, inbound{source: source, msg: m})
}

// Forget releases the stale-drop clock of source after the messages it already
// queued are applied. Readers call it when their connection ends.
func (a *Applier) Forget(ctx context.Context, source string) error {
	if a.clocks == nil {
		return nil
	}
	return a.push(ctx, inbound{source: source, forget: true})
}

func (a *Applier) push(ctx context.Context, in inbound) error {
	select {
	case a.queue <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued entries, Forget markers included.
func (a *Applier) Pending() int {
	return len(a.queue)
}

// Apply hands one message from the default source to the target.
func (a *Applier) Apply(m wire.Message) error {
	return a.ApplyFrom("", m)
}

// ApplyFrom hands one message received from source to the target.
func (a *Applier) ApplyFrom(source string, m wire.Message) error {
	if a.clocks != nil && !a.clockOf(source).Observe(m.Entity, m.Component, m.Timestamp) {
		a.logger.Debug("Dropping stale component message",
			log.String("source", source),
			log.Int64("entity", int64(m.Entity)),
			log.Int32("component_id", int32(m.Component)),
			log.Uint32("timestamp", m.Timestamp))
		return nil
	}
	entity := a.resolve(m.Entity)
	var data []byte
	switch m.Type {
	case wire.TypePutComponent:
		if err := a.target.DeserializeComponent(m.Component, entity, m.Payload); err != nil {
			return err
		}
		data = m.Payload
	case wire.TypeDeleteComponent:
		if err := a.target.RemoveComponent(m.Component, entity); err != nil {
			return err
		}
	default:
		return wire.ErrInvalidFrame
	}
	if a.recorder != nil {
		a.recorder.WriteComponent(a.scene, entity, m.Component, data)
	}
	return nil
}

func (a *Applier) clockOf(source string) *wire.Clock {
	c, ok := a.clocks[source]
	if !ok {
		c = wire.NewClock()
		a.clocks[source] = c
	}
	return c
}

// Drain applies every message queued at the time of the call, without
// blocking. A failing message is logged and skipped; the failures are joined
// into the returned error.
func (a *Applier) Drain() (int, error) {
	var all error
	applied := 0
	for n := len(a.queue); n > 0; n-- {
		in := <-a.queue
		if in.forget {
			delete(a.clocks, in.source)
			continue
		}
		m := in.msg
		if err := a.ApplyFrom(in.source, m); err != nil {
			a.logger.Warn("Failed to apply component message",
				log.String("source", in.source),
				log.Stringer("type", m.Type),
				log.Int64("entity", int64(m.Entity)),
				log.Int32("component_id", int32(m.Component)),
				log.Error(err))
			all = errors.Join(all, err)
			continue
		}
		applied++
	}
	return applied, all
}

// Package writer encodes component models and forwards them to the scene
// runtime through a Sink.
package writer

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/ecs"
	"github.com/zeusync/ecsruntime/internal/ecs/codec"
)

type serializer struct {
	modelType string
	encode    any // func(T) ([]byte, error)
}

type writeKey struct {
	scene  string
	entity models.EntityID
	id     models.ComponentID
}

type Option func(w *Writer)

func WithLogger(l log.Log) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithDeduplication drops a put whose payload matches the last one sent for
// the same scene, entity and component.
func WithDeduplication() Option {
	return func(w *Writer) {
		w.lastWrites = make(map[writeKey]uint64)
	}
}

// Writer is the outbound side of the component runtime. Failures are logged
// and the write is dropped. It is not safe for concurrent use.
type Writer struct {
	sink        Sink
	serializers map[models.ComponentID]serializer
	logger      log.Log
	lastWrites  map[writeKey]uint64
}

func New(sink Sink, opts ...Option) *Writer {
	w := &Writer{
		sink:        sink,
		serializers: make(map[models.ComponentID]serializer),
		logger:      log.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AddOrReplaceComponentSerializer binds an encoder for component type id.
// The last registration for an id wins.
func AddOrReplaceComponentSerializer[T any](w *Writer, id models.ComponentID, encode func(T) ([]byte, error)) {
	w.serializers[id] = serializer{
		modelType: fmt.Sprintf("%T", *new(T)),
		encode:    encode,
	}
}

// AddOrReplaceComponentCodec registers c.Encode for id.
func AddOrReplaceComponentCodec[T any](w *Writer, id models.ComponentID, c codec.Codec[T]) {
	AddOrReplaceComponentSerializer(w, id, c.Encode)
}

// PutComponent encodes model with the serializer registered for id and hands
// it to the sink. It returns the reason a write was dropped, which has
// already been logged; callers in a frame loop may ignore it.
func PutComponent[T any](w *Writer, scene models.Scene, entity models.Entity, id models.ComponentID, model T) error {
	s, ok := w.serializers[id]
	if !ok {
		err := ecs.NewError(ecs.ErrorCodeMissingSerializer, id, nil)
		w.logger.Error("Trying to write component but no serializer was found",
			log.Int32("component_id", int32(id)),
			log.Int64("entity", int64(entity.ID())))
		return err
	}

	encode, ok := s.encode.(func(T) ([]byte, error))
	if !ok {
		err := ecs.NewError(ecs.ErrorCodeTypeMismatch, id, nil)
		w.logger.Error("Trying to write component but serializer does not match model type",
			log.Int32("component_id", int32(id)),
			log.String("expected", s.modelType),
			log.String("got", fmt.Sprintf("%T", model)))
		return err
	}

	data, err := encode(model)
	if err != nil {
		wrapped := ecs.NewError(ecs.ErrorCodeSerialization, id, err)
		w.logger.Error("Failed to serialize component",
			log.Int32("component_id", int32(id)),
			log.Int64("entity", int64(entity.ID())),
			log.Error(err))
		return wrapped
	}

	if w.lastWrites != nil {
		key := newWriteKey(scene, entity, id)
		sum := xxhash.Sum64(data)
		if last, seen := w.lastWrites[key]; seen && last == sum {
			return nil
		}
		w.lastWrites[key] = sum
	}

	w.sink.WriteComponent(scene, entity, id, data)
	return nil
}

// RemoveComponent signals removal by writing a nil payload.
func (w *Writer) RemoveComponent(scene models.Scene, entity models.Entity, id models.ComponentID) {
	if w.lastWrites != nil {
		delete(w.lastWrites, newWriteKey(scene, entity, id))
	}
	w.sink.WriteComponent(scene, entity, id, nil)
}

// HasSerializer reports whether id has an encoder.
func (w *Writer) HasSerializer(id models.ComponentID) bool {
	_, ok := w.serializers[id]
	return ok
}

func newWriteKey(scene models.Scene, entity models.Entity, id models.ComponentID) writeKey {
	key := writeKey{entity: entity.ID(), id: id}
	if scene != nil {
		key.scene = scene.SceneID()
	}
	return key
}

// Key is a typed handle to a component id registered on a Writer.
type Key[T any] struct {
	w  *Writer
	id models.ComponentID
}

// Bind registers encode for id and returns a handle whose Put is checked at compile time.
func Bind[T any](w *Writer, id models.ComponentID, encode func(T) ([]byte, error)) Key[T] {
	AddOrReplaceComponentSerializer(w, id, encode)
	return Key[T]{w: w, id: id}
}

func (k Key[T]) ID() models.ComponentID { return k.id }

func (k Key[T]) Put(scene models.Scene, entity models.Entity, model T) error {
	return PutComponent(k.w, scene, entity, k.id, model)
}

func (k Key[T]) Remove(scene models.Scene, entity models.Entity) {
	k.w.RemoveComponent(scene, entity, k.id)
}

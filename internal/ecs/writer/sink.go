package writer

import (
	"github.com/zeusync/ecsruntime/internal/core/models"
)

// Sink receives encoded component writes. A nil data slice is a removal tombstone.
type Sink interface {
	WriteComponent(scene models.Scene, entity models.Entity, id models.ComponentID, data []byte)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(scene models.Scene, entity models.Entity, id models.ComponentID, data []byte)

func (f SinkFunc) WriteComponent(scene models.Scene, entity models.Entity, id models.ComponentID, data []byte) {
	f(scene, entity, id, data)
}

// MultiSink forwards every write to each sink in order.
type MultiSink []Sink

func (m MultiSink) WriteComponent(scene models.Scene, entity models.Entity, id models.ComponentID, data []byte) {
	for _, s := range m {
		s.WriteComponent(scene, entity, id, data)
	}
}

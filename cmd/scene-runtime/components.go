package main

import (
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/ecs/codec"
	"github.com/zeusync/ecsruntime/internal/ecs/component"
	"github.com/zeusync/ecsruntime/internal/ecs/factory"
	"github.com/zeusync/ecsruntime/internal/ecs/writer"
)

const (
	LabelComponent      models.ComponentID = 0
	PropertiesComponent models.ComponentID = 1
)

// Label is a plain text component encoded as JSON.
type Label struct {
	Text string `json:"text"`
}

var (
	labelCodec      = codec.JSON[Label]()
	propertiesCodec = codec.Proto(func() *structpb.Struct { return &structpb.Struct{} })
)

func logHandler[T any](logger log.Log, name string) func() component.Handler[T] {
	return func() component.Handler[T] {
		l := logger.With(log.String("component", name))
		return component.HandlerFuncs[T]{
			Created: func(_ models.Scene, entity models.Entity) {
				l.Debug("Component created", log.Int64("entity", int64(entity.ID())))
			},
			Updated: func(_ models.Scene, entity models.Entity, _ T) {
				l.Debug("Component updated", log.Int64("entity", int64(entity.ID())))
			},
			Removed: func(_ models.Scene, entity models.Entity) {
				l.Debug("Component removed", log.Int64("entity", int64(entity.ID())))
			},
		}
	}
}

func registerComponents(logger log.Log) *factory.Factory {
	return factory.New().
		MustRegister(LabelComponent, factory.DefineWithCodec(labelCodec, logHandler[Label](logger, "label"))).
		MustRegister(PropertiesComponent, factory.DefineWithCodec(propertiesCodec, logHandler[*structpb.Struct](logger, "properties")))
}

func registerSerializers(w *writer.Writer) {
	writer.AddOrReplaceComponentCodec(w, LabelComponent, labelCodec)
	writer.AddOrReplaceComponentCodec(w, PropertiesComponent, propertiesCodec)
}

package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zeusync/ecsruntime/internal/core/events/bus"
	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/ecs"
	"github.com/zeusync/ecsruntime/internal/ecs/codec"
	"github.com/zeusync/ecsruntime/internal/ecs/component"
	"github.com/zeusync/ecsruntime/internal/ecs/factory"
)

const (
	component0 models.ComponentID = iota
	component1
	unknownComponent models.ComponentID = 99
)

type testingComponent struct {
	Text string `json:"text"`
}

type recordingHandler struct {
	created []models.EntityID
	updated []testingComponent
	removed []models.EntityID
	scenes  []models.Scene
}

func (h *recordingHandler) OnComponentCreated(scene models.Scene, entity models.Entity) {
	h.created = append(h.created, entity.ID())
	h.scenes = append(h.scenes, scene)
}

func (h *recordingHandler) OnComponentModelUpdated(_ models.Scene, _ models.Entity, model testingComponent) {
	h.updated = append(h.updated, model)
}

func (h *recordingHandler) OnComponentRemoved(_ models.Scene, entity models.Entity) {
	h.removed = append(h.removed, entity.ID())
}

type fixture struct {
	scene    models.Scene
	handler0 *recordingHandler
	handler1 *recordingHandler
	codec    codec.Codec[testingComponent]
	manager  *SceneComponentsManager
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	fx := &fixture{
		scene:    models.NewScene("scene-1"),
		handler0: &recordingHandler{},
		handler1: &recordingHandler{},
		codec:    codec.JSON[testingComponent](),
	}
	f := factory.New().
		MustRegister(component0, factory.DefineWithCodec(fx.codec, func() component.Handler[testingComponent] { return fx.handler0 })).
		MustRegister(component1, factory.DefineWithCodec(fx.codec, func() component.Handler[testingComponent] { return fx.handler1 }))
	fx.manager = FromFactory(fx.scene, f, opts...)
	return fx
}

func (fx *fixture) encode(t *testing.T, text string) []byte {
	t.Helper()
	bz, err := fx.codec.Encode(testingComponent{Text: text})
	require.NoError(t, err)
	return bz
}

func TestGetOrCreateComponent(t *testing.T) {
	fx := newFixture(t)
	entity := models.NewEntity(1)

	comp0, err := fx.manager.GetOrCreateComponent(component0, entity)
	require.NoError(t, err)
	comp1, err := fx.manager.GetOrCreateComponent(component1, entity)
	require.NoError(t, err)

	assert.Equal(t, []models.EntityID{1}, fx.handler0.created)
	assert.Equal(t, []models.EntityID{1}, fx.handler1.created)
	assert.Equal(t, []models.Scene{fx.scene}, fx.handler0.scenes)
	assert.NotSame(t, comp0, comp1)
	assert.True(t, comp0.HasComponent(entity))
	assert.True(t, comp1.HasComponent(entity))

	for i := 0; i < 3; i++ {
		again, err := fx.manager.GetOrCreateComponent(component0, entity)
		require.NoError(t, err)
		assert.Same(t, comp0, again)
	}
	assert.Len(t, fx.handler0.created, 1)

	stored, ok := fx.manager.Component(component0)
	require.True(t, ok)
	assert.Same(t, comp0, stored)
	assert.Len(t, fx.manager.Summary(), 2)
}

func TestGetOrCreateUnknownTypeFailsLoudly(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fx := newFixture(t, WithLogger(log.NewWithCore(core, log.LevelDebug)))

	store, err := fx.manager.GetOrCreateComponent(unknownComponent, models.NewEntity(1))
	assert.Nil(t, store)
	assert.ErrorIs(t, err, ecs.ErrUnknownComponentType)
	assert.Equal(t, ecs.ErrorCodeUnknownComponentType, ecs.GetErrorCode(err))

	require.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Empty(t, fx.manager.Summary())
}

func TestDeserializeComponent(t *testing.T) {
	fx := newFixture(t)
	entity := models.NewEntity(1)

	require.NoError(t, fx.manager.DeserializeComponent(component0, entity, fx.encode(t, "temptation")))

	assert.Len(t, fx.handler0.created, 1)
	assert.Equal(t, []testingComponent{{Text: "temptation"}}, fx.handler0.updated)
	assert.Len(t, fx.manager.Summary(), 1)

	typed, err := Typed[testingComponent](fx.manager, component0)
	require.NoError(t, err)
	c, ok := typed.Get(entity)
	require.True(t, ok)
	assert.Equal(t, "temptation", c.Model().Text)
	assert.True(t, typed.HasComponent(entity))
}

func TestDeserializeFailureLeavesNoTrace(t *testing.T) {
	fx := newFixture(t)
	entity := models.NewEntity(1)

	err := fx.manager.DeserializeComponent(component0, entity, []byte("{broken"))
	assert.ErrorIs(t, err, ecs.ErrDeserialization)
	assert.Empty(t, fx.manager.Summary())
	assert.Empty(t, fx.handler0.created)

	require.NoError(t, fx.manager.DeserializeComponent(component0, entity, fx.encode(t, "ok")))
	err = fx.manager.DeserializeComponent(component0, entity, []byte("{broken"))
	assert.ErrorIs(t, err, ecs.ErrDeserialization)

	typed, err := Typed[testingComponent](fx.manager, component0)
	require.NoError(t, err)
	c, _ := typed.Get(entity)
	assert.Equal(t, "ok", c.Model().Text)
	assert.Len(t, fx.handler0.updated, 1)
}

func TestDeserializeUnknownType(t *testing.T) {
	fx := newFixture(t)
	err := fx.manager.DeserializeComponent(unknownComponent, models.NewEntity(1), []byte(`{}`))
	assert.ErrorIs(t, err, ecs.ErrUnknownComponentType)
}

func TestRemoveComponent(t *testing.T) {
	fx := newFixture(t)
	entity := models.NewEntity(1)

	_, err := fx.manager.GetOrCreateComponent(component0, entity)
	require.NoError(t, err)
	_, err = fx.manager.GetOrCreateComponent(component1, entity)
	require.NoError(t, err)

	require.NoError(t, fx.manager.RemoveComponent(component0, entity))
	require.NoError(t, fx.manager.RemoveComponent(component1, entity))

	assert.Equal(t, []models.EntityID{1}, fx.handler0.removed)
	assert.Equal(t, []models.EntityID{1}, fx.handler1.removed)
	assert.False(t, fx.manager.HasComponent(component0, entity))
	assert.False(t, fx.manager.HasComponent(component1, entity))

	for id, summary := range fx.manager.Summary() {
		assert.Zero(t, summary.EntityCount, "component %d", id)
	}
}

func TestRemoveIsLenient(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fx := newFixture(t, WithLogger(log.NewWithCore(core, log.LevelDebug)))
	entity := models.NewEntity(1)

	assert.NoError(t, fx.manager.RemoveComponent(component0, entity))
	assert.NoError(t, fx.manager.RemoveComponent(unknownComponent, entity))

	assert.Empty(t, fx.handler0.removed)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Empty(t, fx.manager.Summary())
}

func TestCreateUpdateRemoveScenario(t *testing.T) {
	fx := newFixture(t)
	entity := models.NewEntity(1)

	require.NoError(t, fx.manager.DeserializeComponent(component0, entity, fx.encode(t, "a")))
	assert.Len(t, fx.handler0.created, 1)
	assert.Equal(t, []testingComponent{{Text: "a"}}, fx.handler0.updated)

	require.NoError(t, fx.manager.DeserializeComponent(component0, entity, fx.encode(t, "b")))
	assert.Len(t, fx.handler0.created, 1)
	assert.Equal(t, []testingComponent{{Text: "a"}, {Text: "b"}}, fx.handler0.updated)

	require.NoError(t, fx.manager.RemoveComponent(component0, entity))
	assert.Len(t, fx.handler0.removed, 1)

	store, ok := fx.manager.Component(component0)
	require.True(t, ok)
	assert.False(t, store.HasComponent(entity))
}

func TestIsolationAcrossTypes(t *testing.T) {
	fx := newFixture(t)
	entity := models.NewEntity(1)

	require.NoError(t, fx.manager.DeserializeComponent(component1, entity, fx.encode(t, "keep")))
	require.NoError(t, fx.manager.DeserializeComponent(component0, entity, fx.encode(t, "x")))
	require.NoError(t, fx.manager.DeserializeComponent(component0, entity, fx.encode(t, "y")))
	require.NoError(t, fx.manager.RemoveComponent(component0, entity))

	assert.Len(t, fx.handler1.created, 1)
	assert.Equal(t, []testingComponent{{Text: "keep"}}, fx.handler1.updated)
	assert.Empty(t, fx.handler1.removed)

	typed, err := Typed[testingComponent](fx.manager, component1)
	require.NoError(t, err)
	c, ok := typed.Get(entity)
	require.True(t, ok)
	assert.Equal(t, "keep", c.Model().Text)
}

func TestRemoveEntityAndDispose(t *testing.T) {
	fx := newFixture(t)
	e1, e2 := models.NewEntity(1), models.NewEntity(2)
	for _, e := range []models.Entity{e1, e2} {
		_, _ = fx.manager.GetOrCreateComponent(component0, e)
		_, _ = fx.manager.GetOrCreateComponent(component1, e)
	}

	fx.manager.RemoveEntity(e1)
	assert.Equal(t, []models.EntityID{1}, fx.handler0.removed)
	assert.Equal(t, []models.EntityID{1}, fx.handler1.removed)
	assert.True(t, fx.manager.HasComponent(component0, e2))

	fx.manager.Dispose()
	assert.Equal(t, []models.EntityID{1, 2}, fx.handler0.removed)
	assert.Equal(t, 0, fx.manager.Summary()[component1].EntityCount)
}

func TestTypedMismatch(t *testing.T) {
	fx := newFixture(t)
	_, err := Typed[int](fx.manager, component0)
	assert.ErrorIs(t, err, ecs.ErrTypeMismatch)

	_, err = Typed[testingComponent](fx.manager, unknownComponent)
	assert.ErrorIs(t, err, ecs.ErrUnknownComponentType)
}

func TestDefinitionsSnapshot(t *testing.T) {
	f := factory.New()
	m := FromFactory(models.NewScene("s"), f)
	f.MustRegister(7, factory.DefineWithCodec(codec.JSON[testingComponent](), nil))

	assert.False(t, m.Registered(7))
	_, err := m.GetOrCreateComponent(7, models.NewEntity(1))
	assert.ErrorIs(t, err, ecs.ErrUnknownComponentType)
}

func TestLifecycleEventsPublished(t *testing.T) {
	events := bus.New()
	var got []bus.Event
	_, err := events.SubscribeScene("scene-1", bus.KindUpdated, func(e bus.Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	kinds := map[bus.Kind]int{}
	for _, k := range []bus.Kind{bus.KindCreated, bus.KindUpdated, bus.KindRemoved} {
		_, err = events.Subscribe(k, func(e bus.Event) error {
			kinds[e.Kind]++
			return nil
		})
		require.NoError(t, err)
	}

	fx := newFixture(t, WithEventBus(events))
	entity := models.NewEntity(3)
	require.NoError(t, fx.manager.DeserializeComponent(component1, entity, fx.encode(t, "hello")))
	require.NoError(t, fx.manager.RemoveComponent(component1, entity))

	require.Len(t, got, 1)
	assert.Equal(t, models.EntityID(3), got[0].Entity)
	assert.Equal(t, component1, got[0].ComponentID)
	assert.Equal(t, testingComponent{Text: "hello"}, got[0].Model)
	assert.Equal(t, map[bus.Kind]int{bus.KindCreated: 1, bus.KindUpdated: 1, bus.KindRemoved: 1}, kinds)
	assert.Len(t, fx.handler1.updated, 1)
}

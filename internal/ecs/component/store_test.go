package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/ecsruntime/internal/core/models"
)

type textModel struct {
	Text string
}

type call struct {
	kind   string
	entity models.EntityID
	model  textModel
}

type recordingHandler struct {
	calls []call
}

func (h *recordingHandler) OnComponentCreated(_ models.Scene, entity models.Entity) {
	h.calls = append(h.calls, call{kind: "created", entity: entity.ID()})
}

func (h *recordingHandler) OnComponentModelUpdated(_ models.Scene, entity models.Entity, model textModel) {
	h.calls = append(h.calls, call{kind: "updated", entity: entity.ID(), model: model})
}

func (h *recordingHandler) OnComponentRemoved(_ models.Scene, entity models.Entity) {
	h.calls = append(h.calls, call{kind: "removed", entity: entity.ID()})
}

func (h *recordingHandler) count(kind string) int {
	n := 0
	for _, c := range h.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

func newTestStore() (*Store[textModel], *recordingHandler) {
	h := &recordingHandler{}
	return NewStore[textModel](0, models.NewScene("scene"), h), h
}

func TestGetOrCreateFiresCreatedOnce(t *testing.T) {
	s, h := newTestStore()
	e := models.NewEntity(1)

	first := s.GetOrCreate(e)
	for i := 0; i < 5; i++ {
		assert.Same(t, first, s.GetOrCreate(e))
	}

	assert.Equal(t, 1, h.count("created"))
	assert.Zero(t, first.Model())
	assert.True(t, s.HasComponent(e))
	assert.Equal(t, 1, s.Len())
}

func TestGetHasNoSideEffects(t *testing.T) {
	s, h := newTestStore()
	e := models.NewEntity(7)

	_, ok := s.Get(e)
	assert.False(t, ok)
	assert.False(t, s.HasComponent(e))
	assert.Empty(t, h.calls)
	assert.Zero(t, s.Len())
}

func TestSetModelCreatesThenUpdates(t *testing.T) {
	s, h := newTestStore()
	e := models.NewEntity(1)

	s.SetModel(e, textModel{Text: "a"})
	s.SetModel(e, textModel{Text: "b"})

	require.Equal(t, []call{
		{kind: "created", entity: 1},
		{kind: "updated", entity: 1, model: textModel{Text: "a"}},
		{kind: "updated", entity: 1, model: textModel{Text: "b"}},
	}, h.calls)

	c, ok := s.Get(e)
	require.True(t, ok)
	assert.Equal(t, "b", c.Model().Text)
	assert.Equal(t, "b", c.ModelValue().(textModel).Text)
}

func TestRemoveIsIdempotent(t *testing.T) {
	s, h := newTestStore()
	e := models.NewEntity(1)

	assert.False(t, s.Remove(e))
	assert.Empty(t, h.calls)

	s.GetOrCreate(e)
	assert.True(t, s.Remove(e))
	assert.False(t, s.Remove(e))

	assert.Equal(t, 1, h.count("removed"))
	assert.False(t, s.HasComponent(e))
	assert.Zero(t, s.Len())
}

func TestRecreateAfterRemoveFiresCreatedAgain(t *testing.T) {
	s, h := newTestStore()
	e := models.NewEntity(1)

	s.SetModel(e, textModel{Text: "a"})
	s.Remove(e)
	s.SetModel(e, textModel{Text: "b"})

	assert.Equal(t, 2, h.count("created"))
	c, _ := s.Get(e)
	assert.Equal(t, "b", c.Model().Text)
}

func TestRemoveAllOrdersByEntity(t *testing.T) {
	s, h := newTestStore()
	for _, id := range []models.EntityID{9, 2, 5} {
		s.GetOrCreate(models.NewEntity(id))
	}
	h.calls = nil

	assert.Equal(t, []models.EntityID{2, 5, 9}, s.Entities())
	s.RemoveAll()

	assert.Equal(t, []call{
		{kind: "removed", entity: 2},
		{kind: "removed", entity: 5},
		{kind: "removed", entity: 9},
	}, h.calls)
	assert.Zero(t, s.Len())
}

func TestUntypedView(t *testing.T) {
	s, _ := newTestStore()
	var u Untyped = s
	e := models.NewEntity(3)

	_, ok := u.GetInstance(e)
	assert.False(t, ok)

	inst := u.GetOrCreateInstance(e)
	assert.Equal(t, models.EntityID(3), inst.Entity().ID())
	assert.Equal(t, textModel{}, inst.ModelValue())

	got, ok := u.GetInstance(e)
	require.True(t, ok)
	assert.Same(t, inst, got)
}

func TestNilHandlerIsAllowed(t *testing.T) {
	s := NewStore[textModel](1, nil, nil)
	e := models.NewEntity(1)
	assert.NotPanics(t, func() {
		s.SetModel(e, textModel{Text: "x"})
		s.Remove(e)
	})
}

func TestForEachVisitsAll(t *testing.T) {
	s, _ := newTestStore()
	s.SetModel(models.NewEntity(1), textModel{Text: "a"})
	s.SetModel(models.NewEntity(2), textModel{Text: "b"})

	seen := map[string]bool{}
	s.ForEach(func(c *Component[textModel]) bool {
		seen[c.Model().Text] = true
		return true
	})
	assert.Equal(t, map[string]bool{"a": true, "b": true}, seen)
}

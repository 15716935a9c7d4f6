package bus

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Kind, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, _ Kind, handlers int, err error, _ int64) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got []Event
	_, err := b.Subscribe(KindCreated, func(e Event) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(Event{Kind: KindCreated, SceneID: "s1", Entity: 4, ComponentID: 2}))
	require.NoError(t, b.Publish(Event{Kind: KindRemoved, SceneID: "s1", Entity: 4, ComponentID: 2}))

	require.Len(t, got, 1)
	assert.EqualValues(t, 4, got[0].Entity)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestSceneIsolation(t *testing.T) {
	b := New()
	count1, count2, global := 0, 0, 0
	_, _ = b.SubscribeScene("s1", KindUpdated, func(Event) error { count1++; return nil })
	_, _ = b.SubscribeScene("s2", KindUpdated, func(Event) error { count2++; return nil })
	_, _ = b.Subscribe(KindUpdated, func(Event) error { global++; return nil })

	_ = b.Publish(Event{Kind: KindUpdated, SceneID: "s1"})

	assert.Equal(t, 1, count1)
	assert.Equal(t, 0, count2)
	assert.Equal(t, 1, global)
}

func TestSceneSubscribersRunBeforeGlobal(t *testing.T) {
	b := New()
	var order []string
	_, _ = b.Subscribe(KindCreated, func(Event) error { order = append(order, "global"); return nil })
	_, _ = b.SubscribeScene("s", KindCreated, func(Event) error { order = append(order, "scene-a"); return nil })
	_, _ = b.SubscribeScene("s", KindCreated, func(Event) error { order = append(order, "scene-b"); return nil })

	_ = b.Publish(Event{Kind: KindCreated, SceneID: "s"})
	assert.Equal(t, []string{"scene-a", "scene-b", "global"}, order)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	errA, errB := errors.New("a"), errors.New("b")
	_, _ = b.Subscribe(KindRemoved, func(Event) error { return errA })
	_, _ = b.Subscribe(KindRemoved, func(Event) error { return errB })

	err := b.Publish(Event{Kind: KindRemoved})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	count := 0
	sub, err := b.Subscribe(KindCreated, func(Event) error { count++; return nil })
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID())

	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	require.NoError(t, b.Unsubscribe(nil))
	_ = b.Publish(Event{Kind: KindCreated})

	assert.Equal(t, 0, count)
	assert.False(t, sub.IsActive())
}

func TestFiltersDropSilently(t *testing.T) {
	b := New()
	obs := &testObserver{}
	b.AddObserver(obs)
	count := 0
	_, _ = b.Subscribe(KindUpdated, func(Event) error { count++; return nil })

	onlyScene := func(e Event) bool { return e.SceneID == "keep" }
	require.NoError(t, b.PublishWithFilters(Event{Kind: KindUpdated, SceneID: "drop"}, onlyScene))
	require.NoError(t, b.PublishWithFilters(Event{Kind: KindUpdated, SceneID: "keep"}, onlyScene))

	assert.Equal(t, 1, count)
	assert.EqualValues(t, 1, b.GetMetrics().DroppedByFilters)
}

func TestMetricsWithoutObservers(t *testing.T) {
	b := New()
	_, _ = b.Subscribe(KindCreated, func(Event) error { return nil })
	_, _ = b.Subscribe(KindCreated, func(Event) error { return errors.New("boom") })
	_ = b.Publish(Event{Kind: KindCreated})
	_ = b.PublishWithFilters(Event{Kind: KindCreated}, func(Event) bool { return false })

	m := b.GetMetrics()
	assert.EqualValues(t, 1, m.Published)
	assert.EqualValues(t, 2, m.DeliveredHandlers)
	assert.EqualValues(t, 1, m.Errors)
	assert.EqualValues(t, 1, m.DroppedByFilters)
	assert.EqualValues(t, 2, m.SubscribersActive)
	assert.EqualValues(t, 1, m.Topics)
}

func TestObserverNotifications(t *testing.T) {
	b := New()
	_, _ = b.Subscribe(KindCreated, func(Event) error { return nil })

	obs := &testObserver{}
	b.AddObserver(obs)
	_ = b.Publish(Event{Kind: KindCreated})
	assert.Equal(t, 1, obs.publishCount)
	assert.Equal(t, 1, obs.deliveredCount)

	b.RemoveObserver(obs)
	_ = b.Publish(Event{Kind: KindCreated})
	assert.Equal(t, 1, obs.publishCount)
	assert.EqualValues(t, 2, b.GetMetrics().Published)
}

func TestCancelDuringPublish(t *testing.T) {
	b := New()
	subs := make([]Subscription, 0, 16)
	for range 16 {
		sub, err := b.Subscribe(KindUpdated, func(Event) error { return nil })
		require.NoError(t, err)
		subs = append(subs, sub)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 200 {
			_ = b.Publish(Event{Kind: KindUpdated})
		}
	}()
	go func() {
		defer wg.Done()
		for _, sub := range subs {
			_ = sub.Cancel()
		}
	}()
	wg.Wait()

	for _, sub := range subs {
		assert.False(t, sub.IsActive())
	}
	assert.Zero(t, b.GetTopics()[0].Subs)
}

func TestGetTopics(t *testing.T) {
	b := New()
	_, _ = b.Subscribe(KindCreated, func(Event) error { return nil })
	_, _ = b.SubscribeScene("s1", KindCreated, func(Event) error { return nil })
	_, _ = b.SubscribeScene("s1", KindRemoved, func(Event) error { return nil })

	topics := b.GetTopics()
	require.Len(t, topics, 2)
	assert.Equal(t, TopicInfo{Name: "", Kinds: 1, Subs: 1}, topics[0])
	assert.Equal(t, TopicInfo{Name: "s1", Kinds: 2, Subs: 2}, topics[1])
}

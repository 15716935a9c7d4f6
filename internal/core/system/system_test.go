package system

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerOrder(t *testing.T) {
	var ran []string
	record := func(name string, p Priority) System {
		return Func(name, p, func(context.Context, time.Duration) error {
			ran = append(ran, name)
			return nil
		})
	}

	r := NewRunner()
	require.NoError(t, r.Register(record("flush", PriorityLow)))
	require.NoError(t, r.Register(record("drain", PriorityHighest)))
	require.NoError(t, r.Register(record("a", PriorityNormal)))
	require.NoError(t, r.Register(record("b", PriorityNormal)))
	assert.ErrorIs(t, r.Register(record("a", PriorityHigh)), ErrSystemAlreadyRegistered)

	assert.Equal(t, []string{"drain", "a", "b", "flush"}, r.ExecutionOrder())
	r.Tick(context.Background(), time.Millisecond)
	assert.Equal(t, r.ExecutionOrder(), ran)
}

func TestRunnerKeepsGoingOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	r := NewRunner()
	require.NoError(t, r.Register(Func("bad", PriorityHigh, func(context.Context, time.Duration) error { return boom })))
	require.NoError(t, r.Register(Func("good", PriorityLow, func(context.Context, time.Duration) error {
		calls++
		return nil
	})))

	var failed []string
	r.OnSystemError(func(name string, err error) {
		assert.ErrorIs(t, err, boom)
		failed = append(failed, name)
	})

	r.Tick(context.Background(), time.Millisecond)
	r.Tick(context.Background(), time.Millisecond)

	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"bad", "bad"}, failed)

	m, ok := r.Metrics("bad")
	require.True(t, ok)
	assert.Equal(t, uint64(2), m.ExecutionCount)
	assert.Equal(t, uint64(2), m.ErrorCount)
	assert.ErrorIs(t, m.LastError, boom)

	_, ok = r.Metrics("missing")
	assert.False(t, ok)
}

func TestEvery(t *testing.T) {
	var deltas []time.Duration
	s := Every(30*time.Millisecond, Func("flush", PriorityLow, func(_ context.Context, dt time.Duration) error {
		deltas = append(deltas, dt)
		return nil
	}))
	assert.Equal(t, "flush", s.Name())
	assert.Equal(t, PriorityLow, s.Priority())

	ctx := context.Background()
	for range 7 {
		require.NoError(t, s.Update(ctx, 10*time.Millisecond))
	}
	assert.Equal(t, []time.Duration{30 * time.Millisecond, 30 * time.Millisecond}, deltas)
}

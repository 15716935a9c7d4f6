// Package system runs per-tick work on the goroutine that owns the scene.
package system

import (
	"context"
	"slices"
	"time"

	"github.com/pkg/errors"
)

// Priority orders systems inside a tick; higher runs first.
type Priority uint16

const (
	PriorityLow     Priority = 500
	PriorityNormal  Priority = 600
	PriorityHigh    Priority = 1000
	PriorityHighest Priority = 1300
)

var ErrSystemAlreadyRegistered = errors.New("system already registered")

// System is one unit of per-tick work.
type System interface {
	Name() string
	Priority() Priority
	Update(ctx context.Context, deltaTime time.Duration) error
}

// Metrics provides runtime metrics for a system.
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}

type funcSystem struct {
	name     string
	priority Priority
	update   func(ctx context.Context, deltaTime time.Duration) error
}

func (s funcSystem) Name() string       { return s.name }
func (s funcSystem) Priority() Priority { return s.priority }
func (s funcSystem) Update(ctx context.Context, dt time.Duration) error {
	return s.update(ctx, dt)
}

// Func builds a System from a function.
func Func(name string, priority Priority, update func(ctx context.Context, deltaTime time.Duration) error) System {
	return funcSystem{name: name, priority: priority, update: update}
}

type interval struct {
	System
	every   time.Duration
	elapsed time.Duration
}

// Every runs s once per accumulated interval instead of every tick. The delta
// handed to s is the time since its previous run.
func Every(every time.Duration, s System) System {
	return &interval{System: s, every: every}
}

func (s *interval) Update(ctx context.Context, dt time.Duration) error {
	s.elapsed += dt
	if s.elapsed < s.every {
		return nil
	}
	elapsed := s.elapsed
	s.elapsed = 0
	return s.System.Update(ctx, elapsed)
}

type entry struct {
	system  System
	order   int
	metrics Metrics
}

// Runner executes registered systems each tick by descending priority, then
// registration order. It is not safe for concurrent use.
type Runner struct {
	entries []*entry
	onError func(name string, err error)
	now     func() time.Time
}

func NewRunner() *Runner {
	return &Runner{now: time.Now}
}

// OnSystemError installs a callback for failing systems.
func (r *Runner) OnSystemError(fn func(name string, err error)) {
	r.onError = fn
}

func (r *Runner) Register(s System) error {
	for _, e := range r.entries {
		if e.system.Name() == s.Name() {
			return errors.Wrap(ErrSystemAlreadyRegistered, s.Name())
		}
	}
	r.entries = append(r.entries, &entry{system: s, order: len(r.entries)})
	slices.SortStableFunc(r.entries, func(a, b *entry) int {
		if a.system.Priority() != b.system.Priority() {
			return int(b.system.Priority()) - int(a.system.Priority())
		}
		return a.order - b.order
	})
	return nil
}

// ExecutionOrder returns system names in the order Tick runs them.
func (r *Runner) ExecutionOrder() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.system.Name()
	}
	return names
}

// Tick runs every system once. A failing system does not stop the others.
func (r *Runner) Tick(ctx context.Context, deltaTime time.Duration) {
	for _, e := range r.entries {
		start := r.now()
		err := e.system.Update(ctx, deltaTime)
		took := r.now().Sub(start)

		m := &e.metrics
		m.ExecutionCount++
		m.TotalExecutionTime += took
		m.AverageExecutionTime = m.TotalExecutionTime / time.Duration(m.ExecutionCount)
		m.MaxExecutionTime = max(m.MaxExecutionTime, took)
		m.LastExecutionTime = start
		if err != nil {
			m.ErrorCount++
			m.LastError = err
			if r.onError != nil {
				r.onError(e.system.Name(), err)
			}
		}
	}
}

func (r *Runner) Metrics(name string) (Metrics, bool) {
	for _, e := range r.entries {
		if e.system.Name() == name {
			return e.metrics, true
		}
	}
	return Metrics{}, false
}

// Package storage defines persistence of the latest component payloads.
package storage

import (
	"context"

	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/ecs/writer"
)

// Target receives replayed snapshot entries.
type Target interface {
	DeserializeComponent(id models.ComponentID, entity models.Entity, data []byte) error
}

// Snapshot buffers component writes as a writer.Sink and persists them on
// Flush. Load replays the persisted state of a scene into a target.
type Snapshot interface {
	writer.Sink

	Flush(ctx context.Context) error
	Load(ctx context.Context, scene models.Scene, target Target) (int, error)
	Pending() int
}

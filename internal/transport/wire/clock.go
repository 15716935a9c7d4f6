package wire

import "github.com/zeusync/ecsruntime/internal/core/models"

type clockKey struct {
	entity models.EntityID
	id     models.ComponentID
}

// Clock keeps a lamport timestamp per (entity, component). It is not safe for
// concurrent use.
type Clock struct {
	stamps map[clockKey]uint32
}

func NewClock() *Clock {
	return &Clock{stamps: make(map[clockKey]uint32)}
}

// Next advances and returns the timestamp for a local write.
func (c *Clock) Next(entity models.EntityID, id models.ComponentID) uint32 {
	k := clockKey{entity: entity, id: id}
	c.stamps[k]++
	return c.stamps[k]
}

// Observe records a remote timestamp. It reports false when ts is older than
// what was already seen, meaning the message is stale.
func (c *Clock) Observe(entity models.EntityID, id models.ComponentID, ts uint32) bool {
	k := clockKey{entity: entity, id: id}
	if last, ok := c.stamps[k]; ok && ts < last {
		return false
	}
	c.stamps[k] = ts
	return true
}

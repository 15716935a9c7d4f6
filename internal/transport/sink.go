package transport

import (
	"sync/atomic"

	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/ecs/writer"
	"github.com/zeusync/ecsruntime/internal/transport/wire"
)

// Sender delivers one encoded frame to the scene runtime.
type Sender interface {
	Send(frame []byte) error
}

var _ writer.Sink = (*FrameSink)(nil)

// FrameSink turns component writes into frames stamped by a lamport clock.
// Send failures are logged and the write is dropped.
type FrameSink struct {
	sender Sender
	clock  *wire.Clock
	logger log.Log

	framesSent   uint64
	framesFailed uint64
}

func NewFrameSink(sender Sender, logger log.Log) *FrameSink {
	if logger == nil {
		logger = log.Nop()
	}
	return &FrameSink{
		sender: sender,
		clock:  wire.NewClock(),
		logger: logger,
	}
}

func (s *FrameSink) WriteComponent(_ models.Scene, entity models.Entity, id models.ComponentID, data []byte) {
	m := wire.FromWrite(entity.ID(), id, s.clock.Next(entity.ID(), id), data)
	frame, err := wire.Encode(m)
	if err == nil {
		err = s.sender.Send(frame)
	}
	if err != nil {
		atomic.AddUint64(&s.framesFailed, 1)
		s.logger.Error("Failed to send component frame",
			log.Stringer("type", m.Type),
			log.Int64("entity", int64(entity.ID())),
			log.Int32("component_id", int32(id)),
			log.Error(err))
		return
	}
	atomic.AddUint64(&s.framesSent, 1)
}

// Stats returns sent and failed frame counts.
func (s *FrameSink) Stats() (sent, failed uint64) {
	return atomic.LoadUint64(&s.framesSent), atomic.LoadUint64(&s.framesFailed)
}

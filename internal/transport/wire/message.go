// Package wire frames component messages exchanged with a scene runtime.
//
// Frame layout, big endian:
//
//	[4 bytes: frame length, excluding this field]
//	[1 byte:  message type]
//	[8 bytes: entity id]
//	[4 bytes: component id]
//	[4 bytes: lamport timestamp]
//	[4 bytes: payload length]
//	[N bytes: payload]
//	[8 bytes: xxhash64 of every preceding byte of the frame body]
package wire

import (
	"errors"
	"fmt"

	"github.com/zeusync/ecsruntime/internal/core/models"
)

const (
	lengthSize   = 4
	headerSize   = 1 + 8 + 4 + 4 + 4
	checksumSize = 8

	// MaxPayloadSize bounds a single component payload.
	MaxPayloadSize = 1 << 20
)

var (
	ErrFrameTooLarge    = errors.New("frame too large")
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Type is the kind of component message.
type Type uint8

const (
	TypePutComponent Type = iota + 1
	TypeDeleteComponent
)

func (t Type) String() string {
	switch t {
	case TypePutComponent:
		return "put_component"
	case TypeDeleteComponent:
		return "delete_component"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Message is one component write. Delete messages carry no payload.
type Message struct {
	Type      Type
	Entity    models.EntityID
	Component models.ComponentID
	Timestamp uint32
	Payload   []byte
}

// Put builds a put message.
func Put(entity models.EntityID, id models.ComponentID, timestamp uint32, payload []byte) Message {
	return Message{Type: TypePutComponent, Entity: entity, Component: id, Timestamp: timestamp, Payload: payload}
}

// Delete builds a delete message.
func Delete(entity models.EntityID, id models.ComponentID, timestamp uint32) Message {
	return Message{Type: TypeDeleteComponent, Entity: entity, Component: id, Timestamp: timestamp}
}

// FromWrite maps a sink write onto a message: a nil payload is a delete.
func FromWrite(entity models.EntityID, id models.ComponentID, timestamp uint32, data []byte) Message {
	if data == nil {
		return Delete(entity, id, timestamp)
	}
	return Put(entity, id, timestamp, data)
}

func (m Message) Validate() error {
	switch m.Type {
	case TypePutComponent:
		if len(m.Payload) > MaxPayloadSize {
			return ErrFrameTooLarge
		}
	case TypeDeleteComponent:
		if len(m.Payload) != 0 {
			return fmt.Errorf("%w: delete with payload", ErrInvalidFrame)
		}
	default:
		return fmt.Errorf("%w: unknown message type %d", ErrInvalidFrame, m.Type)
	}
	return nil
}

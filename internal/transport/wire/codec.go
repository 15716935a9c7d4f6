package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/zeusync/ecsruntime/internal/core/models"
	"github.com/zeusync/ecsruntime/pkg/generic"
)

var bufferPool = generic.NewPool(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 256)) },
	func(b *bytes.Buffer) { b.Reset() },
)

// AppendFrame appends the framed message to dst.
func AppendFrame(dst []byte, m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return dst, err
	}
	bodyLen := headerSize + len(m.Payload) + checksumSize

	dst = binary.BigEndian.AppendUint32(dst, uint32(bodyLen))
	bodyStart := len(dst)
	dst = append(dst, byte(m.Type))
	dst = binary.BigEndian.AppendUint64(dst, uint64(m.Entity))
	dst = binary.BigEndian.AppendUint32(dst, uint32(m.Component))
	dst = binary.BigEndian.AppendUint32(dst, m.Timestamp)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(m.Payload)))
	dst = append(dst, m.Payload...)
	dst = binary.BigEndian.AppendUint64(dst, xxhash.Sum64(dst[bodyStart:]))
	return dst, nil
}

// Encode returns the framed message.
func Encode(m Message) ([]byte, error) {
	return AppendFrame(make([]byte, 0, lengthSize+headerSize+len(m.Payload)+checksumSize), m)
}

// EncodeBatch frames several messages into one buffer, for transports that
// send a whole tick at once.
func EncodeBatch(msgs []Message) ([]byte, error) {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	var frame []byte
	for _, m := range msgs {
		var err error
		frame, err = AppendFrame(frame[:0], m)
		if err != nil {
			return nil, err
		}
		buf.Write(frame)
	}
	return bytes.Clone(buf.Bytes()), nil
}

// DecodeBody parses a frame body (everything after the length prefix).
func DecodeBody(body []byte) (Message, error) {
	if len(body) < headerSize+checksumSize {
		return Message{}, fmt.Errorf("%w: body of %d bytes", ErrInvalidFrame, len(body))
	}
	sumOffset := len(body) - checksumSize
	if xxhash.Sum64(body[:sumOffset]) != binary.BigEndian.Uint64(body[sumOffset:]) {
		return Message{}, ErrChecksumMismatch
	}

	m := Message{
		Type:      Type(body[0]),
		Entity:    models.EntityID(binary.BigEndian.Uint64(body[1:9])),
		Component: models.ComponentID(binary.BigEndian.Uint32(body[9:13])),
		Timestamp: binary.BigEndian.Uint32(body[13:17]),
	}
	payloadLen := int(binary.BigEndian.Uint32(body[17:21]))
	if headerSize+payloadLen != sumOffset {
		return Message{}, fmt.Errorf("%w: payload length %d does not match frame", ErrInvalidFrame, payloadLen)
	}
	if payloadLen > 0 {
		m.Payload = bytes.Clone(body[headerSize:sumOffset])
	} else if m.Type == TypePutComponent {
		m.Payload = []byte{}
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Decode parses exactly one frame.
func Decode(frame []byte) (Message, error) {
	if len(frame) < lengthSize {
		return Message{}, ErrInvalidFrame
	}
	n := binary.BigEndian.Uint32(frame)
	if int(n) != len(frame)-lengthSize {
		return Message{}, fmt.Errorf("%w: declared %d bytes, have %d", ErrInvalidFrame, n, len(frame)-lengthSize)
	}
	return DecodeBody(frame[lengthSize:])
}

// DecodeAll parses a buffer holding zero or more consecutive frames.
func DecodeAll(data []byte) ([]Message, error) {
	var out []Message
	r := NewReader(bytes.NewReader(data))
	for {
		m, err := r.ReadMessage()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
}

// Reader reads frames from a stream.
type Reader struct {
	r      *bufio.Reader
	header [lengthSize]byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadMessage returns io.EOF only when the stream ends on a frame boundary.
func (r *Reader) ReadMessage() (Message, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		if err == io.EOF {
			return Message{}, io.EOF
		}
		return Message{}, errors.Wrap(err, "failed to read frame header")
	}
	n := binary.BigEndian.Uint32(r.header[:])
	if n > MaxPayloadSize+headerSize+checksumSize {
		return Message{}, ErrFrameTooLarge
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return Message{}, errors.Wrap(err, "failed to read frame body")
	}
	return DecodeBody(body)
}

// Writer writes frames to a stream.
type Writer struct {
	w     io.Writer
	frame []byte
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) WriteMessage(m Message) error {
	frame, err := AppendFrame(w.frame[:0], m)
	if err != nil {
		return err
	}
	w.frame = frame
	if _, err := w.w.Write(frame); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	return nil
}

// Package quic carries component frames over a single bidirectional QUIC
// stream per connection.
package quic

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/transport"
	"github.com/zeusync/ecsruntime/internal/transport/wire"
)

const (
	DefaultIdleTimeout = 30 * time.Second
	DefaultKeepAlive   = 15 * time.Second

	closeNormal quic.ApplicationErrorCode = 0
)

var (
	ErrConnectionClosed = errors.New("connection is closed")

	_ transport.Sender = (*Conn)(nil)
)

func defaultQUICConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
	}
}

// Conn is one QUIC connection with its frame stream. Send is safe for
// concurrent use; Run must be called from a single goroutine.
type Conn struct {
	id     string
	conn   *quic.Conn
	stream *quic.Stream
	logger log.Log
	closed int32

	writeMu      sync.Mutex
	writeTimeout time.Duration

	framesSent     uint64
	framesReceived uint64
}

func newConn(conn *quic.Conn, stream *quic.Stream, logger log.Log) *Conn {
	if logger == nil {
		logger = log.Nop()
	}
	id := uuid.New().String()
	return &Conn{
		id:     id,
		conn:   conn,
		stream: stream,
		logger: logger.With(log.String("transport", "quic"),
			log.String("conn_id", id),
			log.String("remote_addr", conn.RemoteAddr().String())),
	}
}

// Dial connects to addr and opens the frame stream.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config, logger log.Log) (*Conn, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, defaultQUICConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", addr)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(closeNormal, "")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	return newConn(conn, stream, logger), nil
}

// SetWriteTimeout bounds each Send. Zero disables the deadline.
func (c *Conn) SetWriteTimeout(d time.Duration) {
	c.writeTimeout = d
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Conn) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// Send writes one encoded frame to the stream.
func (c *Conn) Send(frame []byte) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.stream.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.stream.Write(frame); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}
	atomic.AddUint64(&c.framesSent, 1)
	return nil
}

// Run reads frames until the peer closes the stream or ctx is done, queueing
// each on a under the connection id. A malformed frame ends the connection
// since the stream can no longer be resynchronised.
func (c *Conn) Run(ctx context.Context, a *transport.Applier) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()
	defer func() { _ = a.Forget(ctx, c.id) }()

	r := wire.NewReader(c.stream)
	for {
		m, err := r.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil || c.IsClosed() {
				return nil
			}
			var appErr *quic.ApplicationError
			if errors.As(err, &appErr) && appErr.ErrorCode == closeNormal {
				return nil
			}
			c.logger.Error("Failed to read component frame", log.Error(err))
			return err
		}
		if err = a.EnqueueFrom(ctx, c.id, m); err != nil {
			return nil
		}
		atomic.AddUint64(&c.framesReceived, 1)
	}
}

// Close closes the stream and the connection.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.stream.Close()
	c.writeMu.Unlock()
	return c.conn.CloseWithError(closeNormal, "")
}

// Stats returns sent and received frame counts.
func (c *Conn) Stats() (sent, received uint64) {
	return atomic.LoadUint64(&c.framesSent), atomic.LoadUint64(&c.framesReceived)
}

// Listener accepts scene runtime connections.
type Listener struct {
	listener *quic.Listener
	logger   log.Log
}

func Listen(addr string, tlsConfig *tls.Config, logger log.Log) (*Listener, error) {
	if logger == nil {
		logger = log.Nop()
	}
	ln, err := quic.ListenAddr(addr, tlsConfig, defaultQUICConfig())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	logger.Info("QUIC listener started", log.String("address", ln.Addr().String()))
	return &Listener{listener: ln, logger: logger}, nil
}

func (l *Listener) Addr() net.Addr { return l.listener.Addr() }

// Accept waits for a connection and its frame stream. The peer's stream only
// becomes visible once it has sent its first frame.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to accept connection")
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(closeNormal, "")
		return nil, errors.Wrap(err, "failed to accept stream")
	}
	return newConn(conn, stream, l.logger), nil
}

func (l *Listener) Close() error {
	return l.listener.Close()
}

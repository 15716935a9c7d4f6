// Package websocket carries component frames over gorilla/websocket. Each
// binary websocket message holds one or more frames.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/ecsruntime/internal/core/observability/log"
	"github.com/zeusync/ecsruntime/internal/transport"
	"github.com/zeusync/ecsruntime/internal/transport/wire"
)

var (
	ErrConnectionClosed = errors.New("connection is closed")

	_ transport.Sender = (*Conn)(nil)
)

// Config holds connection timeouts. Zero values disable the deadline.
type Config struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Stats is a snapshot of connection counters.
type Stats struct {
	FramesSent     uint64
	FramesReceived uint64
	BytesSent      uint64
	BytesReceived  uint64
}

// Conn is one websocket peer. Send is safe for concurrent use; Run must be
// called from a single goroutine.
type Conn struct {
	id     string
	conn   *websocket.Conn
	config Config
	logger log.Log
	closed int32

	writeMu sync.Mutex

	framesSent     uint64
	framesReceived uint64
	bytesSent      uint64
	bytesReceived  uint64
}

func newConn(conn *websocket.Conn, config Config, logger log.Log) *Conn {
	if logger == nil {
		logger = log.Nop()
	}
	id := uuid.New().String()
	return &Conn{
		id:     id,
		conn:   conn,
		config: config,
		logger: logger.With(log.String("transport", "websocket"), log.String("conn_id", id)),
	}
}

// Dial connects to a scene runtime at url (ws:// or wss://).
func Dial(ctx context.Context, url string, config Config, logger log.Log) (*Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", url)
	}
	return newConn(conn, config, logger), nil
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) IsClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

// Send writes frame as one binary message.
func (c *Conn) Send(frame []byte) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return errors.Wrap(err, "failed to write frame")
	}

	atomic.AddUint64(&c.framesSent, 1)
	atomic.AddUint64(&c.bytesSent, uint64(len(frame)))
	return nil
}

// Run reads messages until the connection or ctx closes and queues every
// decoded frame on a under the connection id. A clean close returns nil.
func (c *Conn) Run(ctx context.Context, a *transport.Applier) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()
	defer func() { _ = a.Forget(ctx, c.id) }()

	if c.config.PingInterval > 0 {
		go c.ping(ctx)
	}

	for {
		if c.config.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.IsClosed() ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return errors.Wrap(err, "failed to read message")
		}
		if messageType != websocket.BinaryMessage {
			c.logger.Warn("Ignoring non-binary websocket message", log.Int("message_type", messageType))
			continue
		}
		atomic.AddUint64(&c.bytesReceived, uint64(len(data)))

		msgs, err := wire.DecodeAll(data)
		if err != nil {
			c.logger.Warn("Dropping malformed component frames", log.Int("bytes", len(data)), log.Error(err))
			continue
		}
		for _, m := range msgs {
			if err = a.EnqueueFrom(ctx, c.id, m); err != nil {
				return nil
			}
			atomic.AddUint64(&c.framesReceived, 1)
		}
	}
}

func (c *Conn) ping(ctx context.Context) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.PingInterval))
			c.writeMu.Unlock()
			if err != nil {
				if !c.IsClosed() {
					c.logger.Warn("Failed to send ping", log.Error(err))
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close sends a close message and closes the underlying connection.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Conn) Stats() Stats {
	return Stats{
		FramesSent:     atomic.LoadUint64(&c.framesSent),
		FramesReceived: atomic.LoadUint64(&c.framesReceived),
		BytesSent:      atomic.LoadUint64(&c.bytesSent),
		BytesReceived:  atomic.LoadUint64(&c.bytesReceived),
	}
}

// Handler upgrades scene runtime requests and hands each connection to
// onConnect on its own goroutine.
type Handler struct {
	upgrader  websocket.Upgrader
	config    Config
	logger    log.Log
	onConnect func(*Conn)
}

func NewHandler(config Config, logger log.Log, onConnect func(*Conn)) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		config:    config,
		logger:    logger.With(log.String("transport", "websocket")),
		onConnect: onConnect,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", log.Error(err))
		return
	}
	c := newConn(conn, h.config, h.logger)
	h.logger.Info("Scene runtime connected", log.String("conn_id", c.ID()), log.String("remote_addr", r.RemoteAddr))
	go h.onConnect(c)
}

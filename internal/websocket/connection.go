package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Settings tunes per-connection buffering, deadlines and heartbeat
type Settings struct {
	BufferSize      int
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
}

// DefaultSettings mirrors the classroom defaults in internal/config
func DefaultSettings() Settings {
	return Settings{
		BufferSize:      100,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageBytes: 64 * 1024,
	}
}

// Connection implements the interfaces.Connection interface
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race conditions
// Interface boundary maintained - no business logic in connection wrapper
type Connection struct {
	conn         *websocket.Conn
	id           string
	writeCh      chan []byte // FUNCTIONAL DISCOVERY: buffered so a broadcast never waits on one slow client
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection wraps conn and starts its writer goroutine
func NewConnection(conn *websocket.Conn, id string, settings Settings) *Connection {
	if settings.BufferSize <= 0 {
		settings.BufferSize = DefaultSettings().BufferSize
	}
	if settings.WriteTimeout <= 0 {
		settings.WriteTimeout = DefaultSettings().WriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           id,
		writeCh:      make(chan []byte, settings.BufferSize),
		writeTimeout: settings.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// ARCHITECTURAL DISCOVERY: Single writer goroutine pattern eliminates races
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				_ = c.Close()
				return
			}

			// A failed write means the peer is gone; closing unblocks the read pump
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.Close()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON marshals v and queues it for the writer goroutine without blocking.
// A full buffer closes the connection and returns ErrSendBufferFull.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	// FUNCTIONAL DISCOVERY: A peer that lets its buffer fill is dropped so
	// the hub goroutine never waits on it
	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		_ = c.Close()
		return ErrSendBufferFull
	}
}

// Close is idempotent
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// ID returns the server-assigned connection id
func (c *Connection) ID() string {
	return c.id
}

// Done is closed once the connection is closed
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

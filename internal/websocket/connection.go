package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"waregate/pkg/types"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrInvalidJSON      = errors.New("invalid JSON payload")
)

// Connection wraps a WebSocket with a single-writer goroutine so concurrent
// broadcasts never race on the underlying socket. A slow client fills its
// bounded queue and starts losing writes on timeout; it never blocks the
// sender.
type Connection struct {
	conn         *websocket.Conn
	id           string
	principal    types.Principal
	writeCh      chan []byte
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	closeOnce    sync.Once
}

// NewConnection wraps an upgraded socket. The identity comes from admission
// control and is immutable for the connection's lifetime.
func NewConnection(conn *websocket.Conn, id string, principal types.Principal, bufferSize int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		id:           id,
		principal:    principal,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// ID returns the connection identifier assigned at upgrade time.
func (c *Connection) ID() string {
	return c.id
}

// Principal returns the identity attached by admission control.
func (c *Connection) Principal() types.Principal {
	return c.principal
}

// writeLoop is the single writer; it drains the queue until the connection
// closes. When the socket write fails the loop cancels the connection context
// so queued and future WriteJSON calls fail fast instead of waiting out the
// write timeout against a dead peer.
func (c *Connection) writeLoop() {
	defer c.cancel()
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON queues a JSON message for the single writer. Safe for concurrent
// use; returns ErrWriteTimeout when the client cannot keep up.
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

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(c.writeTimeout):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close shuts the writer down and closes the socket. Safe to call more than
// once.
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

// Done exposes the connection's lifetime to the controller's goroutines.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection wraps one WebSocket client. Writes are serialized through a
// single writer goroutine; identity and classroom binding are set once at
// construction and never change for the connection's lifetime.
type Connection struct {
	conn         *websocket.Conn
	writeCh      chan []byte
	writeTimeout time.Duration

	connectionID string
	userID       string
	displayName  string
	photoURL     string
	classroomID  string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection creates a connection wrapper bound to an authenticated
// identity and classroom, and starts its writer goroutine.
func NewConnection(conn *websocket.Conn, userID, displayName, photoURL, classroomID string, bufferSize int, writeTimeout time.Duration) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		connectionID: uuid.New().String(),
		userID:       userID,
		displayName:  displayName,
		photoURL:     photoURL,
		classroomID:  classroomID,
		ctx:          ctx,
		cancel:       cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the single writer for the underlying socket.
func (c *Connection) writeLoop() {
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

// WriteJSON queues v for delivery. Returns ErrConnectionClosed after Close,
// ErrWriteTimeout when the write buffer stays full past the write timeout.
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

// Close stops the writer goroutine and closes the socket. Idempotent.
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

func (c *Connection) ConnectionID() string { return c.connectionID }
func (c *Connection) UserID() string       { return c.userID }
func (c *Connection) DisplayName() string  { return c.displayName }
func (c *Connection) PhotoURL() string     { return c.photoURL }
func (c *Connection) ClassroomID() string  { return c.classroomID }

package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrSocketClosed = errors.New("socket closed")
	// ErrUnencodable marks a frame that could not be serialized. The
	// connection itself is still healthy.
	ErrUnencodable = errors.New("frame not encodable")
)

// Socket is the transport handle a Client pushes frames through.
type Socket interface {
	WriteJSON(v any) error
	Ping() error
	Close() error
	IsOpen() bool
}

const (
	writeWait   = 10 * time.Second
	controlWait = time.Second
)

// Conn adapts a gorilla websocket connection to Socket. Data writes are
// serialized; gorilla allows WriteControl and Close concurrently with them.
// A failed write or ping closes the connection.
type Conn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	mu        sync.Mutex
	closed    atomic.Bool
	once      sync.Once
}

func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn, writeWait: writeWait}
}

func (c *Conn) WriteJSON(v any) error {
	if c.closed.Load() {
		return ErrSocketClosed
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnencodable, err)
	}

	c.mu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	err = c.conn.WriteMessage(websocket.TextMessage, b)
	c.mu.Unlock()
	if err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

func (c *Conn) Ping() error {
	if c.closed.Load() {
		return ErrSocketClosed
	}
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWait)); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

// Close sends a going-away close frame and closes the connection. Safe to
// call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(controlWait))
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) IsOpen() bool {
	return !c.closed.Load()
}

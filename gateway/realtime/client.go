package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnhTuIT04/SmartHomeServer/errors"
	"github.com/AnhTuIT04/SmartHomeServer/pkg/buffer"
	"github.com/AnhTuIT04/SmartHomeServer/types"
)

const (
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
)

// client is one dashboard connection. Outbound frames go through a
// bounded circular buffer drained by a dedicated writer goroutine, so
// a slow client overflows its own queue and loses its oldest frames
// instead of blocking the pipelines or the fan-out path.
type client struct {
	conn    *websocket.Conn
	session types.Session

	outbound buffer.Buffer[[]byte]
	wake     chan struct{}

	// gorilla/websocket forbids concurrent writes to one connection.
	writeMu sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	cancel    context.CancelFunc
}

func newClient(conn *websocket.Conn, queueSize int, onDrop func()) (*client, error) {
	opts := []buffer.Option[[]byte]{
		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest),
	}
	if onDrop != nil {
		opts = append(opts, buffer.WithDropCallback[[]byte](func([]byte) { onDrop() }))
	}

	outbound, err := buffer.NewCircularBuffer(queueSize, opts...)
	if err != nil {
		return nil, err
	}

	return &client{
		conn:     conn,
		outbound: outbound,
		wake:     make(chan struct{}, 1),
	}, nil
}

// Send queues one frame for the writer goroutine. Implements
// session.Sender; returns errors.ErrSessionClosed once the connection
// is gone so the registry can evict the session.
func (c *client) Send(message []byte) error {
	if c.closed.Load() {
		return errors.ErrSessionClosed
	}

	if err := c.outbound.Write(message); err != nil {
		return errors.ErrSessionClosed
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// writeDirect puts one text frame on the wire. Used by the writer
// goroutine and for handshake error frames, which must reach the wire
// before the connection closes.
func (c *client) writeDirect(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// ping sends a control ping for liveness checking.
func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// close tears the connection down exactly once.
func (c *client) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.cancel != nil {
			c.cancel()
		}
		_ = c.outbound.Close()
		_ = c.conn.Close()
		// Nudge the writer so it observes the closed flag.
		select {
		case c.wake <- struct{}{}:
		default:
		}
	})
}

package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrConnectionClosed = errors.New("connection closed")

var connIDCounter int64

// Connection wraps one websocket with a buffered outbound queue so
// that a slow reader never blocks delivery to other users.
type Connection struct {
	id           int64
	userID       int64
	ws           *websocket.Conn
	logger       *slog.Logger
	writeChan    chan Event
	closeChan    chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingEvery    time.Duration
	createTime   time.Time
}

// NewConnection starts the write loop immediately. bufSize bounds the
// outbound queue; events past the bound are dropped, not queued.
func NewConnection(ws *websocket.Conn, userID int64, bufSize int, writeTimeout, pingEvery time.Duration, logger *slog.Logger) *Connection {
	if bufSize <= 0 {
		bufSize = 64
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingEvery <= 0 {
		pingEvery = 25 * time.Second
	}
	c := &Connection{
		id:           atomic.AddInt64(&connIDCounter, 1),
		userID:       userID,
		ws:           ws,
		logger:       logger,
		writeChan:    make(chan Event, bufSize),
		closeChan:    make(chan struct{}),
		writeTimeout: writeTimeout,
		pingEvery:    pingEvery,
		createTime:   time.Now(),
	}
	go c.writeLoop()
	return c
}

func (c *Connection) ID() int64 {
	return c.id
}

func (c *Connection) UserID() int64 {
	return c.userID
}

func (c *Connection) CreateTime() time.Time {
	return c.createTime
}

// Send queues an event for the write loop. Delivery is best effort: a
// full queue drops the event rather than blocking the caller.
func (c *Connection) Send(ev Event) error {
	select {
	case <-c.closeChan:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.writeChan <- ev:
		return nil
	case <-c.closeChan:
		return ErrConnectionClosed
	default:
		c.logger.Warn("outbound queue full, dropping event", "connId", c.id, "userId", c.userID, "event", ev.Type)
		return nil
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.writeChan:
			ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
			err := wsjson.Write(ctx, c.ws, ev)
			cancel()
			if err != nil {
				c.logger.Debug("websocket write failed", "connId", c.id, "userId", c.userID, "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
			err := c.ws.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Debug("keepalive ping failed", "connId", c.id, "userId", c.userID, "error", err)
				c.Close()
				return
			}
		case <-c.closeChan:
			return
		}
	}
}

// Close is safe to call from any goroutine, any number of times.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		if c.ws != nil {
			c.ws.Close(websocket.StatusNormalClosure, "connection closed")
		}
	})
}

// Closed reports whether Close has run.
func (c *Connection) Closed() bool {
	select {
	case <-c.closeChan:
		return true
	default:
		return false
	}
}

package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/supportstack/tickets/internal/auth"
	"github.com/supportstack/tickets/internal/metrics"
)

const (
	// authWait bounds how long a fresh connection may take to present its
	// auth frame before it is disconnected.
	authWait = 10 * time.Second

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxFrameSize = 1 << 16
	sendBuffer   = 32
)

// connection is one live realtime socket. The accessor is attached once
// after a successful handshake and never changes. Outbound frames go
// through a buffered channel drained by writePump, so one slow connection
// never stalls fan-out to the rest.
type connection struct {
	ws  *websocket.Conn
	log zerolog.Logger

	accessor auth.Accessor

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

func newConnection(ws *websocket.Conn, log zerolog.Logger) *connection {
	return &connection{
		ws:   ws,
		log:  log,
		send: make(chan []byte, sendBuffer),
	}
}

// trySend queues a frame without blocking. It reports false when the frame
// was dropped because the connection is closed or its buffer is full.
func (c *connection) trySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		metrics.RealtimeDroppedFramesTotal.Inc()
		c.log.Warn().Msg("dropping frame on slow connection")
		return false
	}
}

// shutdown tears the connection down. Safe to call more than once and from
// any goroutine; it unblocks both the read loop and writePump.
func (c *connection) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()

	_ = c.ws.Close()
}

// writePump serialises all writes to the socket: queued frames and
// keepalive pings. It exits when the send channel closes.
func (c *connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

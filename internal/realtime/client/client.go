// Package client connects to the realtime broadcast server, authenticates,
// and exposes a namespace's event stream as a channel of envelopes.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/supportstack/tickets/internal/bus"
	"github.com/supportstack/tickets/internal/events"
)

const (
	// DefaultAckTimeout bounds how long ListenTo waits for its ack.
	DefaultAckTimeout = 10 * time.Second

	handshakeTimeout = 10 * time.Second
)

// ErrAckTimeout reports a join request whose ack never arrived. The join is
// treated as refused; retrying is the caller's decision.
var ErrAckTimeout = errors.New("realtime: listen ack timed out")

// ErrClosed reports an operation on a client whose transport has closed.
var ErrClosed = errors.New("realtime: connection closed")

// Client is one authenticated subscription to a namespace.
type Client struct {
	ws         *websocket.Conn
	ns         events.Namespace
	log        zerolog.Logger
	ackTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan events.ListenResult
	nextID  uint64
	closed  bool

	queue *bus.Queue
	done  chan struct{}
}

// Config carries the connection parameters.
type Config struct {
	// ServerURL is the broadcast server's base URL (http or ws scheme).
	ServerURL string
	// Token authenticates the handshake.
	Token string
	// AckTimeout overrides DefaultAckTimeout when positive.
	AckTimeout time.Duration
}

// Connect opens the transport for a namespace, performs the auth handshake,
// and starts delivering inbound events on the returned channel. The channel
// is unbounded and closes when the connection dies.
func Connect(ctx context.Context, ns events.Namespace, cfg Config, log zerolog.Logger) (*Client, <-chan events.Envelope, error) {
	endpoint, err := socketURL(cfg.ServerURL, ns)
	if err != nil {
		return nil, nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, nil, fmt.Errorf("realtime: dial %s (status %d): %w", endpoint, resp.StatusCode, err)
		}
		return nil, nil, fmt.Errorf("realtime: dial %s: %w", endpoint, err)
	}

	c := &Client{
		ws:         ws,
		ns:         ns,
		log:        log.With().Str("namespace", ns.Name).Logger(),
		ackTimeout: cfg.AckTimeout,
		pending:    make(map[uint64]chan events.ListenResult),
		queue:      bus.NewQueue(),
		done:       make(chan struct{}),
	}
	if c.ackTimeout <= 0 {
		c.ackTimeout = DefaultAckTimeout
	}

	if err := c.handshake(cfg.Token); err != nil {
		_ = ws.Close()
		c.queue.Close()
		return nil, nil, err
	}

	go c.readLoop()
	return c, c.queue.Out(), nil
}

// socketURL rewrites the server base URL into the namespace's websocket
// endpoint.
func socketURL(serverURL string, ns events.Namespace) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("realtime: parse server url: %w", err)
	}
	switch parsed.Scheme {
	case "http", "ws":
		parsed.Scheme = "ws"
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("realtime: unsupported scheme %q", parsed.Scheme)
	}
	return parsed.JoinPath("realtime", ns.Name).String(), nil
}

// handshake sends the auth frame and waits for the server's ack. The server
// disconnects instead of acking when the token is rejected.
func (c *Client) handshake(token string) error {
	frame, err := events.EncodeFrame(events.FrameAuth, events.AuthPayload{Token: token})
	if err != nil {
		return err
	}
	if err := c.write(frame); err != nil {
		return err
	}

	_ = c.ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer func() { _ = c.ws.SetReadDeadline(time.Time{}) }()

	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return fmt.Errorf("realtime: authentication rejected: %w", err)
	}
	ack, err := events.DecodeFrame(raw)
	if err != nil || ack.Type != events.FrameAuthAck {
		return errors.New("realtime: unexpected handshake reply")
	}
	return nil
}

// ListenTo requests to join an app's room. delegatedToken may be empty; when
// set it vouches for an app outside the connection token's scope. A timed
// out ack is treated as a refusal and returned with ErrAckTimeout.
func (c *Client) ListenTo(ctx context.Context, appID uuid.UUID, delegatedToken string) (events.ListenResult, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return events.ListenFailure, ErrClosed
	}
	c.nextID++
	id := c.nextID
	ack := make(chan events.ListenResult, 1)
	c.pending[id] = ack
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	frame, err := events.EncodeFrame(events.FrameListenTo, events.ListenTo{
		ID:                 id,
		AppID:              appID,
		AuthorizedAppToken: delegatedToken,
	})
	if err != nil {
		return events.ListenFailure, err
	}
	if err := c.write(frame); err != nil {
		return events.ListenFailure, err
	}

	timer := time.NewTimer(c.ackTimeout)
	defer timer.Stop()

	select {
	case result := <-ack:
		return result, nil
	case <-timer.C:
		c.log.Warn().Str("app_id", appID.String()).Msg("listen ack timed out")
		return events.ListenFailure, ErrAckTimeout
	case <-ctx.Done():
		return events.ListenFailure, ctx.Err()
	case <-c.done:
		return events.ListenFailure, ErrClosed
	}
}

// Close tears the connection down and closes the event channel.
func (c *Client) Close() {
	c.shutdown()
}

func (c *Client) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	_ = c.ws.Close()
}

// readLoop demultiplexes inbound frames: events flow onto the queue, acks
// resolve their pending ListenTo calls. Malformed frames are dropped with a
// log line.
func (c *Client) readLoop() {
	defer c.queue.Close()
	defer c.shutdown()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.log.Debug().Err(err).Msg("realtime connection closed")
			return
		}
		frame, err := events.DecodeFrame(raw)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		switch frame.Type {
		case events.FrameEvent:
			var event events.EventFrame
			if err := json.Unmarshal(frame.Data, &event); err != nil {
				c.log.Warn().Err(err).Msg("dropping undecodable event frame")
				continue
			}
			if event.Event != c.ns.EventName {
				c.log.Warn().Str("event", event.Event).Msg("dropping event for wrong namespace")
				continue
			}
			c.queue.Push(events.Envelope{AppID: event.AppID, Event: event.Payload})
		case events.FrameListenAck:
			var ack events.ListenAck
			if err := json.Unmarshal(frame.Data, &ack); err != nil {
				c.log.Warn().Err(err).Msg("dropping undecodable listen ack")
				continue
			}
			c.resolveAck(ack)
		default:
			c.log.Warn().Str("type", frame.Type).Msg("ignoring unexpected frame")
		}
	}
}

func (c *Client) resolveAck(ack events.ListenAck) {
	c.mu.Lock()
	pending, ok := c.pending[ack.ID]
	c.mu.Unlock()
	if ok {
		pending <- ack.Result
	}
}

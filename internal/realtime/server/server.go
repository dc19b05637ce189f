// Package server implements the namespace-scoped realtime broadcast server:
// websocket handshake and authorization, per-app room membership, and
// fan-out of event-bus envelopes to subscribed connections.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/supportstack/tickets/internal/auth"
	"github.com/supportstack/tickets/internal/events"
	"github.com/supportstack/tickets/internal/metrics"
)

// upgrader performs the websocket upgrade. The server sits on an internal
// network behind service auth, so origins are not restricted here.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// namespaceState is one namespace's room table.
type namespaceState struct {
	ns    events.Namespace
	rooms *roomTable
}

// Server authorizes realtime subscriptions per app and broadcasts bus
// envelopes to the rooms that joined them.
type Server struct {
	verifier   *auth.Config
	log        zerolog.Logger
	validate   *validator.Validate
	namespaces map[string]*namespaceState
}

// New builds a Server serving the platform's two namespaces. The verifier
// needs only public key material.
func New(verifier *auth.Config, log zerolog.Logger) *Server {
	s := &Server{
		verifier:   verifier,
		log:        log,
		validate:   validator.New(),
		namespaces: make(map[string]*namespaceState),
	}
	for _, ns := range []events.Namespace{events.AppChanges, events.Tickets} {
		s.namespaces[ns.Name] = &namespaceState{ns: ns, rooms: newRoomTable()}
	}
	return s
}

// Register mounts the realtime endpoint on the router.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/realtime/:namespace", s.handleSocket)
}

func (s *Server) handleSocket(c echo.Context) error {
	state, ok := s.namespaces[c.Param("namespace")]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown namespace")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return nil
	}

	conn := newConnection(ws, s.log.With().Str("namespace", state.ns.Name).Logger())
	go conn.writePump()

	metrics.RealtimeConnectionsActive.WithLabelValues(state.ns.Name).Inc()
	defer metrics.RealtimeConnectionsActive.WithLabelValues(state.ns.Name).Dec()

	s.serveConn(state, conn)
	return nil
}

// serveConn runs the connection's read loop: handshake first, then join
// requests until the transport closes.
func (s *Server) serveConn(state *namespaceState, conn *connection) {
	defer func() {
		state.rooms.leaveAll(conn)
		conn.shutdown()
	}()

	if !s.handshake(conn) {
		return
	}

	conn.ws.SetReadLimit(maxFrameSize)
	_ = conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		frame, err := events.DecodeFrame(raw)
		if err != nil {
			conn.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		switch frame.Type {
		case events.FrameListenTo:
			s.handleListenTo(state, conn, frame.Data)
		default:
			conn.log.Warn().Str("type", frame.Type).Msg("ignoring unexpected frame")
		}
	}
}

// handshake authenticates the connection's first frame. Any failure here
// disconnects: a socket that never completes handshake is never granted
// join capability.
func (s *Server) handshake(conn *connection) bool {
	_ = conn.ws.SetReadDeadline(time.Now().Add(authWait))
	conn.ws.SetReadLimit(maxFrameSize)

	_, raw, err := conn.ws.ReadMessage()
	if err != nil {
		return false
	}

	frame, err := events.DecodeFrame(raw)
	if err != nil || frame.Type != events.FrameAuth {
		return false
	}
	var payload events.AuthPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return false
	}
	if err := s.validate.Struct(&payload); err != nil {
		return false
	}

	accessor, err := s.verifier.Verify(payload.Token)
	if err != nil {
		conn.log.Debug().Err(err).Msg("handshake rejected")
		return false
	}
	conn.accessor = accessor

	ack, err := events.EncodeFrame(events.FrameAuthAck, struct{}{})
	if err != nil {
		return false
	}
	return conn.trySend(ack)
}

// handleListenTo evaluates one join request and acks the outcome. A refusal
// keeps the connection alive; only the handshake is disconnect-on-failure.
func (s *Server) handleListenTo(state *namespaceState, conn *connection, data json.RawMessage) {
	var req events.ListenTo
	result := events.ListenFailure

	if err := json.Unmarshal(data, &req); err == nil && s.validate.Struct(&req) == nil {
		if authorizeListen(s.verifier, conn.accessor, req) {
			state.rooms.join(req.AppID.String(), conn)
			result = events.ListenSuccess
		}
	}
	metrics.RealtimeJoinsTotal.WithLabelValues(string(result)).Inc()

	ack, err := events.EncodeFrame(events.FrameListenAck, events.ListenAck{ID: req.ID, Result: result})
	if err != nil {
		conn.shutdown()
		return
	}
	if !conn.trySend(ack) {
		conn.shutdown()
	}
}

// Broadcast consumes the bridge's queue until it closes, fanning each
// envelope out to its namespace's room. Runs on its own goroutine; order
// within one app's stream is preserved because this loop is the only
// producer into each connection's send buffer for event frames.
func (s *Server) Broadcast(queue <-chan events.Envelope) {
	for envelope := range queue {
		s.broadcastOne(envelope)
	}
	s.log.Info().Msg("broadcast queue closed")
}

func (s *Server) broadcastOne(envelope events.Envelope) {
	ns, err := envelope.Event.Namespace()
	if err != nil {
		s.log.Error().Err(err).Msg("dropping envelope with unknown namespace")
		return
	}
	state := s.namespaces[ns.Name]

	frame, err := events.EncodeFrame(events.FrameEvent, events.EventFrame{
		Event:   ns.EventName,
		AppID:   envelope.AppID,
		Payload: envelope.Event,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("encoding outbound event frame")
		return
	}

	for _, conn := range state.rooms.members(envelope.AppID.String()) {
		// Best effort: a full buffer drops the frame for that connection only.
		conn.trySend(frame)
	}
	metrics.RealtimeBroadcastsTotal.WithLabelValues(ns.Name).Inc()
}

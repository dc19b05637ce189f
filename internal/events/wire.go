package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Frame types exchanged over the realtime websocket. Every frame is a JSON
// object {"type": ..., "data": ...}.
const (
	FrameAuth      = "auth"
	FrameAuthAck   = "auth_ack"
	FrameListenTo  = "listen_to"
	FrameListenAck = "listen_ack"
	FrameEvent     = "event"
)

// Frame is the outer wire shape of every realtime message.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// AuthPayload is the handshake payload, sent as the first frame after the
// transport opens.
type AuthPayload struct {
	Token string `json:"token" validate:"required"`
}

// ListenTo asks the server to join the connection to an app's room. The id
// correlates the ack. The delegated token, when present, vouches for an app
// outside the connection token's scope.
type ListenTo struct {
	ID                 uint64    `json:"id"`
	AppID              uuid.UUID `json:"app_id" validate:"required"`
	AuthorizedAppToken string    `json:"authorized_app_token,omitempty"`
}

// ListenResult is the join acknowledgement outcome. Failures carry no
// reason; the server never explains a refusal to the requester.
type ListenResult string

const (
	ListenSuccess ListenResult = "success"
	ListenFailure ListenResult = "failure"
)

// ListenAck acknowledges one ListenTo request.
type ListenAck struct {
	ID     uint64       `json:"id"`
	Result ListenResult `json:"result"`
}

// EventFrame delivers one event to a subscribed connection. Event is the
// namespace's fixed wire event name.
type EventFrame struct {
	Event   string    `json:"event"`
	AppID   uuid.UUID `json:"app_id"`
	Payload Event     `json:"payload"`
}

// EncodeFrame marshals a typed payload into an outer frame.
func EncodeFrame(frameType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("events: encode %s frame: %w", frameType, err)
	}
	return json.Marshal(Frame{Type: frameType, Data: raw})
}

// DecodeFrame unmarshals the outer frame shape.
func DecodeFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("events: decode frame: %w", err)
	}
	return frame, nil
}

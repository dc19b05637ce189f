package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/supportstack/tickets/internal/events"
)

func TestSocketURL(t *testing.T) {
	cases := []struct {
		serverURL string
		want      string
		wantErr   bool
	}{
		{serverURL: "http://broadcast:3000", want: "ws://broadcast:3000/realtime/tickets"},
		{serverURL: "https://broadcast.internal", want: "wss://broadcast.internal/realtime/tickets"},
		{serverURL: "ws://broadcast:3000", want: "ws://broadcast:3000/realtime/tickets"},
		{serverURL: "wss://broadcast.internal", want: "wss://broadcast.internal/realtime/tickets"},
		{serverURL: "ftp://broadcast", wantErr: true},
	}

	for _, tc := range cases {
		got, err := socketURL(tc.serverURL, events.Tickets)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("socketURL(%q) should fail", tc.serverURL)
			}
			continue
		}
		if err != nil {
			t.Fatalf("socketURL(%q) returned error: %v", tc.serverURL, err)
		}
		if got != tc.want {
			t.Fatalf("socketURL(%q) = %q, want %q", tc.serverURL, got, tc.want)
		}
	}
}

// silentServer acks the auth frame and then swallows everything.
func silentServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		ack, _ := events.EncodeFrame(events.FrameAuthAck, struct{}{})
		if err := ws.WriteMessage(websocket.TextMessage, ack); err != nil {
			return
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListenTo_AckTimeoutIsRefusal(t *testing.T) {
	srv := silentServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := Connect(ctx, events.Tickets, Config{
		ServerURL:  srv.URL,
		Token:      "any",
		AckTimeout: 100 * time.Millisecond,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	defer c.Close()

	result, err := c.ListenTo(ctx, uuid.New(), "")
	if !errors.Is(err, ErrAckTimeout) {
		t.Fatalf("expected ErrAckTimeout, got %v", err)
	}
	if result != events.ListenFailure {
		t.Fatalf("timed out join should be reported as refused")
	}
}

func TestConnect_ServerWithoutAckFailsHandshake(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Read the auth frame, then hang up without acking.
		_, _, _ = ws.ReadMessage()
		ws.Close()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := Connect(ctx, events.Tickets, Config{ServerURL: srv.URL, Token: "any"}, zerolog.Nop())
	if err == nil {
		t.Fatalf("expected handshake failure when the server hangs up")
	}
}

func TestListenTo_AfterCloseReturnsErrClosed(t *testing.T) {
	srv := silentServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := Connect(ctx, events.Tickets, Config{ServerURL: srv.URL, Token: "any"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	c.Close()

	if _, err := c.ListenTo(ctx, uuid.New(), ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReadLoop_DropsForeignEventNames(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	appID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		ack, _ := events.EncodeFrame(events.FrameAuthAck, struct{}{})
		_ = ws.WriteMessage(websocket.TextMessage, ack)

		// First an event tagged for another namespace, then a real one.
		for _, name := range []string{events.AppChanges.EventName, events.Tickets.EventName} {
			frame, _ := events.EncodeFrame(events.FrameEvent, events.EventFrame{
				Event:   name,
				AppID:   appID,
				Payload: events.NewTicketSubmitted(name),
			})
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, stream, err := Connect(ctx, events.Tickets, Config{ServerURL: srv.URL, Token: "any"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	defer c.Close()

	select {
	case envelope := <-stream:
		if got := envelope.Event.TicketSubmitted.Message; got != events.Tickets.EventName {
			t.Fatalf("foreign event leaked through: %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for the matching event")
	}
}

func TestResolveAck_UnknownIDIgnored(t *testing.T) {
	c := &Client{pending: map[uint64]chan events.ListenResult{}}
	// Must not block or panic.
	c.resolveAck(events.ListenAck{ID: 42, Result: events.ListenSuccess})
}

func TestListenAckDecode(t *testing.T) {
	raw := []byte(`{"type":"listen_ack","data":{"id":7,"result":"success"}}`)
	frame, err := events.DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	var ack events.ListenAck
	if err := json.Unmarshal(frame.Data, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.ID != 7 || ack.Result != events.ListenSuccess {
		t.Fatalf("ack decoded wrong: %+v", ack)
	}
}

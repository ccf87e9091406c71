package e2e_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/driftwire/driftwire"
	"github.com/driftwire/driftwire/ws"
)

// Helper function to create a WebSocket dialer
func newDialer() *websocket.Dialer {
	return &websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
}

// startServer boots a server on an ephemeral port and wires its shutdown
// into the test cleanup.
func startServer(t *testing.T, limit ws.RateLimit) driftwire.Server {
	t.Helper()

	cfg := ws.NewConfig("127.0.0.1", 0, limit)
	cfg.PollInterval = 10 * time.Millisecond
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	server := ws.New(cfg)
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Stop(stopCtx)
	})
	return server
}

func wsURL(server driftwire.Server) string {
	return "ws://" + server.Addr().String() + "/ws"
}

func dialServer(t *testing.T, server driftwire.Server) *websocket.Conn {
	t.Helper()

	conn, _, err := newDialer().Dial(wsURL(server), nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, env driftwire.Envelope) {
	t.Helper()

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Failed to marshal envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
}

// readReply decodes the next frame into v, failing the test after 5s.
func readReply(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		t.Fatalf("Failed to decode reply %q: %v", payload, err)
	}
}

// joinChannel joins and consumes the status reply.
func joinChannel(t *testing.T, conn *websocket.Conn, name string) driftwire.StatusReply {
	t.Helper()

	sendEnvelope(t, conn, driftwire.Envelope{Type: driftwire.TypeJoin, Channel: name})

	var status driftwire.StatusReply
	readReply(t, conn, &status)
	if status.Action != driftwire.ActionJoined {
		t.Fatalf("join reply action = %q, want %q", status.Action, driftwire.ActionJoined)
	}
	if status.Channel != name {
		t.Fatalf("join reply channel = %q, want %q", status.Channel, name)
	}
	return status
}

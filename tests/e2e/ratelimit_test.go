package e2e_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/driftwire/driftwire"
	"github.com/driftwire/driftwire/ws"
)

func TestRateLimitErrorAfterBurst(t *testing.T) {
	t.Parallel()

	server := startServer(t, ws.RateLimit{
		MaxRequests:          3,
		WindowSeconds:        60,
		BlockDurationSeconds: 300,
	})
	conn := dialServer(t, server)

	// First hit: the join itself.
	status := joinChannel(t, conn, "burst")
	if status.RateLimit.RemainingRequests != 2 {
		t.Errorf("remaining after join = %d, want 2", status.RateLimit.RemainingRequests)
	}

	// Hits two and three: publishes into an otherwise empty channel.
	for i := 0; i < 2; i++ {
		sendEnvelope(t, conn, driftwire.Envelope{
			Type:    driftwire.TypeMessage,
			Channel: "burst",
			Data:    json.RawMessage(`"filler"`),
		})
	}

	// The fourth frame crosses the threshold.
	sendEnvelope(t, conn, driftwire.Envelope{
		Type:    driftwire.TypeMessage,
		Channel: "burst",
		Data:    json.RawMessage(`"over"`),
	})

	var reply driftwire.RateLimitErrorReply
	readReply(t, conn, &reply)
	if reply.Type != driftwire.TypeRateLimitError {
		t.Fatalf("reply type = %q, want %q", reply.Type, driftwire.TypeRateLimitError)
	}
	if reply.Message != driftwire.RateLimitExceededMessage {
		t.Errorf("reply message = %q", reply.Message)
	}
	if reply.RemainingRequests != 0 {
		t.Errorf("remaining = %d, want 0", reply.RemainingRequests)
	}
	if reply.BlockedUntil == nil {
		t.Fatal("blocked_until missing from rejection reply")
	}
	if wait := time.Until(*reply.BlockedUntil); wait < 4*time.Minute || wait > 6*time.Minute {
		t.Errorf("blocked_until %s away, want about 5m", wait)
	}
	if reply.LimitInfo.MaxRequests != 3 {
		t.Errorf("limit echo = %d, want 3", reply.LimitInfo.MaxRequests)
	}

	// The block persists: the next frame is rejected too.
	sendEnvelope(t, conn, driftwire.Envelope{
		Type:    driftwire.TypeMessage,
		Channel: "burst",
		Data:    json.RawMessage(`"still blocked"`),
	})
	readReply(t, conn, &reply)
	if reply.Type != driftwire.TypeRateLimitError {
		t.Fatalf("second reply type = %q, want %q", reply.Type, driftwire.TypeRateLimitError)
	}
}

func TestRemainingDecrementsPerFrame(t *testing.T) {
	t.Parallel()

	server := startServer(t, ws.RateLimit{
		MaxRequests:          5,
		WindowSeconds:        60,
		BlockDurationSeconds: 300,
	})
	conn := dialServer(t, server)

	first := joinChannel(t, conn, "quota")
	if first.RateLimit.RemainingRequests != 4 {
		t.Errorf("remaining after first join = %d, want 4", first.RateLimit.RemainingRequests)
	}

	// Joining again is idempotent for membership but still costs a hit.
	second := joinChannel(t, conn, "quota")
	if second.RateLimit.RemainingRequests != 3 {
		t.Errorf("remaining after second join = %d, want 3", second.RateLimit.RemainingRequests)
	}
}

func TestReconnectGetsFreshQuota(t *testing.T) {
	t.Parallel()

	server := startServer(t, ws.RateLimit{
		MaxRequests:          1,
		WindowSeconds:        60,
		BlockDurationSeconds: 300,
	})

	conn := dialServer(t, server)
	joinChannel(t, conn, "once")

	// The second frame trips the block on this connection.
	sendEnvelope(t, conn, driftwire.Envelope{Type: driftwire.TypeStats})
	var reply driftwire.RateLimitErrorReply
	readReply(t, conn, &reply)
	if reply.Type != driftwire.TypeRateLimitError {
		t.Fatalf("reply type = %q, want %q", reply.Type, driftwire.TypeRateLimitError)
	}

	conn.Close()

	// A new connection is a new governor key with the full quota.
	fresh := dialServer(t, server)
	status := joinChannel(t, fresh, "once")
	if status.RateLimit.RemainingRequests != 0 {
		t.Errorf("remaining on fresh connection = %d, want 0", status.RateLimit.RemainingRequests)
	}
}

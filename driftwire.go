package driftwire

import (
	"context"
	"net"
)

// Server is a channel-based WebSocket messaging server.
//
// All state (connections, channel memberships, rate-limit records) is
// owned by a single event-loop goroutine. The methods below are safe to call
// from any goroutine: they hand work to the loop and wait for it to be
// serviced, which takes at most one poll interval on an otherwise idle
// server.
//
// Example usage:
//
//	import "github.com/driftwire/driftwire/ws"
//
//	server := ws.New(ws.NewConfig("127.0.0.1", 8080, ws.DefaultRateLimit()))
//
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Stop(context.Background())
type Server interface {
	// Start binds the listening socket and launches the event loop.
	//
	// Returns an error if the server is already running or if the address
	// cannot be bound. A bind failure is the only fatal startup condition;
	// once Start returns nil, per-connection failures never stop the loop.
	Start(ctx context.Context) error

	// Stop flips the running flag and waits for the event loop to observe
	// it, tear down every live connection, and close the listener. The loop
	// notices the flag within one poll interval.
	//
	// Returns ctx.Err() if the context ends first. Stopping a stopped
	// server is a no-op.
	Stop(ctx context.Context) error

	// Addr returns the bound listener address, or nil before Start. Useful
	// when the server was configured with port 0.
	Addr() net.Addr

	// Broadcast sends data to every member of channel as a single text
	// frame. An empty channel name targets every live connection. The frame
	// is encoded once; a write failure to one recipient never aborts
	// delivery to the rest.
	//
	// data is forwarded byte for byte; callers sending JSON must pass
	// already-encoded JSON (for example []byte(`"hello"`)).
	Broadcast(ctx context.Context, channel string, data []byte) error

	// Stats reports the current connection count, channel count, and the
	// rate governor's aggregate counters.
	Stats(ctx context.Context) (StatsReply, error)

	// ResetClientLimit clears the rate-limit window and block deadline for
	// one client, identified by the opaque connection ID assigned at accept
	// time.
	ResetClientLimit(ctx context.Context, clientID string) error

	// ResetAllLimits clears every client's rate-limit record.
	ResetAllLimits(ctx context.Context) error

	// ApplyRateLimit swaps the governor's thresholds at runtime. Existing
	// records are reset, since windows accumulated under the old thresholds
	// are meaningless under the new ones.
	ApplyRateLimit(ctx context.Context, limit RateLimit) error
}

// RateLimit configures the per-client rate governor.
//
// MaxRequests messages are admitted per WindowSeconds-long window; a client
// that crosses the threshold is rejected and blocked for
// BlockDurationSeconds. The block is honored unconditionally until it
// elapses, even if the window would have decayed sooner; window and block
// are independent settings.
type RateLimit struct {
	MaxRequests          int
	WindowSeconds        int
	BlockDurationSeconds int
}

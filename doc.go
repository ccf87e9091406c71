// Package driftwire provides a channel-based WebSocket messaging server with
// per-client rate limiting.
//
// The server speaks the standard WebSocket wire protocol directly over TCP:
// it performs the opening handshake, frames and unframes text messages, and
// multiplexes every client connection over a single readiness-polling event
// loop. Clients join named channels and exchange JSON envelopes; a
// fixed-window rate governor blocks abusive clients for a cooldown period.
//
// # Architecture
//
// One goroutine owns the listening socket, the live-connection set, the
// channel registry, and the rate governor. Each loop iteration polls all
// sockets for readiness, accepts and upgrades new connections, reads and
// dispatches complete frames, and drains a control inbox through which the
// public API (broadcast, stats, limit resets) is serialized. No locks guard
// the connection-indexed state because exactly one goroutine touches it.
//
// # Quick Start
//
//	import (
//	    "github.com/driftwire/driftwire/ws"
//	)
//
//	server := ws.New(ws.NewConfig("127.0.0.1", 8080, ws.DefaultRateLimit()))
//
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Stop(ctx)
//
//	// Push a payload to every member of the "lobby" channel.
//	server.Broadcast(ctx, "lobby", []byte(`"welcome"`))
//
// # Wire Protocol
//
// After the HTTP Upgrade handshake, clients send JSON envelopes as masked
// text frames:
//
//	{"type":"join","channel":"lobby"}
//	{"type":"message","channel":"lobby","data":"hi"}
//	{"type":"leave","channel":"lobby"}
//	{"type":"stats"}
//
// join and leave are acknowledged with a status reply carrying the sender's
// remaining request quota. message forwards the data value, byte for byte,
// to every member of the channel (or to every connection when no channel is
// given). stats returns server and rate-limiter counters. Unknown types are
// ignored.
//
// # Rate Limiting
//
// Every client message passes through a fixed-window governor: at most
// MaxRequests messages per WindowSeconds, and a client that crosses the
// threshold is blocked for BlockDurationSeconds regardless of window decay.
// Rejected messages receive a rate_limit_error reply and are not dispatched.
//
//	// Default: 100 messages per 60s window, 300s block
//	server := ws.New(ws.NewConfig("127.0.0.1", 8080, ws.DefaultRateLimit()))
//
//	// Custom thresholds
//	rl := driftwire.RateLimit{
//	    MaxRequests:          5,
//	    WindowSeconds:        60,
//	    BlockDurationSeconds: 300,
//	}
//	server := ws.New(ws.NewConfig("127.0.0.1", 8080, rl))
//
// Disconnecting resets a client's record; administrative resets are exposed
// through ResetClientLimit and ResetAllLimits.
//
// # Important
//
//   - Connection identifiers are opaque values assigned at accept time; they
//     are never derived from the peer address.
//   - OnConnect/OnDisconnect callbacks run on the event-loop goroutine; keep
//     them fast and never call back into the server from them.
//   - Server-to-client frames are never masked; client-to-server frames are
//     always masked, per protocol rule. The client package handles this.
package driftwire

package driftwire

import (
	"encoding/json"
	"time"
)

// Envelope type discriminators accepted from clients.
const (
	TypeJoin    = "join"
	TypeLeave   = "leave"
	TypeMessage = "message"
	TypeStats   = "stats"
)

// Reply type discriminators sent by the server.
const (
	TypeStatus         = "status"
	TypeRateLimitError = "rate_limit_error"
)

// Status reply actions.
const (
	ActionJoined = "joined"
	ActionLeft   = "left"
)

// Envelope is the application message clients send over a single text
// frame. Channel and Data are optional depending on Type; Data is kept raw
// so broadcasts forward the sender's exact bytes.
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// StatusReply acknowledges a join or leave.
type StatusReply struct {
	Type      string        `json:"type"`
	Action    string        `json:"action"`
	Channel   string        `json:"channel"`
	RateLimit RateLimitInfo `json:"rate_limit"`
}

// RateLimitInfo carries the sender's remaining request quota in the current
// window.
type RateLimitInfo struct {
	RemainingRequests int `json:"remaining_requests"`
}

// RateLimitErrorReply is sent instead of dispatching a message when the
// governor rejects it. BlockedUntil is RFC 3339, null when no block is
// recorded.
type RateLimitErrorReply struct {
	Type              string     `json:"type"`
	Message           string     `json:"message"`
	RemainingRequests int        `json:"remaining_requests"`
	BlockedUntil      *time.Time `json:"blocked_until"`
	LimitInfo         LimitInfo  `json:"limit_info"`
}

// LimitInfo echoes the governor's configured thresholds.
type LimitInfo struct {
	MaxRequests          int `json:"max_requests"`
	WindowSeconds        int `json:"window_seconds"`
	BlockDurationSeconds int `json:"block_duration_seconds"`
}

// StatsReply answers a stats request and backs the Server.Stats API.
type StatsReply struct {
	Type        string           `json:"type"`
	Server      ServerStats      `json:"server"`
	RateLimiter RateLimiterStats `json:"rate_limiter"`
}

// ServerStats counts live connections and channels.
type ServerStats struct {
	ConnectedClients int `json:"connected_clients"`
	Channels         int `json:"channels"`
}

// RateLimiterStats aggregates the governor's counters.
type RateLimiterStats struct {
	ActiveKeys    int       `json:"active_keys"`
	BlockedKeys   int       `json:"blocked_keys"`
	TotalAllowed  uint64    `json:"total_allowed"`
	TotalRejected uint64    `json:"total_rejected"`
	Limit         LimitInfo `json:"limit"`
}

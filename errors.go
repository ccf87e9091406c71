package driftwire

// Standard error messages
const (
	// Lifecycle errors
	ErrServerAlreadyRunning = "server already running"
	ErrServerNotRunning     = "server not running"

	// Connection errors
	ErrConnectionClosed  = "connection is closed"
	ErrHandshakeRejected = "handshake rejected by server"
	ErrClientNotFound    = "client not found"
)

// RateLimitExceededMessage is the human-readable text carried by
// rate_limit_error replies.
const RateLimitExceededMessage = "Rate limit exceeded"

// Package ws assembles a ready-to-run server: it constructs the rate
// governor and channel registry and hands them to the connection
// multiplexer.
package ws

import (
	"log/slog"
	"time"

	"github.com/driftwire/driftwire"
	"github.com/driftwire/driftwire/internal/channel"
	"github.com/driftwire/driftwire/internal/server"
	"github.com/driftwire/driftwire/ratelimit"
)

type RateLimit = driftwire.RateLimit
type OnConnectFn = server.OnConnectFn
type OnDisconnectFn = server.OnDisconnectFn

// Config is the public server configuration. Every field other than Host
// and Port falls back to a sensible default when left zero.
type Config struct {
	Host string
	Port int

	// RateLimit caps inbound messages per connection. Zero fields take the
	// governor defaults.
	RateLimit RateLimit

	// PollInterval bounds each readiness wait of the event loop.
	PollInterval time.Duration

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	Logger *slog.Logger

	OnConnect    OnConnectFn
	OnDisconnect OnDisconnectFn
}

// New wires a server from cfg. The result is stopped; call Start on it.
//
// Example:
//
//	srv := ws.New(ws.NewConfig("127.0.0.1", 8080, ws.DefaultRateLimit()))
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
func New(cfg *Config) driftwire.Server {
	if cfg == nil {
		cfg = NewConfig("", 8080, DefaultRateLimit())
	}

	limiter := ratelimit.New(server.LimiterConfig(cfg.RateLimit))
	registry := channel.New()

	return server.New(server.Config{
		Host:             cfg.Host,
		Port:             cfg.Port,
		PollInterval:     cfg.PollInterval,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		Logger:           cfg.Logger,
		OnConnect:        cfg.OnConnect,
		OnDisconnect:     cfg.OnDisconnect,
	}, limiter, registry)
}

// NewConfig builds a Config with the three parameters every deployment sets.
func NewConfig(host string, port int, limit RateLimit) *Config {
	return &Config{
		Host:      host,
		Port:      port,
		RateLimit: limit,
	}
}

// DefaultRateLimit is 100 messages per minute with a five-minute block.
func DefaultRateLimit() RateLimit {
	return RateLimit{
		MaxRequests:          ratelimit.DefaultMaxRequests,
		WindowSeconds:        int(ratelimit.DefaultWindow / time.Second),
		BlockDurationSeconds: int(ratelimit.DefaultBlockDuration / time.Second),
	}
}

// Package server implements the connection multiplexer: a single-goroutine
// event loop that owns the listening socket, every live connection, the
// channel registry, and the rate governor.
//
// The loop polls all sockets for readiness, accepts and upgrades new
// connections, reads and dispatches complete frames, and drains a control
// inbox through which the public API is serialized. Because exactly one
// goroutine touches the connection-indexed state, none of it is locked.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/driftwire/driftwire"
	"github.com/driftwire/driftwire/internal/channel"
	"github.com/driftwire/driftwire/ratelimit"
)

// OnConnectFn runs after a client completes the handshake.
type OnConnectFn func(clientID string)

// OnDisconnectFn runs after a client's teardown finishes.
type OnDisconnectFn func(clientID string)

// Config carries the multiplexer's construction parameters.
type Config struct {
	Host string
	Port int

	// PollInterval bounds each readiness wait; Stop is observed within one
	// interval.
	PollInterval time.Duration

	// HandshakeTimeout bounds the upgrade-request read after accept.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outbound frame write. Write errors are
	// swallowed per connection.
	WriteTimeout time.Duration

	Logger *slog.Logger

	// OnConnect and OnDisconnect run on the event-loop goroutine; keep them
	// fast and never call back into the server from them.
	OnConnect    OnConnectFn
	OnDisconnect OnDisconnectFn
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// conn is one live client: handle, identity, and its partial-frame buffer.
// Everything else about a client lives in maps keyed by id.
type conn struct {
	id  string
	nc  net.Conn
	fd  int
	buf []byte
}

// serverOp is a unit of work posted to the loop by the public API.
type serverOp struct {
	run  func()
	done chan struct{}
}

// Server is the multiplexer. The governor and registry are injected at
// construction and owned by the loop thereafter.
type Server struct {
	cfg  Config
	log  *slog.Logger
	disp *dispatcher

	limiter  *ratelimit.Limiter
	registry *channel.Registry

	ln         *net.TCPListener
	listenerFD int
	conns      map[string]*conn
	scratch    []byte

	ops chan serverOp

	mu       sync.Mutex // serializes Start/Stop transitions
	running  atomic.Bool
	loopDone chan struct{}
}

// New builds a stopped Server around its collaborators.
func New(cfg Config, limiter *ratelimit.Limiter, registry *channel.Registry) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:      cfg,
		log:      cfg.Logger,
		limiter:  limiter,
		registry: registry,
		conns:    make(map[string]*conn),
		scratch:  make([]byte, readChunkSize),
		ops:      make(chan serverOp, 32),
	}
	s.disp = &dispatcher{
		registry: registry,
		limiter:  limiter,
		ep:       s,
		log:      cfg.Logger,
	}
	return s
}

// Start binds the listener and launches the event loop. A bind failure is
// the only fatal startup condition.
func (s *Server) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return fmt.Errorf(driftwire.ErrServerAlreadyRunning)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	tcpLn := ln.(*net.TCPListener)

	fd, err := listenerFD(tcpLn)
	if err != nil {
		ln.Close()
		return fmt.Errorf("listener descriptor: %w", err)
	}

	s.ln = tcpLn
	s.listenerFD = fd
	s.loopDone = make(chan struct{})
	s.running.Store(true)
	go s.loop()

	s.log.Info("server started", "addr", ln.Addr().String())
	return nil
}

// Stop flips the running flag and waits for the loop to exit; the loop's
// shutdown closes every connection and the listener. Stopping a stopped
// server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return nil
	}
	s.running.Store(false)
	done := s.loopDone
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound listener address, nil before the first Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Broadcast frames data once and writes it to every member of channelName,
// or to every live connection when channelName is empty.
func (s *Server) Broadcast(ctx context.Context, channelName string, data []byte) error {
	return s.do(ctx, func() {
		s.disp.broadcast("", channelName, data)
	})
}

// Stats reports connection, channel, and governor counters.
func (s *Server) Stats(ctx context.Context) (driftwire.StatsReply, error) {
	var reply driftwire.StatsReply
	err := s.do(ctx, func() {
		reply = s.disp.statsReply()
	})
	return reply, err
}

// ResetClientLimit clears one client's rate-limit record.
func (s *Server) ResetClientLimit(ctx context.Context, clientID string) error {
	return s.do(ctx, func() {
		s.limiter.Reset(clientID)
		s.log.Info("rate limit reset", "client_id", clientID)
	})
}

// ResetAllLimits clears every rate-limit record.
func (s *Server) ResetAllLimits(ctx context.Context) error {
	return s.do(ctx, func() {
		s.limiter.ResetAll()
		s.log.Info("all rate limits reset")
	})
}

// ApplyRateLimit swaps the governor thresholds at runtime.
func (s *Server) ApplyRateLimit(ctx context.Context, limit driftwire.RateLimit) error {
	return s.do(ctx, func() {
		s.limiter.SetConfig(LimiterConfig(limit))
		s.log.Info("rate limit updated",
			"max_requests", limit.MaxRequests,
			"window_seconds", limit.WindowSeconds,
			"block_duration_seconds", limit.BlockDurationSeconds)
	})
}

// LimiterConfig converts the public threshold triple into governor config.
func LimiterConfig(limit driftwire.RateLimit) ratelimit.Config {
	return ratelimit.Config{
		MaxRequests:   limit.MaxRequests,
		Window:        time.Duration(limit.WindowSeconds) * time.Second,
		BlockDuration: time.Duration(limit.BlockDurationSeconds) * time.Second,
	}
}

// do posts run to the loop and waits for it to be serviced. All loop-owned
// state is reached exclusively through here or from the loop itself.
func (s *Server) do(ctx context.Context, run func()) error {
	if !s.running.Load() {
		return fmt.Errorf(driftwire.ErrServerNotRunning)
	}

	op := serverOp{run: run, done: make(chan struct{})}
	select {
	case s.ops <- op:
	case <-s.loopDone:
		return fmt.Errorf(driftwire.ErrServerNotRunning)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-op.done:
		return nil
	case <-s.loopDone:
		return fmt.Errorf(driftwire.ErrServerNotRunning)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) drainOps() {
	for {
		select {
		case op := <-s.ops:
			op.run()
			close(op.done)
		default:
			return
		}
	}
}

// writeFrame delivers one framed message. Errors are swallowed: the
// connection's next read event surfaces the failure and triggers teardown.
func (s *Server) writeFrame(id string, frame []byte) {
	c, ok := s.conns[id]
	if !ok {
		return
	}
	c.nc.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if _, err := c.nc.Write(frame); err != nil {
		s.log.Debug("write failed", "client_id", id, "error", err)
	}
}

func (s *Server) clientIDs() []string {
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	return ids
}

func (s *Server) clientCount() int {
	return len(s.conns)
}

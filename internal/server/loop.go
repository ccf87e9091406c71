package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/driftwire/driftwire"
	"github.com/driftwire/driftwire/internal/wire"
)

const (
	// readChunkSize is the per-read ceiling; partial frames accumulate in
	// the connection buffer across reads.
	readChunkSize = 4096

	// maxHandshakeBytes caps the upgrade request read after accept.
	maxHandshakeBytes = 8 << 10

	// readGrace bounds a read the poller already reported as ready.
	readGrace = 200 * time.Millisecond
)

// loop is the multiplexer heart. It alternates between draining the control
// inbox and one bounded readiness poll over the listener plus every live
// connection, then services whatever woke up.
func (s *Server) loop() {
	defer close(s.loopDone)
	defer s.shutdown()

	p := &poller{}
	for s.running.Load() {
		s.drainOps()

		listenerReady, ready, err := p.wait(s.listenerFD, s.conns, s.cfg.PollInterval)
		if err != nil {
			s.log.Error("readiness poll failed", "error", err)
			time.Sleep(s.cfg.PollInterval)
			continue
		}

		if listenerReady {
			s.accept()
		}
		for _, id := range ready {
			s.readConn(id)
		}
	}
}

// accept takes one pending connection and runs the upgrade. A request
// without the websocket key is left exactly as it arrived: no response, no
// registration, no close.
func (s *Server) accept() {
	nc, err := s.ln.Accept()
	if err != nil {
		s.log.Warn("accept failed", "error", err)
		return
	}

	request, err := readUpgradeRequest(nc, s.cfg.HandshakeTimeout)
	if err != nil {
		s.log.Debug("handshake read failed",
			"remote_addr", nc.RemoteAddr().String(), "error", err)
		nc.Close()
		return
	}

	if !wire.Negotiate(request, nc) {
		s.log.Debug("handshake rejected", "remote_addr", nc.RemoteAddr().String())
		return
	}

	fd, err := connFD(nc)
	if err != nil {
		s.log.Warn("connection descriptor", "error", err)
		nc.Close()
		return
	}

	c := &conn{id: uuid.New().String(), nc: nc, fd: fd}
	s.conns[c.id] = c
	if s.cfg.OnConnect != nil {
		s.cfg.OnConnect(c.id)
	}
	s.log.Debug("client connected",
		"client_id", c.id, "remote_addr", nc.RemoteAddr().String())
}

// readUpgradeRequest reads until the blank line ending the request headers.
func readUpgradeRequest(nc net.Conn, timeout time.Duration) ([]byte, error) {
	nc.SetReadDeadline(time.Now().Add(timeout))
	defer nc.SetReadDeadline(time.Time{})

	buf := make([]byte, 0, 1024)
	chunk := make([]byte, 1024)
	for {
		n, err := nc.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if bytes.Contains(buf, []byte("\r\n\r\n")) {
				return buf, nil
			}
			if len(buf) > maxHandshakeBytes {
				return nil, errors.New("handshake request too large")
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// readConn pulls one chunk from a readable connection and dispatches every
// complete frame in the buffer. A failed or empty read means the peer is
// gone.
func (s *Server) readConn(id string) {
	c, ok := s.conns[id]
	if !ok {
		// Torn down earlier in this same tick.
		return
	}

	c.nc.SetReadDeadline(time.Now().Add(readGrace))
	n, err := c.nc.Read(s.scratch)
	if err != nil || n == 0 {
		s.teardown(c)
		return
	}

	c.buf = append(c.buf, s.scratch[:n]...)
	s.drainFrames(c)
}

// drainFrames decodes and handles frames until the buffer holds only a
// partial one.
func (s *Server) drainFrames(c *conn) {
	for {
		payload, advance, err := wire.Decode(c.buf)
		if err == wire.ErrIncompleteFrame {
			return
		}
		if err != nil {
			s.log.Warn("dropping client", "client_id", c.id, "error", err)
			s.teardown(c)
			return
		}

		if advance == len(c.buf) {
			c.buf = c.buf[:0]
		} else {
			c.buf = append(c.buf[:0], c.buf[advance:]...)
		}

		s.handleFrame(c, payload)
	}
}

// handleFrame charges the governor for one inbound frame, then decodes and
// dispatches it. Undecodable payloads are dropped without penalty to the
// connection.
func (s *Server) handleFrame(c *conn, payload []byte) {
	if !s.limiter.CheckAndHit(c.id) {
		s.log.Debug("rate limit rejection", "client_id", c.id)
		s.disp.rejectRateLimited(c.id)
		return
	}

	var msg driftwire.Envelope
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.log.Debug("undecodable message dropped", "client_id", c.id)
		return
	}

	s.disp.handle(c.id, msg)
}

// teardown runs the full disconnect sequence: governor record cleared,
// channel memberships dropped, connection removed from the live set and
// closed.
func (s *Server) teardown(c *conn) {
	s.limiter.Reset(c.id)
	s.registry.LeaveAll(c.id)
	delete(s.conns, c.id)
	c.nc.Close()
	if s.cfg.OnDisconnect != nil {
		s.cfg.OnDisconnect(c.id)
	}
	s.log.Debug("client disconnected", "client_id", c.id)
}

// shutdown tears down every connection and releases the listener. Runs on
// the loop goroutine as it exits.
func (s *Server) shutdown() {
	for _, c := range s.conns {
		s.teardown(c)
	}
	s.ln.Close()
	s.log.Info("server stopped")
}

// connFD extracts the OS descriptor backing an accepted connection so the
// poller can watch it.
func connFD(nc net.Conn) (int, error) {
	tcp, ok := nc.(*net.TCPConn)
	if !ok {
		return -1, errors.New("not a TCP connection")
	}
	raw, err := tcp.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := raw.Control(func(f uintptr) { fd = int(f) }); err != nil {
		return -1, err
	}
	return fd, nil
}

func listenerFD(ln *net.TCPListener) (int, error) {
	raw, err := ln.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	if err := raw.Control(func(f uintptr) { fd = int(f) }); err != nil {
		return -1, err
	}
	return fd, nil
}

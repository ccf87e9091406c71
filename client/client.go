// Package client implements the dialing side of the protocol: it performs
// the upgrade handshake, masks every outbound frame, and decodes inbound
// ones.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/driftwire/driftwire"
	"github.com/driftwire/driftwire/internal/wire"
)

const maxResponseBytes = 8 << 10

// Client is a single connection. It is not safe for concurrent use; give
// each goroutine its own.
type Client struct {
	nc  net.Conn
	buf []byte
}

// Dial connects to addr, sends the upgrade request for path, and verifies
// the accept token before returning.
func Dial(ctx context.Context, addr, path string) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		nc.SetDeadline(deadline)
		defer nc.SetDeadline(time.Time{})
	}

	key, err := wire.ClientKey()
	if err != nil {
		nc.Close()
		return nil, err
	}

	if _, err := nc.Write(wire.ClientHandshake(addr, path, key)); err != nil {
		nc.Close()
		return nil, fmt.Errorf("handshake write: %w", err)
	}

	response, rest, err := readUpgradeResponse(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("handshake read: %w", err)
	}
	if !wire.VerifyAccept(response, key) {
		nc.Close()
		return nil, fmt.Errorf(driftwire.ErrHandshakeRejected)
	}

	return &Client{nc: nc, buf: rest}, nil
}

// readUpgradeResponse reads through the header-terminating blank line and
// returns any frame bytes that followed it in the same segment.
func readUpgradeResponse(nc net.Conn) (response, rest []byte, err error) {
	var buf []byte
	chunk := make([]byte, 1024)
	for {
		if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
			end := i + 4
			return buf[:end], buf[end:], nil
		}
		if len(buf) > maxResponseBytes {
			return nil, nil, fmt.Errorf("upgrade response too large")
		}
		n, rerr := nc.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if rerr != nil {
			return nil, nil, rerr
		}
	}
}

// Send marshals v and writes it as one masked frame.
func (c *Client) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	frame, err := wire.EncodeMasked(data)
	if err != nil {
		return err
	}
	if _, err := c.nc.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Join subscribes this connection to a channel.
func (c *Client) Join(channelName string) error {
	return c.Send(driftwire.Envelope{Type: driftwire.TypeJoin, Channel: channelName})
}

// Leave unsubscribes this connection from a channel.
func (c *Client) Leave(channelName string) error {
	return c.Send(driftwire.Envelope{Type: driftwire.TypeLeave, Channel: channelName})
}

// Publish sends data to every other member of a channel.
func (c *Client) Publish(channelName string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	return c.Send(driftwire.Envelope{
		Type:    driftwire.TypeMessage,
		Channel: channelName,
		Data:    raw,
	})
}

// RequestStats asks the server for its statistics snapshot; the reply
// arrives through Receive.
func (c *Client) RequestStats() error {
	return c.Send(driftwire.Envelope{Type: driftwire.TypeStats})
}

// Receive blocks until one complete frame arrives and returns its payload.
// A zero timeout waits indefinitely.
func (c *Client) Receive(timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		c.nc.SetReadDeadline(time.Now().Add(timeout))
	} else {
		c.nc.SetReadDeadline(time.Time{})
	}

	chunk := make([]byte, 4096)
	for {
		payload, advance, err := wire.Decode(c.buf)
		if err == nil {
			if advance == len(c.buf) {
				c.buf = c.buf[:0]
			} else {
				c.buf = append(c.buf[:0], c.buf[advance:]...)
			}
			return payload, nil
		}
		if err != wire.ErrIncompleteFrame {
			return nil, err
		}

		n, rerr := c.nc.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
		}
		if rerr != nil {
			return nil, rerr
		}
	}
}

// ReceiveJSON decodes the next frame's payload into v.
func (c *Client) ReceiveJSON(timeout time.Duration, v any) error {
	payload, err := c.Receive(timeout)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

// Close tears the connection down.
func (c *Client) Close() error {
	return c.nc.Close()
}

// Package wire implements the WebSocket wire format: the opening handshake
// and the frame codec, for both the server and client side. Everything here
// is pure byte manipulation plus the single handshake-response write; no
// connection state lives in this package.
package wire

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// maxPayloadSize caps a single frame's payload.
	maxPayloadSize = 10 * 1024 * 1024

	finTextFrame = 0x81 // FIN=1, opcode=1 (text)
	maskBit      = 0x80
)

var (
	// ErrIncompleteFrame reports that the input does not yet hold a whole
	// frame. Callers buffer the bytes and retry after the next read.
	ErrIncompleteFrame = errors.New("incomplete frame")

	// ErrFrameTooLarge reports a declared payload length above the cap.
	ErrFrameTooLarge = errors.New("frame exceeds maximum payload size")
)

// Encode wraps payload in a final, unmasked text frame, the form used for
// all server-to-client traffic.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("payload size %d exceeds maximum %d bytes", len(payload), maxPayloadSize)
	}

	out := make([]byte, 0, 14+len(payload))
	out = append(out, finTextFrame)
	out = appendLength(out, len(payload), false)
	return append(out, payload...), nil
}

// EncodeMasked wraps payload in a final, masked text frame, as the protocol
// requires of client-to-server traffic. A fresh 4-byte mask key is drawn for
// every frame.
func EncodeMasked(payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("payload size %d exceeds maximum %d bytes", len(payload), maxPayloadSize)
	}

	var key [4]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, fmt.Errorf("mask key: %w", err)
	}

	out := make([]byte, 0, 14+len(payload))
	out = append(out, finTextFrame)
	out = appendLength(out, len(payload), true)
	out = append(out, key[:]...)
	start := len(out)
	out = append(out, payload...)
	maskBytes(out[start:], key)
	return out, nil
}

// Decode extracts the payload of the first complete frame in raw, unmasking
// it when the mask bit is set. advance is the encoded size of that frame so
// callers can drain a buffer holding several frames.
//
// ErrIncompleteFrame means raw holds fewer bytes than the frame declares:
// "not yet complete", not a failure. ErrFrameTooLarge means the declared
// length exceeds the cap and the connection should be dropped.
func Decode(raw []byte) (payload []byte, advance int, err error) {
	if len(raw) < 2 {
		return nil, 0, ErrIncompleteFrame
	}

	masked := raw[1]&maskBit != 0
	length := int(raw[1] & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(raw) < offset+2 {
			return nil, 0, ErrIncompleteFrame
		}
		length = int(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	case 127:
		if len(raw) < offset+8 {
			return nil, 0, ErrIncompleteFrame
		}
		declared := binary.BigEndian.Uint64(raw[offset:])
		if declared > maxPayloadSize {
			return nil, 0, ErrFrameTooLarge
		}
		length = int(declared)
		offset += 8
	}

	var key [4]byte
	if masked {
		if len(raw) < offset+4 {
			return nil, 0, ErrIncompleteFrame
		}
		copy(key[:], raw[offset:offset+4])
		offset += 4
	}

	if len(raw) < offset+length {
		return nil, 0, ErrIncompleteFrame
	}

	payload = make([]byte, length)
	copy(payload, raw[offset:offset+length])
	if masked {
		maskBytes(payload, key)
	}
	return payload, offset + length, nil
}

// appendLength writes the second header byte and any extended length field.
// The 7-bit field carries the length directly below 126, the value 126 plus
// a 2-byte big-endian length up to 65535, and 127 plus an 8-byte big-endian
// length beyond that.
func appendLength(out []byte, n int, masked bool) []byte {
	var flag byte
	if masked {
		flag = maskBit
	}
	switch {
	case n < 126:
		return append(out, flag|byte(n))
	case n <= 0xFFFF:
		out = append(out, flag|126)
		return binary.BigEndian.AppendUint16(out, uint16(n))
	default:
		out = append(out, flag|127)
		return binary.BigEndian.AppendUint64(out, uint64(n))
	}
}

// maskBytes XORs data in place with key repeating every 4 bytes.
func maskBytes(data []byte, key [4]byte) {
	for i := range data {
		data[i] ^= key[i%4]
	}
}

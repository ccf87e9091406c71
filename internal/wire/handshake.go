package wire

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// acceptGUID is the fixed GUID concatenated with the client key to derive
// the accept token.
const acceptGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var keyPattern = regexp.MustCompile(`Sec-WebSocket-Key: ([^\r\n]+)`)

// AcceptKey derives the Sec-WebSocket-Accept token for a client key.
func AcceptKey(key string) string {
	sum := sha1.Sum([]byte(key + acceptGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Negotiate upgrades a raw HTTP request into an established WebSocket
// connection by writing the 101 response. When the request carries no
// Sec-WebSocket-Key header, nothing is written and false is returned; the
// caller leaves the connection unregistered and unanswered.
func Negotiate(request []byte, conn io.Writer) bool {
	m := keyPattern.FindSubmatch(request)
	if m == nil {
		return false
	}
	key := strings.TrimSpace(string(m[1]))

	response := fmt.Sprintf(
		"HTTP/1.1 101 Switching Protocols\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Accept: %s\r\n\r\n",
		AcceptKey(key))
	_, err := io.WriteString(conn, response)
	return err == nil
}

// ClientKey returns a fresh random nonce for the Sec-WebSocket-Key header.
func ClientKey() (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("handshake nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(nonce[:]), nil
}

// ClientHandshake builds the upgrade request a client sends for host and
// path, carrying key.
func ClientHandshake(host, path, key string) []byte {
	return fmt.Appendf(nil,
		"GET %s HTTP/1.1\r\n"+
			"Host: %s\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Key: %s\r\n"+
			"Sec-WebSocket-Version: 13\r\n\r\n",
		path, host, key)
}

// VerifyAccept reports whether response is a 101 upgrade whose accept token
// matches key.
func VerifyAccept(response []byte, key string) bool {
	s := string(response)
	if !strings.Contains(s, " 101 ") {
		return false
	}
	return strings.Contains(s, "Sec-WebSocket-Accept: "+AcceptKey(key))
}

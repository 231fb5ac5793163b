package ws

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"strings"

	"github.com/open-foundation-team/apple-music-remote/internal/web"
)

// websocketGUID is the fixed key-derivation constant from RFC 6455.
const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// HandshakeError describes a rejected upgrade request.
type HandshakeError struct {
	Reason string
}

func (e *HandshakeError) Error() string {
	return "websocket handshake failed: " + e.Reason
}

// Upgrade validates the opening request and completes the handshake. A
// rejected request is answered with a structured 400 before the error
// returns; on success the socket has switched to frame exchange.
func Upgrade(sock net.Conn, req *web.Request) error {
	if err := validateUpgrade(req); err != nil {
		resp := web.ErrorResponse(web.StatusBadRequest, err.Error())
		web.ApplyCORS(resp, req.Header.Get("Origin"))
		_, _ = resp.WriteTo(sock)
		return err
	}

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + acceptKey(req.Header.Get("Sec-WebSocket-Key")) + "\r\n" +
		"\r\n"
	if _, err := sock.Write([]byte(response)); err != nil {
		return fmt.Errorf("failed to write 101 response: %w", err)
	}
	return nil
}

// validateUpgrade checks the headers RFC 6455 requires of the opening
// request.
func validateUpgrade(req *web.Request) error {
	if req.Method != "GET" {
		return &HandshakeError{Reason: fmt.Sprintf("invalid method: %s (expected GET)", req.Method)}
	}
	if upgrade := strings.ToLower(req.Header.Get("Upgrade")); upgrade != "websocket" {
		return &HandshakeError{Reason: fmt.Sprintf("invalid Upgrade header: %q (expected websocket)", upgrade)}
	}
	if connection := strings.ToLower(req.Header.Get("Connection")); !strings.Contains(connection, "upgrade") {
		return &HandshakeError{Reason: fmt.Sprintf("invalid Connection header: %q (expected upgrade)", connection)}
	}
	if version := req.Header.Get("Sec-WebSocket-Version"); version != "13" {
		return &HandshakeError{Reason: fmt.Sprintf("invalid Sec-WebSocket-Version: %q (expected 13)", version)}
	}
	if req.Header.Get("Sec-WebSocket-Key") == "" {
		return &HandshakeError{Reason: "missing Sec-WebSocket-Key header"}
	}
	return nil
}

// acceptKey derives the Sec-WebSocket-Accept value for a client key.
func acceptKey(key string) string {
	sum := sha1.Sum([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(sum[:])
}

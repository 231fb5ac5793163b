package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WebSocket frame opcodes (RFC 6455 §5.2)
const (
	OpcodeContinuation = 0x0
	OpcodeText         = 0x1
	OpcodeBinary       = 0x2
	OpcodeClose        = 0x8
	OpcodePing         = 0x9
	OpcodePong         = 0xA
)

// WebSocket close codes used by the server
const (
	CloseNormal          = 1000
	ClosePolicyViolation = 1008
	CloseMessageTooBig   = 1009
)

// maxControlPayload is the RFC 6455 cap on control frame payloads.
const maxControlPayload = 125

// ErrFrameTooLarge is returned by ReadFrame before any payload allocation
// when the declared length exceeds the caller's limit.
var ErrFrameTooLarge = errors.New("frame payload exceeds limit")

// Frame represents one WebSocket protocol unit.
type Frame struct {
	FIN     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  byte
	Masked  bool
	Length  uint64
	MaskKey [4]byte
	Payload []byte
}

// IsControl reports whether the frame is a control frame (close/ping/pong).
func (f *Frame) IsControl() bool {
	return f.Opcode&0x8 != 0
}

// ReadFrame reads a WebSocket frame from the reader. Client frames may be
// masked; the returned payload is always unmasked. A declared payload
// length over maxPayload yields ErrFrameTooLarge without reading the
// payload, so callers can close with 1009 instead of allocating it.
func ReadFrame(r io.Reader, maxPayload uint64) (*Frame, error) {
	frame := &Frame{}

	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	// First byte: FIN, RSV1-3, opcode
	frame.FIN = (header[0] & 0x80) != 0
	frame.RSV1 = (header[0] & 0x40) != 0
	frame.RSV2 = (header[0] & 0x20) != 0
	frame.RSV3 = (header[0] & 0x10) != 0
	frame.Opcode = header[0] & 0x0F

	// Second byte: mask bit, 7-bit length
	frame.Masked = (header[1] & 0x80) != 0
	payloadLen := uint64(header[1] & 0x7F)

	switch payloadLen {
	case 126:
		extLen := make([]byte, 2)
		if _, err := io.ReadFull(r, extLen); err != nil {
			return nil, fmt.Errorf("failed to read extended length: %w", err)
		}
		frame.Length = uint64(binary.BigEndian.Uint16(extLen))
	case 127:
		extLen := make([]byte, 8)
		if _, err := io.ReadFull(r, extLen); err != nil {
			return nil, fmt.Errorf("failed to read extended length: %w", err)
		}
		frame.Length = binary.BigEndian.Uint64(extLen)
	default:
		frame.Length = payloadLen
	}

	if maxPayload > 0 && frame.Length > maxPayload {
		return frame, ErrFrameTooLarge
	}

	if frame.Masked {
		if _, err := io.ReadFull(r, frame.MaskKey[:]); err != nil {
			return nil, fmt.Errorf("failed to read mask key: %w", err)
		}
	}

	if frame.Length > 0 {
		payload := make([]byte, frame.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		if frame.Masked {
			maskPayload(payload, frame.MaskKey)
		}
		frame.Payload = payload
	}

	return frame, nil
}

// maskPayload applies the XOR mask in place. Masking and unmasking are the
// same operation.
func maskPayload(payload []byte, maskKey [4]byte) {
	for i := range payload {
		payload[i] ^= maskKey[i%4]
	}
}

// EncodeFrame wraps payload in a single unmasked frame (server-to-client
// frames are never masked).
func EncodeFrame(opcode byte, payload []byte) []byte {
	payloadLen := len(payload)

	frame := make([]byte, 0, payloadLen+10)
	frame = append(frame, 0x80|opcode) // FIN set, no fragmentation

	switch {
	case payloadLen < 126:
		frame = append(frame, byte(payloadLen))
	case payloadLen < 65536:
		frame = append(frame, 126, byte(payloadLen>>8), byte(payloadLen&0xFF))
	default:
		frame = append(frame, 127)
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(payloadLen))
		frame = append(frame, ext[:]...)
	}

	return append(frame, payload...)
}

// EncodeClose builds a close frame carrying a status code and reason. The
// reason is truncated to keep the control payload within the RFC limit.
func EncodeClose(code uint16, reason string) []byte {
	if len(reason) > maxControlPayload-2 {
		reason = reason[:maxControlPayload-2]
	}
	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload[:2], code)
	copy(payload[2:], reason)
	return EncodeFrame(OpcodeClose, payload)
}

// ParseClose extracts the status code and reason from a close payload.
// An empty payload means no code was sent (treated as normal closure).
func ParseClose(payload []byte) (code uint16, reason string) {
	if len(payload) < 2 {
		return CloseNormal, ""
	}
	return binary.BigEndian.Uint16(payload[:2]), string(payload[2:])
}

// OpcodeString returns a human-readable opcode name
func (f *Frame) OpcodeString() string {
	switch f.Opcode {
	case OpcodeContinuation:
		return "Continuation"
	case OpcodeText:
		return "Text"
	case OpcodeBinary:
		return "Binary"
	case OpcodeClose:
		return "Close"
	case OpcodePing:
		return "Ping"
	case OpcodePong:
		return "Pong"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", f.Opcode)
	}
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{FIN=%v, Opcode=%s, Masked=%v, Length=%d}",
		f.FIN, f.OpcodeString(), f.Masked, f.Length)
}

package protocol

import (
	"encoding/json"
	"fmt"
)

// Client-to-server message types
const (
	TypeAuth         = "auth"
	TypeCommand      = "command"
	TypeSetVolume    = "setVolume"
	TypeRequestState = "requestState"
	TypePing         = "ping"
)

// Server-to-client message types. TypeAuth doubles as the auth result.
const (
	TypeHello    = "hello"
	TypePlayback = "playback"
	TypeAck      = "ack"
	TypeError    = "error"
	TypePong     = "pong"
)

// ClientMessage is the envelope for everything a client sends over the
// push channel. Fields beyond Type are populated per message type.
type ClientMessage struct {
	Type      string   `json:"type"`
	Token     string   `json:"token,omitempty"`
	Action    string   `json:"action,omitempty"`
	Target    string   `json:"target,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

// DecodeClientMessage parses a text frame payload into a client message.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return &msg, nil
}

// Validate checks the per-type required fields. A missing token on an
// auth message is not a schema error; it simply fails verification.
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case TypeAuth, TypeRequestState, TypePing:
		return nil
	case TypeCommand:
		if m.Action == "" {
			return fmt.Errorf("command message requires an action")
		}
		return nil
	case TypeSetVolume:
		if m.Target == "" {
			return fmt.Errorf("setVolume message requires a target")
		}
		if m.Value == nil {
			return fmt.Errorf("setVolume message requires a value")
		}
		return nil
	case "":
		return fmt.Errorf("message type is required")
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
}

// ServerMessage is the envelope for everything the server pushes to a
// client. Success is a pointer so a false result still serializes.
type ServerMessage struct {
	Type              string          `json:"type"`
	Success           *bool           `json:"success,omitempty"`
	Message           string          `json:"message,omitempty"`
	Action            string          `json:"action,omitempty"`
	Payload           any             `json:"payload,omitempty"`
	HeartbeatInterval int             `json:"heartbeatInterval,omitempty"`
	Server            *ServerIdentity `json:"server,omitempty"`
	RequestID         string          `json:"requestId,omitempty"`
}

// Encode serializes the message for a text frame.
func (m *ServerMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Type, err)
	}
	return data, nil
}

// BuildHello constructs the greeting sent once after authentication. The
// heartbeat interval tells clients how often to expect liveness probes.
func BuildHello(identity ServerIdentity, heartbeatInterval int) *ServerMessage {
	return &ServerMessage{
		Type:              TypeHello,
		Server:            &identity,
		HeartbeatInterval: heartbeatInterval,
	}
}

// BuildAuthResult constructs the acknowledgement for an auth attempt.
func BuildAuthResult(success bool, message string) *ServerMessage {
	return &ServerMessage{
		Type:    TypeAuth,
		Success: &success,
		Message: message,
	}
}

// BuildPlayback constructs a playback state push.
func BuildPlayback(payload any) *ServerMessage {
	return &ServerMessage{
		Type:    TypePlayback,
		Payload: payload,
	}
}

// BuildAck constructs a command completion, echoing the client's
// request ID when one was supplied.
func BuildAck(action, requestID string, payload any) *ServerMessage {
	return &ServerMessage{
		Type:      TypeAck,
		Action:    action,
		Payload:   payload,
		RequestID: requestID,
	}
}

// BuildRejection constructs an error reply.
func BuildRejection(message, requestID string) *ServerMessage {
	return &ServerMessage{
		Type:      TypeError,
		Message:   message,
		RequestID: requestID,
	}
}

// BuildPong constructs the reply to an application-level ping, echoing
// the client's request ID when one was supplied.
func BuildPong(requestID string) *ServerMessage {
	return &ServerMessage{Type: TypePong, RequestID: requestID}
}

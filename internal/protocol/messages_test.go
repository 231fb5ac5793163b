package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
		verify  func(t *testing.T, msg *ClientMessage)
	}{
		{
			name: "auth message",
			data: `{"type":"auth","token":"a1b2c3"}`,
			verify: func(t *testing.T, msg *ClientMessage) {
				if msg.Type != TypeAuth {
					t.Errorf("type = %q, want %q", msg.Type, TypeAuth)
				}
				if msg.Token != "a1b2c3" {
					t.Errorf("token = %q, want %q", msg.Token, "a1b2c3")
				}
			},
		},
		{
			name: "command with request id",
			data: `{"type":"command","action":"next","requestId":"req-7"}`,
			verify: func(t *testing.T, msg *ClientMessage) {
				if msg.Action != "next" {
					t.Errorf("action = %q, want %q", msg.Action, "next")
				}
				if msg.RequestID != "req-7" {
					t.Errorf("requestId = %q, want %q", msg.RequestID, "req-7")
				}
			},
		},
		{
			name: "setVolume distinguishes zero from absent",
			data: `{"type":"setVolume","target":"music","value":0}`,
			verify: func(t *testing.T, msg *ClientMessage) {
				if msg.Value == nil {
					t.Fatal("value should be present")
				}
				if *msg.Value != 0 {
					t.Errorf("value = %v, want 0", *msg.Value)
				}
			},
		},
		{
			name: "unknown fields ignored",
			data: `{"type":"ping","extra":true}`,
			verify: func(t *testing.T, msg *ClientMessage) {
				if msg.Type != TypePing {
					t.Errorf("type = %q, want %q", msg.Type, TypePing)
				}
			},
		},
		{
			name:    "not json",
			data:    `play next track`,
			wantErr: true,
		},
		{
			name:    "json array instead of object",
			data:    `["auth","token"]`,
			wantErr: true,
		},
		{
			name:    "wrong field type",
			data:    `{"type":"setVolume","target":"music","value":"loud"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeClientMessage([]byte(tt.data))

			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeClientMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && tt.verify != nil {
				tt.verify(t, msg)
			}
		})
	}
}

func TestClientMessage_Validate(t *testing.T) {
	value := 42.0

	tests := []struct {
		name    string
		msg     ClientMessage
		wantErr string
	}{
		{
			name: "auth without token is schema-valid",
			msg:  ClientMessage{Type: TypeAuth},
		},
		{
			name: "ping",
			msg:  ClientMessage{Type: TypePing},
		},
		{
			name: "requestState",
			msg:  ClientMessage{Type: TypeRequestState},
		},
		{
			name: "command with action",
			msg:  ClientMessage{Type: TypeCommand, Action: "play"},
		},
		{
			name:    "command without action",
			msg:     ClientMessage{Type: TypeCommand},
			wantErr: "requires an action",
		},
		{
			name: "setVolume complete",
			msg:  ClientMessage{Type: TypeSetVolume, Target: "music", Value: &value},
		},
		{
			name:    "setVolume without target",
			msg:     ClientMessage{Type: TypeSetVolume, Value: &value},
			wantErr: "requires a target",
		},
		{
			name:    "setVolume without value",
			msg:     ClientMessage{Type: TypeSetVolume, Target: "system"},
			wantErr: "requires a value",
		},
		{
			name:    "missing type",
			msg:     ClientMessage{},
			wantErr: "type is required",
		},
		{
			name:    "unknown type",
			msg:     ClientMessage{Type: "reboot"},
			wantErr: "unknown message type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestServerMessage_Encode(t *testing.T) {
	tests := []struct {
		name   string
		msg    *ServerMessage
		verify func(t *testing.T, decoded map[string]any)
	}{
		{
			name: "hello carries identity and heartbeat interval",
			msg: BuildHello(ServerIdentity{
				Name:          "Apple Music Remote",
				Version:       "1.2.0",
				HTTPPort:      10767,
				WSPort:        10768,
				RequiresToken: true,
			}, 20),
			verify: func(t *testing.T, decoded map[string]any) {
				if decoded["type"] != TypeHello {
					t.Errorf("type = %v, want hello", decoded["type"])
				}
				if decoded["heartbeatInterval"] != float64(20) {
					t.Errorf("heartbeatInterval = %v, want 20", decoded["heartbeatInterval"])
				}
				server, ok := decoded["server"].(map[string]any)
				if !ok {
					t.Fatal("server field missing")
				}
				if server["name"] != "Apple Music Remote" {
					t.Errorf("server.name = %v", server["name"])
				}
				if server["requiresToken"] != true {
					t.Errorf("server.requiresToken = %v, want true", server["requiresToken"])
				}
			},
		},
		{
			name: "failed auth result keeps success field",
			msg:  BuildAuthResult(false, "invalid token"),
			verify: func(t *testing.T, decoded map[string]any) {
				success, present := decoded["success"]
				if !present {
					t.Fatal("success=false must not be dropped from the wire format")
				}
				if success != false {
					t.Errorf("success = %v, want false", success)
				}
				if decoded["message"] != "invalid token" {
					t.Errorf("message = %v", decoded["message"])
				}
			},
		},
		{
			name: "ack echoes request id",
			msg:  BuildAck("pause", "req-12", map[string]string{"state": "paused"}),
			verify: func(t *testing.T, decoded map[string]any) {
				if decoded["type"] != TypeAck {
					t.Errorf("type = %v, want ack", decoded["type"])
				}
				if decoded["action"] != "pause" {
					t.Errorf("action = %v, want pause", decoded["action"])
				}
				if decoded["requestId"] != "req-12" {
					t.Errorf("requestId = %v, want req-12", decoded["requestId"])
				}
			},
		},
		{
			name: "error reply",
			msg:  BuildRejection("unknown action: rewind", ""),
			verify: func(t *testing.T, decoded map[string]any) {
				if decoded["type"] != TypeError {
					t.Errorf("type = %v, want error", decoded["type"])
				}
				if _, present := decoded["requestId"]; present {
					t.Error("empty requestId should be omitted")
				}
			},
		},
		{
			name: "pong without request id is minimal",
			msg:  BuildPong(""),
			verify: func(t *testing.T, decoded map[string]any) {
				if len(decoded) != 1 {
					t.Errorf("pong should carry only the type field, got %v", decoded)
				}
			},
		},
		{
			name: "pong echoes request id",
			msg:  BuildPong("req-3"),
			verify: func(t *testing.T, decoded map[string]any) {
				if decoded["requestId"] != "req-3" {
					t.Errorf("requestId = %v, want req-3", decoded["requestId"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.msg.Encode()
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			var decoded map[string]any
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("encoded message is not valid JSON: %v", err)
			}

			tt.verify(t, decoded)
		})
	}
}

func TestBuildPlayback_PayloadPassesThroughOpaque(t *testing.T) {
	// The envelope must not reshape whatever the playback source hands
	// over; clients see the payload exactly as produced.
	payload := map[string]any{
		"state":  "playing",
		"title":  "Karma Police",
		"volume": 35,
	}

	data, err := BuildPlayback(payload).Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var decoded struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != TypePlayback {
		t.Errorf("type = %q, want playback", decoded.Type)
	}
	if decoded.Payload["title"] != "Karma Police" {
		t.Errorf("payload.title = %v", decoded.Payload["title"])
	}
	if decoded.Payload["volume"] != float64(35) {
		t.Errorf("payload.volume = %v", decoded.Payload["volume"])
	}
}

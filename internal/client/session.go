package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/open-foundation-team/apple-music-remote/internal/player"
	"github.com/open-foundation-team/apple-music-remote/internal/protocol"
)

// writeWait bounds a single write on the push channel.
const writeWait = 10 * time.Second

// AuthError is an authentication rejection from the server.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "authentication rejected: " + e.Message
}

// serverEnvelope mirrors the server message shape with a raw payload so
// snapshots decode lazily.
type serverEnvelope struct {
	Type              string                   `json:"type"`
	Success           *bool                    `json:"success"`
	Message           string                   `json:"message"`
	Payload           json.RawMessage          `json:"payload"`
	HeartbeatInterval int                      `json:"heartbeatInterval"`
	Server            *protocol.ServerIdentity `json:"server"`
	RequestID         string                   `json:"requestId"`
}

// Session is an authenticated connection to the push channel. It
// delivers playback pushes on Snapshots until the connection ends;
// mutations go through the HTTP API, which broadcasts back here.
type Session struct {
	conn      *websocket.Conn
	identity  protocol.ServerIdentity
	heartbeat time.Duration
	latest    player.Snapshot

	snapshots chan player.Snapshot
	done      chan struct{}

	writeMu   sync.Mutex // one client write at a time
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

// Connect dials the push channel, authenticates and consumes the
// greeting sequence (auth ack, hello, initial snapshot). An invalid
// token yields an *AuthError.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	url := "ws://" + net.JoinHostPort(c.host, strconv.Itoa(c.wsPort)) + "/"
	dialer := websocket.Dialer{HandshakeTimeout: DefaultTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial push channel: %w", err)
	}

	deadline := time.Now().Add(DefaultTimeout)
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)

	if err := conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeAuth, Token: c.token}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to send auth message: %w", err)
	}

	ack, err := readEnvelope(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if ack.Type != protocol.TypeAuth {
		_ = conn.Close()
		return nil, fmt.Errorf("greeting started with %q message, want auth", ack.Type)
	}
	if ack.Success == nil || !*ack.Success {
		_ = conn.Close()
		return nil, &AuthError{Message: ack.Message}
	}

	hello, err := readEnvelope(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if hello.Type != protocol.TypeHello || hello.Server == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("greeting continued with %q message, want hello", hello.Type)
	}

	playback, err := readEnvelope(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if playback.Type != protocol.TypePlayback {
		_ = conn.Close()
		return nil, fmt.Errorf("greeting ended with %q message, want playback", playback.Type)
	}

	s := &Session{
		conn:      conn,
		identity:  *hello.Server,
		heartbeat: time.Duration(hello.HeartbeatInterval) * time.Second,
		snapshots: make(chan player.Snapshot, 8),
		done:      make(chan struct{}),
	}
	if len(playback.Payload) > 0 {
		_ = json.Unmarshal(playback.Payload, &s.latest)
	}

	// The server pings quiet connections every heartbeat interval, so
	// a silent stretch of two intervals means the link is gone.
	readWait := 2*s.heartbeat + writeWait
	if s.heartbeat <= 0 {
		readWait = 90 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	_ = conn.SetWriteDeadline(time.Time{})
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	go s.readLoop(readWait)

	return s, nil
}

func readEnvelope(conn *websocket.Conn) (*serverEnvelope, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read greeting: %w", err)
	}
	var env serverEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode greeting message %q: %w", data, err)
	}
	return &env, nil
}

// Identity returns the server identity from the hello message.
func (s *Session) Identity() protocol.ServerIdentity {
	return s.identity
}

// Latest returns the snapshot delivered with the greeting.
func (s *Session) Latest() player.Snapshot {
	return s.latest
}

// Snapshots delivers playback pushes. The channel closes when the
// connection ends; Err reports why.
func (s *Session) Snapshots() <-chan player.Snapshot {
	return s.snapshots
}

// RequestState asks the server for a fresh snapshot, which arrives as a
// regular push on Snapshots.
func (s *Session) RequestState() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(protocol.ClientMessage{Type: protocol.TypeRequestState})
}

// Err reports why the session ended. It is nil after a clean close and
// meaningful only once Snapshots has closed.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once and concurrently with a blocked Snapshots read.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = s.conn.Close()
	})
	return err
}

func (s *Session) readLoop(readWait time.Duration) {
	defer close(s.snapshots)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Closed from our side; not an error.
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					s.setErr(err)
				}
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readWait))

		var env serverEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type != protocol.TypePlayback || len(env.Payload) == 0 {
			continue
		}
		var snap player.Snapshot
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			continue
		}
		s.deliver(snap)
	}
}

// deliver queues a snapshot without ever blocking the read loop. When
// the consumer lags, the oldest buffered snapshot gives way: state
// pushes are latest-wins.
func (s *Session) deliver(snap player.Snapshot) {
	select {
	case s.snapshots <- snap:
		return
	default:
	}
	select {
	case <-s.snapshots:
	default:
	}
	select {
	case s.snapshots <- snap:
	default:
	}
}

func (s *Session) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

package ws

import (
	"bytes"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-foundation-team/apple-music-remote/internal/logging"
	"github.com/open-foundation-team/apple-music-remote/internal/protocol"
)

// connState tracks the authentication lifecycle. Transitions are
// monotonic: a connection never regresses to an earlier state.
type connState int

const (
	statePending connState = iota
	stateAuthenticated
	stateClosed
)

func (s connState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateAuthenticated:
		return "authenticated"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// conn is one client connection. The hub goroutine owns state,
// createdAt and lastActivity; the pumps only touch the socket and the
// send channel.
type conn struct {
	id         string
	remoteAddr string
	sock       net.Conn
	r          io.Reader

	// send carries fully-encoded frames to the write pump. Only the
	// hub sends on it or closes it.
	send chan []byte

	state        connState
	createdAt    time.Time
	lastActivity time.Time
}

// newConn wraps an upgraded socket. Leftover bytes buffered past the
// handshake request are replayed before fresh socket reads.
func newConn(sock net.Conn, leftover []byte) *conn {
	var r io.Reader = sock
	if len(leftover) > 0 {
		r = io.MultiReader(bytes.NewReader(leftover), sock)
	}
	now := time.Now()
	return &conn{
		id:           uuid.NewString(),
		remoteAddr:   sock.RemoteAddr().String(),
		sock:         sock,
		r:            r,
		send:         make(chan []byte, sendQueueSize),
		state:        statePending,
		createdAt:    now,
		lastActivity: now,
	}
}

// readPump decodes frames off the socket and posts them to the hub. It
// exits on any read error; the hub learns about it through the posted
// event and releases the connection's table entry.
func (c *conn) readPump(h *Hub) {
	for {
		frame, err := protocol.ReadFrame(c.r, maxMessageSize)
		if err != nil {
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				c.drainOversize(frame)
				h.post(inboundEvent{conn: c, kind: eventOversize})
			} else {
				h.post(inboundEvent{conn: c, kind: eventReadError, err: err})
			}
			return
		}
		h.post(inboundEvent{conn: c, kind: eventFrame, frame: frame})
	}
}

// drainOversize discards the rest of a refused frame (mask key plus the
// declared payload) so the close frame reaches the client on a clean
// socket. The drain is capped to avoid stalling on absurd declared
// lengths.
func (c *conn) drainOversize(frame *protocol.Frame) {
	remaining := frame.Length
	if remaining > oversizeDrainLimit {
		remaining = oversizeDrainLimit
	}
	if frame.Masked {
		remaining += 4
	}
	_, _ = io.CopyN(io.Discard, c.r, int64(remaining))
}

// writePump delivers queued frames until the hub closes the send
// channel, then closes the socket. That close is also what unblocks a
// pending read, so both pumps wind down from either side's failure.
func (c *conn) writePump() {
	defer func() { _ = c.sock.Close() }()

	for data := range c.send {
		_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
		if _, err := c.sock.Write(data); err != nil {
			logging.Debug("WebSocket write failed",
				zap.String("remote_addr", c.remoteAddr),
				zap.Error(err),
			)
			return
		}
	}
}

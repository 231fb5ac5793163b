package ws

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/open-foundation-team/apple-music-remote/internal/auth"
	"github.com/open-foundation-team/apple-music-remote/internal/logging"
	"github.com/open-foundation-team/apple-music-remote/internal/player"
	"github.com/open-foundation-team/apple-music-remote/internal/protocol"
	"github.com/open-foundation-team/apple-music-remote/internal/registry"
)

// Timing and sizing parameters for the push channel.
const (
	// defaultAuthWindow is how long a pending connection may take to
	// present a valid token.
	defaultAuthWindow = 10 * time.Second

	// defaultHeartbeatInterval is the sweep cadence, the idle threshold
	// past which a quiet connection is pinged, and the interval
	// advertised to clients in the hello message.
	defaultHeartbeatInterval = 20 * time.Second

	// defaultIdleTimeout closes a connection that produced no frame at
	// all for this long.
	defaultIdleTimeout = 75 * time.Second

	// writeWait bounds a single frame write on the socket.
	writeWait = 10 * time.Second

	// maxMessageSize caps inbound frame payloads. Larger declared
	// lengths are refused before allocation.
	maxMessageSize = 8192

	// oversizeDrainLimit caps how much of a refused payload is drained
	// so the close frame still reaches the client on a clean socket.
	oversizeDrainLimit = 1 << 20

	// sendQueueSize is each connection's outbound frame buffer.
	sendQueueSize = 32
)

type eventKind int

const (
	eventFrame eventKind = iota
	eventReadError
	eventOversize
)

// inboundEvent is what a read pump posts to the hub: one decoded frame
// or the read failure that ended the pump.
type inboundEvent struct {
	conn  *conn
	kind  eventKind
	frame *protocol.Frame
	err   error
}

// completion carries the result of an asynchronous controller call back
// onto the hub goroutine, where all shared state lives.
type completion struct {
	conn      *conn
	action    string
	requestID string
	err       error
	snap      player.Snapshot
	snapOK    bool
}

// Hub owns the connection table. Every mutation of connection state,
// the table, or the latest snapshot happens on the goroutine running
// Run; pumps and controller calls communicate with it over channels.
type Hub struct {
	controller   player.Controller
	guard        *auth.Guard
	registry     *registry.Registry
	identity     protocol.ServerIdentity
	requireToken bool

	authWindow        time.Duration
	heartbeatInterval time.Duration
	idleTimeout       time.Duration

	register    chan *conn
	inbound     chan inboundEvent
	completions chan completion
	snapshots   chan player.Snapshot
	done        chan struct{}

	conns  map[string]*conn
	latest player.Snapshot
}

// NewHub wires the hub to its collaborators. Run must be started before
// connections are registered.
func NewHub(controller player.Controller, guard *auth.Guard, reg *registry.Registry, identity protocol.ServerIdentity, requireToken bool) *Hub {
	return &Hub{
		controller:   controller,
		guard:        guard,
		registry:     reg,
		identity:     identity,
		requireToken: requireToken,

		authWindow:        defaultAuthWindow,
		heartbeatInterval: defaultHeartbeatInterval,
		idleTimeout:       defaultIdleTimeout,

		register:    make(chan *conn),
		inbound:     make(chan inboundEvent, 64),
		completions: make(chan completion, 16),
		snapshots:   make(chan player.Snapshot, 8),
		done:        make(chan struct{}),

		conns: make(map[string]*conn),
	}
}

// Run processes hub events until the context is cancelled, then closes
// every connection and returns.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.add(c)
		case ev := <-h.inbound:
			h.handleEvent(ev)
		case comp := <-h.completions:
			h.handleCompletion(comp)
		case snap := <-h.snapshots:
			h.latest = snap
			h.broadcast()
		case <-ticker.C:
			h.sweep(time.Now())
		}
	}
}

// Register hands a freshly upgraded connection to the hub.
func (h *Hub) Register(c *conn) {
	select {
	case h.register <- c:
	case <-h.done:
		_ = c.sock.Close()
	}
}

// Publish stores snap as the latest snapshot and fans it out to every
// authenticated connection. Safe to call from any goroutine.
func (h *Hub) Publish(snap player.Snapshot) {
	select {
	case h.snapshots <- snap:
	case <-h.done:
	}
}

// Done closes once Run has returned and every connection is released.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// post delivers a read pump event, giving up once the hub has stopped.
func (h *Hub) post(ev inboundEvent) {
	select {
	case h.inbound <- ev:
	case <-h.done:
	}
}

func (h *Hub) add(c *conn) {
	h.conns[c.id] = c
	go c.readPump(h)
	go c.writePump()
	logging.LogConnection(c.remoteAddr, "ws_connected")
	logging.Debug("Connection registered",
		zap.String("conn_id", c.id),
		zap.Int("connections", len(h.conns)),
	)
}

func (h *Hub) handleEvent(ev inboundEvent) {
	c := ev.conn
	if c.state == stateClosed {
		// Pumps race the sweep; events for a closed connection drop.
		return
	}

	switch ev.kind {
	case eventReadError:
		// The socket already failed, so no close frame is deliverable.
		logging.Debug("WebSocket read ended",
			zap.String("remote_addr", c.remoteAddr),
			zap.Error(ev.err),
		)
		h.closeConn(c, 0, "")
	case eventOversize:
		h.closeConn(c, protocol.CloseMessageTooBig, "message too large")
	case eventFrame:
		c.lastActivity = time.Now()
		h.handleFrame(c, ev.frame)
	}
}

func (h *Hub) handleFrame(c *conn, frame *protocol.Frame) {
	switch frame.Opcode {
	case protocol.OpcodeClose:
		code, _ := protocol.ParseClose(frame.Payload)
		h.closeConn(c, code, "")
	case protocol.OpcodePing:
		h.enqueue(c, protocol.EncodeFrame(protocol.OpcodePong, frame.Payload))
	case protocol.OpcodePong:
		// Activity was already refreshed; nothing further.
	case protocol.OpcodeText:
		if !frame.FIN {
			h.sendMessage(c, protocol.BuildRejection("fragmented frames are not supported", ""))
			return
		}
		h.handleMessage(c, frame.Payload)
	default:
		h.sendMessage(c, protocol.BuildRejection("unsupported frame type: "+frame.OpcodeString(), ""))
	}
}

func (h *Hub) handleMessage(c *conn, payload []byte) {
	logging.LogWebSocketMessage(c.remoteAddr, "recv", "text", payload)

	msg, err := protocol.DecodeClientMessage(payload)
	if err != nil {
		h.sendMessage(c, protocol.BuildRejection(err.Error(), ""))
		return
	}
	if err := msg.Validate(); err != nil {
		h.sendMessage(c, protocol.BuildRejection(err.Error(), msg.RequestID))
		return
	}

	switch msg.Type {
	case protocol.TypeAuth:
		h.handleAuth(c, msg)
	case protocol.TypePing:
		h.sendMessage(c, protocol.BuildPong(msg.RequestID))
	case protocol.TypeCommand:
		if h.requireAuthenticated(c, msg) {
			h.startCommand(c, msg)
		}
	case protocol.TypeSetVolume:
		if h.requireAuthenticated(c, msg) {
			h.startSetVolume(c, msg)
		}
	case protocol.TypeRequestState:
		if h.requireAuthenticated(c, msg) {
			h.handleRequestState(c, msg)
		}
	}
}

// requireAuthenticated rejects messages that need an authenticated
// connection. The rejection does not change the connection's state.
func (h *Hub) requireAuthenticated(c *conn, msg *protocol.ClientMessage) bool {
	if c.state != stateAuthenticated {
		h.sendMessage(c, protocol.BuildRejection("authentication required", msg.RequestID))
		return false
	}
	return true
}

func (h *Hub) handleAuth(c *conn, msg *protocol.ClientMessage) {
	if h.requireToken && !h.guard.Verify(msg.Token) {
		h.sendMessage(c, protocol.BuildAuthResult(false, "invalid token"))
		h.closeConn(c, protocol.ClosePolicyViolation, "invalid token")
		return
	}

	if c.state == stateAuthenticated {
		// Re-auth is acknowledged without repeating the greeting.
		h.sendMessage(c, protocol.BuildAuthResult(true, "authenticated"))
		return
	}

	c.state = stateAuthenticated
	h.registry.Touch(c.id)
	logging.LogConnection(c.remoteAddr, "ws_authenticated")

	h.sendMessage(c, protocol.BuildAuthResult(true, "authenticated"))
	h.sendMessage(c, protocol.BuildHello(h.identity, int(h.heartbeatInterval/time.Second)))
	h.sendMessage(c, protocol.BuildPlayback(h.latest))
}

// startCommand runs a transport action off the hub goroutine. Unknown
// actions surface through the completion path like any other failure.
func (h *Hub) startCommand(c *conn, msg *protocol.ClientMessage) {
	action := player.Action(msg.Action)
	go func() {
		comp := completion{conn: c, action: msg.Action, requestID: msg.RequestID}
		comp.err = player.Do(h.controller, action)
		if comp.err == nil {
			comp.snap, comp.snapOK = h.fetchSnapshot()
		}
		h.complete(comp)
	}()
}

// startSetVolume validates the target on the hub goroutine, then runs
// the controller call asynchronously like a command.
func (h *Hub) startSetVolume(c *conn, msg *protocol.ClientMessage) {
	target := player.VolumeTarget(msg.Target)
	if !target.Valid() {
		h.sendMessage(c, protocol.BuildRejection("unknown volume target: "+msg.Target, msg.RequestID))
		return
	}
	value := int(*msg.Value)
	go func() {
		comp := completion{conn: c, action: protocol.TypeSetVolume, requestID: msg.RequestID}
		comp.err = player.SetTargetVolume(h.controller, target, value)
		if comp.err == nil {
			comp.snap, comp.snapOK = h.fetchSnapshot()
		}
		h.complete(comp)
	}()
}

// handleRequestState answers synchronously on the hub goroutine. State
// reads keep request order relative to other hub work, while mutations
// ack asynchronously; the resulting ordering difference is deliberate.
func (h *Hub) handleRequestState(c *conn, msg *protocol.ClientMessage) {
	snap, err := h.controller.CurrentSnapshot()
	if err != nil {
		h.sendMessage(c, protocol.BuildRejection(err.Error(), msg.RequestID))
		return
	}
	h.latest = snap
	h.sendMessage(c, protocol.BuildPlayback(snap))
}

func (h *Hub) fetchSnapshot() (player.Snapshot, bool) {
	snap, err := h.controller.CurrentSnapshot()
	if err != nil {
		logging.Warn("Failed to fetch snapshot after mutation", zap.Error(err))
		return player.Snapshot{}, false
	}
	return snap, true
}

// complete posts an async controller result back to the hub goroutine.
func (h *Hub) complete(comp completion) {
	select {
	case h.completions <- comp:
	case <-h.done:
	}
}

func (h *Hub) handleCompletion(comp completion) {
	c := comp.conn

	if comp.err != nil {
		if c.state != stateClosed {
			h.sendMessage(c, protocol.BuildRejection(comp.err.Error(), comp.requestID))
		}
		return
	}

	// The issuer sees its ack before the broadcast that follows.
	if c.state != stateClosed {
		h.sendMessage(c, protocol.BuildAck(comp.action, comp.requestID, nil))
	}
	if comp.snapOK {
		h.latest = comp.snap
		h.broadcast()
	}
}

// broadcast fans the latest snapshot out to authenticated connections.
// Pending connections never receive broadcasts.
func (h *Hub) broadcast() {
	data, err := protocol.BuildPlayback(h.latest).Encode()
	if err != nil {
		logging.Error("Failed to encode playback broadcast", zap.Error(err))
		return
	}
	frame := protocol.EncodeFrame(protocol.OpcodeText, data)
	for _, c := range h.conns {
		if c.state != stateAuthenticated {
			continue
		}
		h.enqueue(c, frame)
	}
}

// sweep enforces the authentication window and the heartbeat policy.
func (h *Hub) sweep(now time.Time) {
	for _, c := range h.conns {
		switch c.state {
		case statePending:
			if now.Sub(c.createdAt) > h.authWindow {
				h.closeConn(c, protocol.ClosePolicyViolation, "authentication timeout")
			}
		case stateAuthenticated:
			idle := now.Sub(c.lastActivity)
			switch {
			case idle > h.idleTimeout:
				h.closeConn(c, protocol.ClosePolicyViolation, "heartbeat timeout")
			case idle > h.heartbeatInterval:
				h.enqueue(c, protocol.EncodeFrame(protocol.OpcodePing, nil))
			}
		}
	}
}

// sendMessage encodes and queues one JSON message for a connection.
func (h *Hub) sendMessage(c *conn, msg *protocol.ServerMessage) {
	data, err := msg.Encode()
	if err != nil {
		logging.Error("Failed to encode message",
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		return
	}
	logging.LogWebSocketMessage(c.remoteAddr, "send", msg.Type, data)
	h.enqueue(c, protocol.EncodeFrame(protocol.OpcodeText, data))
}

// enqueue hands a frame to the write pump without ever blocking the
// hub. A connection too slow to drain its queue is dropped.
func (h *Hub) enqueue(c *conn, frame []byte) {
	if c.state == stateClosed {
		return
	}
	select {
	case c.send <- frame:
	default:
		logging.Warn("Dropping connection with full send queue",
			zap.String("remote_addr", c.remoteAddr),
			zap.String("conn_id", c.id),
		)
		h.teardown(c)
	}
}

// closeConn sends a close frame (when code is nonzero) and releases the
// connection. Closing an already-closed connection is a no-op.
func (h *Hub) closeConn(c *conn, code uint16, reason string) {
	if c.state == stateClosed {
		return
	}
	if code != 0 {
		select {
		case c.send <- protocol.EncodeClose(code, reason):
		default:
			// Queue full; the client loses the close frame but the
			// socket still closes underneath it.
		}
	}
	h.teardown(c)
	logging.LogConnection(c.remoteAddr, "ws_closed")
	logging.Debug("Connection closed",
		zap.String("conn_id", c.id),
		zap.Uint16("code", code),
		zap.String("reason", reason),
	)
}

// teardown flips the state, closes the send channel (which closes the
// socket via the write pump) and drops the table entry.
func (h *Hub) teardown(c *conn) {
	if c.state == stateClosed {
		return
	}
	c.state = stateClosed
	close(c.send)
	delete(h.conns, c.id)
}

// shutdown closes every connection politely before the hub exits.
func (h *Hub) shutdown() {
	logging.Info("Closing push channel connections", zap.Int("count", len(h.conns)))
	for _, c := range h.conns {
		h.closeConn(c, protocol.CloseNormal, "server shutting down")
	}
}

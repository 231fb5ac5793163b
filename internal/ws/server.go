package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/open-foundation-team/apple-music-remote/internal/logging"
	"github.com/open-foundation-team/apple-music-remote/internal/web"
)

const (
	// handshakeTimeout bounds the entire upgrade exchange.
	handshakeTimeout = 10 * time.Second

	// maxHandshakeBytes caps the upgrade request buffer.
	maxHandshakeBytes = 16 << 10

	handshakeChunkSize = 4 << 10
)

// Server accepts TCP connections, performs the opening handshake and
// hands upgraded connections to the hub.
type Server struct {
	addr     string
	hub      *Hub
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a server that registers upgraded connections with
// the hub. The hub must already be running.
func NewServer(addr string, hub *Hub) *Server {
	return &Server{addr: addr, hub: hub}
}

// Start binds the listener and begins accepting in the background. A
// bind failure is returned immediately so the caller never runs with a
// half-started listener.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	logging.Info("WebSocket listener started",
		zap.String("addr", listener.Addr().String()),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptConnections()
	}()

	return nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptConnections() {
	for {
		sock, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(sock)
		}()
	}
}

// handleConnection reads the upgrade request, completes the handshake
// and registers the connection with the hub. Ownership of the socket
// passes to the hub on success; bytes the client sent past the
// handshake are preserved for the first frame reads.
func (s *Server) handleConnection(sock net.Conn) {
	remoteAddr := sock.RemoteAddr().String()
	logging.LogConnection(remoteAddr, "ws_handshake")

	_ = sock.SetReadDeadline(time.Now().Add(handshakeTimeout))

	buf := make([]byte, 0, handshakeChunkSize)
	chunk := make([]byte, handshakeChunkSize)
	var req *web.Request
	var leftover []byte

	for req == nil {
		n, err := sock.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}

		parsed, consumed, parseErr := web.ParseRequest(buf)
		if parseErr != nil {
			logging.Debug("Rejecting malformed upgrade request",
				zap.String("remote_addr", remoteAddr),
				zap.Error(parseErr),
			)
			s.reject(sock, web.ErrorResponse(web.StatusBadRequest, parseErr.Error()))
			return
		}
		if parsed != nil {
			req = parsed
			leftover = buf[consumed:]
			break
		}

		if len(buf) > maxHandshakeBytes {
			s.reject(sock, web.ErrorResponse(web.StatusBadRequest, "request too large"))
			return
		}
		if err != nil {
			logging.Debug("Connection ended before a complete upgrade request",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			_ = sock.Close()
			return
		}
	}

	req.RemoteAddr = remoteAddr
	_ = sock.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	if err := Upgrade(sock, req); err != nil {
		logging.Debug("Upgrade rejected",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		_ = sock.Close()
		return
	}

	// Frame reads are paced by the hub's heartbeat policy, not by the
	// handshake deadline.
	_ = sock.SetReadDeadline(time.Time{})
	_ = sock.SetWriteDeadline(time.Time{})

	s.hub.Register(newConn(sock, leftover))
}

// reject answers a request that never reached the handshake and closes
// the socket. The origin is unknown, so CORS falls back to the wildcard.
func (s *Server) reject(sock net.Conn, resp *web.Response) {
	web.ApplyCORS(resp, "")
	_ = sock.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	_, _ = resp.WriteTo(sock)
	_ = sock.Close()
}

// Shutdown stops accepting and waits for in-flight handshakes. Live
// connections belong to the hub and close when its context ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing WebSocket listener", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("WebSocket server stopped")
		return nil
	case <-ctx.Done():
		logging.Warn("WebSocket shutdown timed out with handshakes still in flight")
		return ctx.Err()
	}
}

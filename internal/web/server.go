package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/open-foundation-team/apple-music-remote/internal/logging"
)

const (
	// readTimeout bounds how long a client may take to deliver one
	// complete request.
	readTimeout = 10 * time.Second

	// writeTimeout bounds the response write.
	writeTimeout = 10 * time.Second

	// maxRequestBytes caps the request buffer. A client exceeding it
	// without completing a request gets a 400 and the connection closes.
	maxRequestBytes = 64 << 10

	readChunkSize = 4 << 10
)

// Server accepts TCP connections and services exactly one
// request/response exchange per connection.
type Server struct {
	addr     string
	router   *Router
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer creates a server that dispatches through the router.
func NewServer(addr string, router *Router) *Server {
	return &Server{
		addr:   addr,
		router: router,
	}
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

	logging.Info("HTTP listener started",
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
		conn, err := s.listener.Accept()
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
			s.handleConnection(conn)
		}()
	}
}

// handleConnection reads one request from the raw connection, writes
// one response and closes. Requests are framed by retrying the parser
// on a growing buffer after every read.
func (s *Server) handleConnection(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	remoteAddr := conn.RemoteAddr().String()
	logging.LogConnection(remoteAddr, "http_accepted")
	start := time.Now()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)
	var req *Request

	for req == nil {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}

		parsed, _, parseErr := ParseRequest(buf)
		if parseErr != nil {
			logging.Debug("Rejecting malformed request",
				zap.String("remote_addr", remoteAddr),
				zap.Error(parseErr),
			)
			s.respond(conn, remoteAddr, "", ErrorResponse(StatusBadRequest, parseErr.Error()), start)
			return
		}
		if parsed != nil {
			req = parsed
			break
		}

		if len(buf) > maxRequestBytes {
			s.respond(conn, remoteAddr, "", ErrorResponse(StatusBadRequest, "request too large"), start)
			return
		}
		if err != nil {
			// Connection dropped or stalled before a full request
			// arrived; there is nothing to answer.
			logging.Debug("Connection ended before a complete request",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			return
		}
	}

	req.RemoteAddr = remoteAddr
	resp := s.router.Dispatch(req)
	s.writeResponse(conn, remoteAddr, resp)
	logging.LogHTTPRequest(remoteAddr, req.Method, req.Path, resp.StatusCode, time.Since(start))
}

// respond answers requests that never reached the router, typically
// parse failures. The origin is unknown, so CORS falls back to the
// wildcard.
func (s *Server) respond(conn net.Conn, remoteAddr, origin string, resp *Response, start time.Time) {
	ApplyCORS(resp, origin)
	s.writeResponse(conn, remoteAddr, resp)
	logging.LogHTTPRequest(remoteAddr, "-", "-", resp.StatusCode, time.Since(start))
}

func (s *Server) writeResponse(conn net.Conn, remoteAddr string, resp *Response) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := resp.WriteTo(conn); err != nil {
		logging.Debug("Failed to write response",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

// Shutdown stops accepting and waits for in-flight exchanges, giving up
// when the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing HTTP listener", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("HTTP server stopped")
		return nil
	case <-ctx.Done():
		logging.Warn("HTTP shutdown timed out with exchanges still in flight")
		return ctx.Err()
	}
}

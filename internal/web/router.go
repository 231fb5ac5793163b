package web

import (
	"errors"
	"net"
	"sort"
	"strings"

	"github.com/open-foundation-team/apple-music-remote/internal/auth"
	"github.com/open-foundation-team/apple-music-remote/internal/registry"
)

// TokenHeader is the custom token header checked after Authorization.
const TokenHeader = "X-Remote-Token"

// TokenQueryParam is the query parameter checked last.
const TokenQueryParam = "token"

// HandlerFunc produces the response for one routed request. A returned
// error becomes a structured error response: *StatusError chooses its
// own status, anything else maps to a 500 carrying the error text.
type HandlerFunc func(*Request) (*Response, error)

// StatusError lets a handler pick the response status for a failure.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string { return e.Message }

// BadRequestError is what handlers return for an undecodable body.
func BadRequestError(message string) *StatusError {
	return &StatusError{Code: StatusBadRequest, Message: message}
}

// Router dispatches parsed requests on the (method, path) pair, fencing
// all non-public paths behind token verification.
type Router struct {
	guard        *auth.Guard
	requireToken bool
	registry     *registry.Registry
	routes       map[string]map[string]HandlerFunc
	public       map[string]bool
}

// NewRouter creates a router. The registry may be nil; when present it
// records client activity for each authenticated, successfully-handled
// request. Setting requireToken to false opens every endpoint.
func NewRouter(guard *auth.Guard, requireToken bool, reg *registry.Registry) *Router {
	return &Router{
		guard:        guard,
		requireToken: requireToken,
		registry:     reg,
		routes:       make(map[string]map[string]HandlerFunc),
		public:       make(map[string]bool),
	}
}

// Handle registers a handler for a method and path.
func (rt *Router) Handle(method, path string, handler HandlerFunc) {
	if rt.routes[path] == nil {
		rt.routes[path] = make(map[string]HandlerFunc)
	}
	rt.routes[path][method] = handler
}

// HandlePublic registers a handler reachable without a token.
func (rt *Router) HandlePublic(method, path string, handler HandlerFunc) {
	rt.Handle(method, path, handler)
	rt.public[path] = true
}

// Dispatch routes one request and returns the response to write. Every
// response carries CORS headers, errors and preflights included.
func (rt *Router) Dispatch(req *Request) *Response {
	resp := rt.dispatch(req)
	ApplyCORS(resp, req.Header.Get("Origin"))
	return resp
}

func (rt *Router) dispatch(req *Request) *Response {
	// Preflights skip routing and auth entirely.
	if req.Method == "OPTIONS" {
		return NewResponse(StatusNoContent)
	}

	methods, known := rt.routes[req.Path]
	if !known {
		return ErrorResponse(StatusNotFound, "not found")
	}

	authenticated := false
	if rt.requireToken && !rt.public[req.Path] {
		if !rt.guard.Verify(ExtractToken(req)) {
			return ErrorResponse(StatusUnauthorized, "unauthorized")
		}
		authenticated = true
	}

	handler, allowed := methods[req.Method]
	if !allowed {
		resp := ErrorResponse(StatusMethodNotAllowed, "method not allowed")
		resp.Header["Allow"] = allowedMethods(methods)
		return resp
	}

	resp, err := handler(req)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return ErrorResponse(statusErr.Code, statusErr.Message)
		}
		return ErrorResponse(StatusInternalServerError, err.Error())
	}

	if authenticated && rt.registry != nil {
		rt.registry.Touch(clientHost(req.RemoteAddr))
	}

	return resp
}

// ExtractToken pulls the first credential the client presented: the
// Authorization Bearer header, then the custom token header, then the
// token query parameter. A wrong credential in an earlier source is not
// rescued by a correct one in a later source.
func ExtractToken(req *Request) string {
	if authz := req.Header.Get("Authorization"); authz != "" {
		if token, ok := strings.CutPrefix(authz, "Bearer "); ok {
			return token
		}
	}
	if token := req.Header.Get(TokenHeader); token != "" {
		return token
	}
	if token, present := req.Query[TokenQueryParam]; present {
		return token
	}
	return ""
}

// ApplyCORS stamps the CORS headers onto a response. Local web clients
// talk to this server from arbitrary origins, so the request origin is
// echoed back; without one the wildcard applies.
func ApplyCORS(resp *Response, origin string) {
	if origin == "" {
		origin = "*"
	}
	resp.Header["Access-Control-Allow-Origin"] = origin
	resp.Header["Vary"] = "Origin"
	resp.Header["Access-Control-Allow-Headers"] = "Authorization, Content-Type, " + TokenHeader
	resp.Header["Access-Control-Allow-Methods"] = "GET, POST, OPTIONS"
	resp.Header["Access-Control-Allow-Credentials"] = "false"
}

// allowedMethods renders the Allow header for a 405.
func allowedMethods(methods map[string]HandlerFunc) string {
	names := make([]string, 0, len(methods)+1)
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(append(names, "OPTIONS"), ", ")
}

// clientHost reduces a remote address to its host so one client's
// requests share a registry entry across ephemeral ports.
func clientHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// Package web is the request/response surface of the remote: a small
// HTTP/1.1 server built directly on TCP sockets.
//
// # Connection Model
//
// Every accepted connection services exactly one request/response pair
// and then closes. Requests are framed by ParseRequest over a growing
// buffer, so a request split across arbitrary TCP segments parses once
// complete and never consumes bytes beyond its declared body.
//
// # Routing
//
// The Router dispatches on the (method, path) pair. OPTIONS preflights
// short-circuit to 204 before routing or auth. The info and ping
// endpoints are public; everything else requires the shared token via
// Authorization: Bearer, the X-Remote-Token header, or the token query
// parameter, in that order. Every response, including errors and
// preflights, carries CORS headers.
package web

// Package ws implements the push channel: a websocket endpoint built
// directly on TCP sockets that streams playback updates to
// authenticated clients and accepts control messages from them.
//
// # Lifecycle
//
// A connection starts pending, becomes authenticated when it presents
// a valid token inside the auth window, and ends closed. Transitions
// are monotonic. All lifecycle state lives on the hub goroutine; per
// connection a read pump decodes frames and a write pump delivers
// queued ones, neither touching that state.
//
// # Heartbeats
//
// The hub sweeps on the heartbeat interval. Pending connections past
// the auth window and authenticated connections idle past the idle
// timeout are closed with a policy violation; quiet connections are
// pinged. Any inbound frame counts as activity.
package ws

// Package client is the Go client for the remote server: one-shot calls
// over the HTTP API and long-lived push sessions over the WebSocket
// channel. The ctl binary is built on it; other Go programs can use it
// directly.
package client

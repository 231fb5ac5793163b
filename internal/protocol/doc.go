// Package protocol implements the wire format of the push channel: the
// WebSocket framing layer (RFC 6455) and the JSON message envelopes
// exchanged over it.
//
// # Framing
//
// ReadFrame decodes one frame from a raw connection, unmasking client
// payloads. EncodeFrame produces the unmasked server-side frames, and
// EncodeClose/ParseClose handle the status code + reason convention of
// close payloads. Fragmented messages are not reassembled; callers
// decide how to treat FIN=false frames.
//
// # Messages
//
// ClientMessage and ServerMessage are the two JSON envelopes. Clients
// send auth, command, setVolume, requestState and ping; the server
// replies with auth results, acks, errors and pongs, and pushes hello
// and playback messages on its own initiative. Build* constructors
// cover each server message shape.
package protocol

// Package discovery advertises and locates remote servers over mDNS.
//
// Servers register themselves as "_amremote._tcp" services on the local
// domain so clients on the same network find them without configuration.
// The advertised port is the HTTP port; the WebSocket port, the server
// version and whether a token is required travel in TXT records.
//
// # TXT Records
//
// Each advertisement carries:
//   - version: server version string
//   - ws_port: WebSocket push channel port
//   - requires_token: "true" when authentication is enforced
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Clients and server must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery

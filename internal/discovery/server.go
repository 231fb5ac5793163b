package discovery

import (
	"fmt"
	"time"
)

// Server is one remote server found on the local network.
type Server struct {
	// Instance is the advertised mDNS instance name (e.g. "Office Mac")
	Instance string

	// Hostname is the mDNS hostname (e.g. "office-mac.local.")
	Hostname string

	// IP is the address to reach the server at (IPv4 preferred)
	IP string

	// HTTPPort is the request/response API port
	HTTPPort int

	// WSPort is the push channel port, 0 when not advertised
	WSPort int

	// Version is the server's advertised version string
	Version string

	// RequiresToken reports whether the server enforces authentication
	RequiresToken bool

	// DiscoveredAt is when the advertisement was received
	DiscoveredAt time.Time
}

// String returns a human-readable one-line summary of the server.
func (s *Server) String() string {
	return fmt.Sprintf("%s at %s:%d (version %s)", s.Instance, s.IP, s.HTTPPort, s.Version)
}

// BaseURL returns the HTTP base URL for the server.
func (s *Server) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.IP, s.HTTPPort)
}

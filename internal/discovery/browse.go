package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

// DefaultScanTimeout is the default timeout for server discovery
const DefaultScanTimeout = 5 * time.Second

// Scanner browses the local network for remote servers.
type Scanner struct {
	// Timeout is the maximum time to wait for advertisements
	Timeout time.Duration
}

// NewScanner creates a scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{Timeout: DefaultScanTimeout}
}

// Scan collects every remote server advertising on the local network,
// returning after the timeout elapses.
func (s *Scanner) Scan(ctx context.Context) ([]*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	servers := make([]*Server, 0)
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for entry := range entries {
			if server := parseServiceEntry(entry); server != nil {
				servers = append(servers, server)
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// Browse closes the entries channel once the context ends.
	<-collected

	return servers, nil
}

// Scan is a convenience wrapper using a custom timeout.
func Scan(ctx context.Context, timeout time.Duration) ([]*Server, error) {
	scanner := NewScanner()
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	return scanner.Scan(ctx)
}

// parseServiceEntry converts a zeroconf service entry to a Server.
// Returns nil for unusable entries (no address to connect to).
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Server {
	// Prefer IPv4; fall back to IPv6
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	server := &Server{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		HTTPPort:     entry.Port,
		DiscoveredAt: time.Now(),
	}

	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		switch key {
		case "version":
			server.Version = value
		case "ws_port":
			if port, err := strconv.Atoi(value); err == nil {
				server.WSPort = port
			}
		case "requires_token":
			server.RequiresToken = value == "true"
		}
	}

	return server
}

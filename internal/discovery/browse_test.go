package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantIP     string
		wantWSPort int
		wantToken  bool
	}{
		{
			name: "full advertisement with IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Office Mac"},
				HostName:      "office-mac.local.",
				Port:          10767,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.20")},
				Text:          []string{"version=1.2.0", "ws_port=10768", "requires_token=true"},
			},
			wantIP:     "192.168.1.20",
			wantWSPort: 10768,
			wantToken:  true,
		},
		{
			name: "open server without token requirement",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Studio"},
				HostName:      "studio.local.",
				Port:          10767,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
				Text:          []string{"version=1.2.0", "ws_port=10768", "requires_token=false"},
			},
			wantIP:     "10.0.0.5",
			wantWSPort: 10768,
			wantToken:  false,
		},
		{
			name: "missing TXT records still yields a server",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Bare"},
				HostName:      "bare.local.",
				Port:          10767,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.9")},
			},
			wantIP:     "10.0.0.9",
			wantWSPort: 0,
		},
		{
			name: "unparsable ws_port is ignored",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Odd"},
				HostName:      "odd.local.",
				Port:          10767,
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.7")},
				Text:          []string{"ws_port=push"},
			},
			wantIP:     "10.0.0.7",
			wantWSPort: 0,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "V6"},
				HostName:      "v6.local.",
				Port:          10767,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
				Text:          []string{"ws_port=10768"},
			},
			wantIP:     "fe80::1",
			wantWSPort: 10768,
		},
		{
			name: "both addresses prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Dual"},
				HostName:      "dual.local.",
				Port:          10767,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
			},
			wantIP: "192.168.1.50",
		},
		{
			name: "no address at all",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Ghost"},
				HostName:      "ghost.local.",
				Port:          10767,
			},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if server != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", server)
				}
				return
			}
			if server == nil {
				t.Fatal("parseServiceEntry() = nil, want server")
			}

			if server.Instance != tt.entry.Instance {
				t.Errorf("Instance = %q, want %q", server.Instance, tt.entry.Instance)
			}
			if server.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", server.IP, tt.wantIP)
			}
			if server.HTTPPort != tt.entry.Port {
				t.Errorf("HTTPPort = %d, want %d", server.HTTPPort, tt.entry.Port)
			}
			if server.WSPort != tt.wantWSPort {
				t.Errorf("WSPort = %d, want %d", server.WSPort, tt.wantWSPort)
			}
			if server.RequiresToken != tt.wantToken {
				t.Errorf("RequiresToken = %v, want %v", server.RequiresToken, tt.wantToken)
			}
			if time.Since(server.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", server.DiscoveredAt)
			}
		})
	}
}

func TestServerBaseURL(t *testing.T) {
	server := &Server{Instance: "Office Mac", IP: "192.168.1.20", HTTPPort: 10767, Version: "1.2.0"}

	if got := server.BaseURL(); got != "http://192.168.1.20:10767" {
		t.Errorf("BaseURL() = %q", got)
	}
	if got := server.String(); got != "Office Mac at 192.168.1.20:10767 (version 1.2.0)" {
		t.Errorf("String() = %q", got)
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

// Live mDNS browsing needs multicast on a real interface, so Scan is
// exercised manually against a running server rather than in CI.

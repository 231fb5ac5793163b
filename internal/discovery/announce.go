package discovery

import (
	"fmt"
	"strconv"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/open-foundation-team/apple-music-remote/internal/logging"
	"github.com/open-foundation-team/apple-music-remote/internal/protocol"
)

const (
	// ServiceType is the mDNS service type remote servers advertise as
	ServiceType = "_amremote._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."
)

// Advertiser keeps one mDNS registration alive until shut down.
type Advertiser struct {
	server *zeroconf.Server
}

// Announce registers the server on the local domain. The registered port
// is the HTTP port; the WebSocket port and token requirement travel in
// TXT records so clients can connect without probing.
func Announce(instance string, identity protocol.ServerIdentity) (*Advertiser, error) {
	if instance == "" {
		instance = identity.Name
	}

	txt := []string{
		"version=" + identity.Version,
		"ws_port=" + strconv.Itoa(identity.WSPort),
		"requires_token=" + strconv.FormatBool(identity.RequiresToken),
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, identity.HTTPPort, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising on the local network",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", identity.HTTPPort),
	)

	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
	logging.Info("mDNS advertisement withdrawn")
}

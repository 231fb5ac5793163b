package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/open-foundation-team/apple-music-remote/internal/auth"
	"github.com/open-foundation-team/apple-music-remote/internal/config"
	"github.com/open-foundation-team/apple-music-remote/internal/discovery"
	"github.com/open-foundation-team/apple-music-remote/internal/logging"
	"github.com/open-foundation-team/apple-music-remote/internal/player"
	"github.com/open-foundation-team/apple-music-remote/internal/protocol"
	"github.com/open-foundation-team/apple-music-remote/internal/registry"
	"github.com/open-foundation-team/apple-music-remote/internal/version"
	"github.com/open-foundation-team/apple-music-remote/internal/web"
	"github.com/open-foundation-team/apple-music-remote/internal/ws"
)

// shutdownTimeout bounds the graceful shutdown of both listeners and the
// push channel after a signal.
const shutdownTimeout = 5 * time.Second

// Serve command and flags
var (
	bindAddr    string
	httpPort    int
	wsPort      int
	logLevel    string
	noDiscovery bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the remote control server",
	Long: `Start the Apple Music remote control server.

The server binds two listeners: an HTTP API for discovery and one-shot
requests, and a WebSocket channel that pushes playback state to connected
clients. Unless disabled, it also advertises itself over mDNS so clients
on the local network can find it without knowing the address.

Settings come from the config file; flags override it for this run only.
On the first start a fresh access token is generated and stored. Clients
need it for everything except /api/info and /api/ping.`,
	Example: `  # Start with the stored configuration
  amremote-server serve

  # Start on custom ports with verbose logging
  amremote-server serve --http-port 8080 --ws-port 8081 --log-level debug

  # Bind to localhost only and skip mDNS advertisement
  amremote-server serve --bind 127.0.0.1 --no-discovery`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&bindAddr, "bind", "", "Listen address for both listeners (default from config)")
	serveCmd.Flags().IntVar(&httpPort, "http-port", 0, "HTTP API port (default from config)")
	serveCmd.Flags().IntVar(&wsPort, "ws-port", 0, "WebSocket port (default from config)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&noDiscovery, "no-discovery", false, "Do not advertise the server over mDNS")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Flags override the file for this run only; nothing is written back.
	if cmd.Flags().Changed("bind") {
		cfg.Server.Bind = bindAddr
	}
	if cmd.Flags().Changed("http-port") {
		cfg.Server.HTTPPort = httpPort
	}
	if cmd.Flags().Changed("ws-port") {
		cfg.Server.WSPort = wsPort
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Log.Level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	// An env-pinned token wins over the credential store.
	var provider auth.TokenProvider
	if fixed := cfg.Auth.Token(); fixed != "" {
		logging.Info("Using fixed token from environment",
			zap.String("env_var", cfg.Auth.TokenEnv),
		)
		provider = auth.StaticToken(fixed)
	} else {
		store, err := auth.OpenStore(cfg.Auth.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		defer store.Close()
		provider = store
	}

	guard := auth.NewGuard(provider)
	if cfg.Auth.RequireToken {
		// Surface store failures now rather than on the first client.
		if _, err := guard.Token(); err != nil {
			return fmt.Errorf("failed to load access token: %w", err)
		}
	} else {
		logging.Warn("Token authentication is disabled; every client on the network has full control")
	}

	var controller player.Controller
	controller, err = player.NewAppleScriptController()
	if err != nil {
		logging.Warn("Apple Music is not scriptable on this system, using a no-op player",
			zap.Error(err),
		)
		controller = player.NewNopController()
	}

	reg := registry.New(registry.DefaultRetention)
	identity := protocol.ServerIdentity{
		Name:          cfg.Server.Name,
		Version:       version.Version,
		HTTPPort:      cfg.Server.HTTPPort,
		WSPort:        cfg.Server.WSPort,
		RequiresToken: cfg.Auth.RequireToken,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub(controller, guard, reg, identity, cfg.Auth.RequireToken)
	go hub.Run(ctx)

	router := web.NewRouter(guard, cfg.Auth.RequireToken, reg)
	web.NewAPI(controller, reg, identity, hub).Register(router)

	httpSrv := web.NewServer(net.JoinHostPort(cfg.Server.Bind, strconv.Itoa(cfg.Server.HTTPPort)), router)
	if err := httpSrv.Start(); err != nil {
		return err
	}

	wsSrv := ws.NewServer(net.JoinHostPort(cfg.Server.Bind, strconv.Itoa(cfg.Server.WSPort)), hub)
	if err := wsSrv.Start(); err != nil {
		stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		_ = httpSrv.Shutdown(stopCtx)
		return err
	}

	watcher := player.NewWatcher(controller, hub, player.DefaultPollInterval)
	go watcher.Run(ctx)

	var advertiser *discovery.Advertiser
	if cfg.Discovery.Enabled && !noDiscovery {
		advertiser, err = discovery.Announce(cfg.Discovery.Instance, identity)
		if err != nil {
			logging.Warn("mDNS advertisement failed, clients must connect by address",
				zap.Error(err),
			)
		}
	}

	watchConfig(ctx, cfg)

	logging.Info("Apple Music Remote Server started",
		zap.String("name", cfg.Server.Name),
		zap.String("http_addr", httpSrv.Addr().String()),
		zap.String("ws_addr", wsSrv.Addr().String()),
		zap.Bool("require_token", cfg.Auth.RequireToken),
		zap.String("version", version.Version),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logging.Info("Shutdown signal received, stopping server...")

	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if advertiser != nil {
		advertiser.Shutdown()
	}
	_ = httpSrv.Shutdown(stopCtx)
	_ = wsSrv.Shutdown(stopCtx)

	// Stop the hub last so connected clients receive a close frame.
	cancel()
	select {
	case <-hub.Done():
	case <-stopCtx.Done():
		logging.Warn("Push channel shutdown timed out")
	}

	logging.Info("Server stopped")
	return nil
}

// watchConfig hot-reloads the log level when the config file changes on
// disk. Listener and auth settings need a restart, so only the level is
// applied live. Without a config file there is nothing to watch.
func watchConfig(ctx context.Context, cfg *config.Config) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return
		}
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	level := cfg.Log.Level
	go func() {
		err := config.Watch(ctx, path, func(next *config.Config) {
			if next.Log.Level != level {
				level = next.Log.Level
				logging.SetLevel(level)
				logging.Info("Log level changed", zap.String("level", level))
			}
		})
		if err != nil && ctx.Err() == nil {
			logging.Warn("Config watcher stopped", zap.Error(err))
		}
	}()
}

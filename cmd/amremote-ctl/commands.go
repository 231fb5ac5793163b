package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/open-foundation-team/apple-music-remote/internal/client"
	"github.com/open-foundation-team/apple-music-remote/internal/discovery"
	"github.com/open-foundation-team/apple-music-remote/internal/player"
)

func newClient() *client.Client {
	return client.New(serverHost, serverPort, serverWS, token())
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(watchCmd)

	for _, action := range []player.Action{
		player.ActionPlay,
		player.ActionPause,
		player.ActionToggle,
		player.ActionNext,
		player.ActionPrevious,
	} {
		rootCmd.AddCommand(transportCommand(action))
	}
}

// discoverCmd finds servers on the local network
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find servers on the local network",
	Long: `Find Apple Music Remote servers using mDNS/DNS-SD discovery.

This command listens for mDNS announcements from running servers and
displays each one with its address, ports, and version.`,
	Example: `  # Scan for 5 seconds (default)
  amremote-ctl discover

  # Longer scan for slower networks
  amremote-ctl discover --timeout 15`,
	RunE: runDiscover,
}

var discoverTimeout int

func init() {
	discoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 5, "Scan timeout in seconds")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for Apple Music Remote servers (timeout: %ds)...\n\n", discoverTimeout)

	servers, err := discovery.Scan(context.Background(), time.Duration(discoverTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(servers) == 0 {
		fmt.Println("No servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the server is running ('amremote-server serve')")
		fmt.Println("  - Check that this machine is on the same network as the server")
		fmt.Println("  - Some networks filter mDNS; use --host to connect directly")
		fmt.Println("  - Try increasing --timeout for slower networks")
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(servers))

	for i, srv := range servers {
		fmt.Printf("%d. %s\n", i+1, srv.Instance)
		fmt.Printf("   Address:  %s (HTTP %d, WebSocket %d)\n", srv.IP, srv.HTTPPort, srv.WSPort)
		fmt.Printf("   Version:  %s\n", srv.Version)
		if srv.RequiresToken {
			fmt.Printf("   Token:    required\n")
		} else {
			fmt.Printf("   Token:    not required\n")
		}
		fmt.Println()
	}

	fmt.Println("Use 'amremote-ctl state --host <address>' to query a server")
	fmt.Println("Use 'amremote-ctl watch --host <address>' to follow playback")

	return nil
}

// infoCmd queries the server identity
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show server information",
	Long:  `Query the server's identity endpoint. Works without a token.`,
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	identity, err := newClient().Info()
	if err != nil {
		return err
	}

	fmt.Printf("Name:     %s\n", identity.Name)
	fmt.Printf("Version:  %s\n", identity.Version)
	fmt.Printf("Address:  %s (HTTP %d, WebSocket %d)\n", serverHost, identity.HTTPPort, identity.WSPort)
	if identity.RequiresToken {
		fmt.Println("Token:    required")
	} else {
		fmt.Println("Token:    not required")
	}

	return nil
}

// stateCmd queries the current playback state
var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the current playback state",
	RunE:  runState,
}

func runState(cmd *cobra.Command, args []string) error {
	snap, err := newClient().State()
	if err != nil {
		return err
	}

	fmt.Printf("State:    %s\n", snap.State)
	if snap.Title != "" {
		fmt.Printf("Track:    %s\n", snap.Title)
	}
	if snap.Artist != "" {
		fmt.Printf("Artist:   %s\n", snap.Artist)
	}
	if snap.Album != "" {
		fmt.Printf("Album:    %s\n", snap.Album)
	}
	if snap.Duration > 0 {
		fmt.Printf("Position: %s / %s\n", fmtClock(snap.Position), fmtClock(snap.Duration))
	}
	fmt.Printf("Volume:   %d (player), %d (system)\n", snap.Volume, snap.SystemVolume)

	return nil
}

// healthCmd queries the server's client activity summary
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show server health and client activity",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	summary, err := newClient().Health()
	if err != nil {
		return err
	}

	fmt.Printf("Active clients: %d\n", summary.ActiveClients)
	if summary.LastSeen != nil {
		fmt.Printf("Last activity:  %s\n", summary.LastSeen.Local().Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Last activity:  none")
	}

	return nil
}

// transportConfirmations gives each transport command its success line.
var transportConfirmations = map[player.Action]string{
	player.ActionPlay:     "Playback started",
	player.ActionPause:    "Playback paused",
	player.ActionToggle:   "Playback toggled",
	player.ActionNext:     "Skipped to the next track",
	player.ActionPrevious: "Went back to the previous track",
}

var transportShorts = map[player.Action]string{
	player.ActionPlay:     "Start playback",
	player.ActionPause:    "Pause playback",
	player.ActionToggle:   "Toggle between play and pause",
	player.ActionNext:     "Skip to the next track",
	player.ActionPrevious: "Go back to the previous track",
}

func transportCommand(action player.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action),
		Short: transportShorts[action],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Do(action); err != nil {
				return err
			}
			fmt.Printf("✓ %s\n", transportConfirmations[action])
			return nil
		},
	}
}

// volumeCmd reads or writes a volume level
var volumeCmd = &cobra.Command{
	Use:   "volume [value]",
	Short: "Show or set the volume",
	Long: `Show the current volume, or set it when a value (0-100) is given.

By default this addresses the player's own volume. Use --system to
address the OS output volume instead.`,
	Example: `  # Show the player volume
  amremote-ctl volume

  # Set the player volume to 60
  amremote-ctl volume 60

  # Set the OS output volume to 30
  amremote-ctl volume 30 --system`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

var systemVolume bool

func init() {
	volumeCmd.Flags().BoolVar(&systemVolume, "system", false, "Address the OS output volume instead of the player volume")
}

func runVolume(cmd *cobra.Command, args []string) error {
	target := player.TargetMusic
	label := "Player"
	if systemVolume {
		target = player.TargetSystem
		label = "System"
	}

	c := newClient()

	if len(args) == 0 {
		volume, err := c.Volume(target)
		if err != nil {
			return err
		}
		fmt.Printf("%s volume: %d\n", label, volume)
		return nil
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid volume value %q", args[0])
	}
	if err := c.SetVolume(target, value); err != nil {
		return err
	}

	fmt.Printf("✓ %s volume set to %d\n", label, value)
	return nil
}

// watchCmd follows live playback pushes
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live playback state",
	Long: `Connect to the server's WebSocket channel and print every playback
state push as it arrives. Runs until interrupted.`,
	Example: `  # Follow the local server
  amremote-ctl watch

  # Follow a remote server
  amremote-ctl watch --host 192.168.1.20 --token <token>`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := newClient().Connect(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	identity := session.Identity()
	fmt.Printf("Connected to %s (version %s). Press Ctrl-C to stop.\n\n", identity.Name, identity.Version)

	if snap := session.Latest(); snap.State != "" {
		printPush(snap)
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case snap, ok := <-session.Snapshots():
			if !ok {
				if err := session.Err(); err != nil {
					return err
				}
				fmt.Println("\nServer closed the connection.")
				return nil
			}
			printPush(snap)
		}
	}
}

// printPush renders one pushed snapshot as a single timestamped line.
func printPush(snap player.Snapshot) {
	line := snap.State
	if snap.Title != "" {
		line = fmt.Sprintf("%-8s %s/%s  %s", snap.State, fmtClock(snap.Position), fmtClock(snap.Duration), snap.Title)
		if snap.Artist != "" {
			line += " - " + snap.Artist
		}
	}
	fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), line)
}

// fmtClock renders a second count as m:ss.
func fmtClock(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

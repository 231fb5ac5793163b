// Amremote-server exposes the Apple Music player on the local network.
//
// It serves a small HTTP API for discovery and one-shot queries and a
// WebSocket push channel that streams playback state to authenticated
// clients and executes their commands. Both listeners speak directly
// over TCP sockets; access is gated by a shared token generated on
// first run.
//
// Usage:
//
//	amremote-server serve [flags]
//
// See 'amremote-server serve --help' for available options and
// 'amremote-server token' for managing the access token.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/open-foundation-team/apple-music-remote/internal/version"
)

func main() {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "amremote-server",
	Short: "Apple Music Remote Server",
	Long: `A local-network remote-control server for the Apple Music player.

The server pairs a one-shot HTTP API (discovery, state queries, transport
control) with a WebSocket push channel that broadcasts playback state to
every authenticated client. Clients authenticate with a shared token; use
'amremote-server token show' to read it.

Use the separate 'amremote-ctl' utility to control a running server.`,
	Version: version.Version,
}

var configPath string

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: OS config dir)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("amremote-server %s (commit: %s)\n", version.Version, version.Commit)
	},
}

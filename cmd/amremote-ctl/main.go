// Amremote-ctl is a command line client for the Apple Music remote server.
//
// It discovers servers on the local network, queries playback state,
// drives the transport and volume, and can follow live state pushes
// over the WebSocket channel. Point it at a server with --host or let
// the discover command find one.
//
// Usage:
//
//	amremote-ctl [command] [flags]
//
// See 'amremote-ctl --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/open-foundation-team/apple-music-remote/internal/version"
)

// tokenEnvVar supplies the access token when --token is not given.
const tokenEnvVar = "AMREMOTE_TOKEN"

func main() {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "amremote-ctl",
	Short: "Apple Music Remote Control",
	Long: `A command line client for the Apple Music remote server.

Queries playback state, drives the transport and volume, and follows
live state pushes. Most commands need the server's access token; pass
it with --token or set ` + tokenEnvVar + `.

Run 'amremote-ctl discover' to find servers on the local network.`,
	Version: version.Version,
}

// Connection flags shared by every command
var (
	serverHost  string
	serverPort  int
	serverWS    int
	accessToken string
)

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "127.0.0.1", "Server address")
	rootCmd.PersistentFlags().IntVar(&serverPort, "port", 10767, "Server HTTP port")
	rootCmd.PersistentFlags().IntVar(&serverWS, "ws-port", 10768, "Server WebSocket port")
	rootCmd.PersistentFlags().StringVar(&accessToken, "token", "", "Access token (default from "+tokenEnvVar+")")

	rootCmd.AddCommand(versionCmd)
}

// token returns the access token from the flag or the environment.
func token() string {
	if accessToken != "" {
		return accessToken
	}
	return os.Getenv(tokenEnvVar)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("amremote-ctl %s (commit: %s)\n", version.Version, version.Commit)
	},
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-foundation-team/apple-music-remote/internal/auth"
	"github.com/open-foundation-team/apple-music-remote/internal/config"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the access token",
	Long: `Inspect or rotate the access token clients use to authenticate.

The token is generated on the first server start and kept in the credential
store. When the config pins a token through an environment variable, that
value takes precedence and the store is bypassed.`,
}

func init() {
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenRotateCmd)
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current access token",
	Example: `  # Print the token clients should use
  amremote-server token show`,
	RunE: runTokenShow,
}

func runTokenShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if fixed := cfg.Auth.Token(); fixed != "" {
		fmt.Printf("Token: %s\n", fixed)
		fmt.Printf("\nPinned by the %s environment variable; the credential store is bypassed.\n", cfg.Auth.TokenEnv)
		return nil
	}

	store, err := auth.OpenStore(cfg.Auth.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer store.Close()

	token, err := store.LoadOrCreateToken()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	fmt.Printf("Token: %s\n", token)

	rec, err := store.Info()
	if err == nil && rec != nil {
		fmt.Printf("Created: %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if !rec.RotatedAt.IsZero() {
			fmt.Printf("Rotated: %s\n", rec.RotatedAt.Local().Format("2006-01-02 15:04:05"))
		}
	}

	if !cfg.Auth.RequireToken {
		fmt.Println("\nNote: require_token is disabled in the config, so clients are not asked for it.")
	}

	return nil
}

var tokenRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Replace the access token with a new one",
	Long: `Generate a fresh access token and store it.

Clients holding the old token lose access the next time they authenticate.
Connections that are already authenticated stay up until they disconnect.`,
	Example: `  # Invalidate the old token and print the replacement
  amremote-server token rotate`,
	RunE: runTokenRotate,
}

func runTokenRotate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := auth.OpenStore(cfg.Auth.StorePath)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	defer store.Close()

	token, err := store.Rotate()
	if err != nil {
		return fmt.Errorf("failed to rotate token: %w", err)
	}

	fmt.Printf("New token: %s\n", token)
	fmt.Println("\nUpdate every client with the new token. A running server picks it up")
	fmt.Println("only after a restart, since the token is loaded once at startup.")

	if fixed := cfg.Auth.Token(); fixed != "" {
		fmt.Printf("\nWarning: the %s environment variable pins a different token and takes\n", cfg.Auth.TokenEnv)
		fmt.Println("precedence over the store until it is unset.")
	}

	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "amremote"
	configFile = "config.yaml"
)

// Config is the server configuration, loaded from a YAML file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds the identity and listener settings.
type ServerConfig struct {
	Name     string `yaml:"name"`      // Advertised server name
	Bind     string `yaml:"bind"`      // Listen address for both listeners
	HTTPPort int    `yaml:"http_port"` // Request/response API port
	WSPort   int    `yaml:"ws_port"`   // WebSocket push channel port
}

// AuthConfig controls token authentication.
type AuthConfig struct {
	RequireToken bool   `yaml:"require_token"`
	TokenEnv     string `yaml:"token_env,omitempty"`  // Optional env var holding a fixed token
	StorePath    string `yaml:"store_path,omitempty"` // Credential store location override
}

// DiscoveryConfig controls mDNS advertisement.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance,omitempty"` // mDNS instance name, defaults to server.name
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Token resolves the fixed token from the configured environment variable.
// Returns "" when no env var is configured or the variable is unset, in
// which case the credential store supplies the token instead.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(a.TokenEnv))
}

// defaults returns the configuration used when no file exists.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "Apple Music Remote",
			Bind:     "0.0.0.0",
			HTTPPort: 10767,
			WSPort:   10768,
		},
		Auth: AuthConfig{
			RequireToken: true,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration from path. An empty path resolves to the
// OS-specific default location. A missing file yields the defaults; a
// present but invalid file is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks ranges and enumerations with precise messages. Load
// runs it on every file; the serve command re-runs it after applying
// flag overrides.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Name) == "" {
		return fmt.Errorf("server.name must not be empty")
	}
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", c.Server.HTTPPort)
	}
	if c.Server.WSPort < 1 || c.Server.WSPort > 65535 {
		return fmt.Errorf("server.ws_port %d is out of range [1, 65535]", c.Server.WSPort)
	}
	if c.Server.HTTPPort == c.Server.WSPort {
		return fmt.Errorf("server.http_port and server.ws_port must differ (both %d)", c.Server.HTTPPort)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// Save writes the configuration to path atomically (temp file + rename)
// with a header comment, creating the parent directory when needed.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Apple Music Remote server configuration.
#
# Security note: the access token is NOT stored in this file. It lives in
# the credential store next to this file and can be shown or rotated with
# "amremote-server token".
#
# Location: ` + path + `

`)
	data = append(header, data...)

	// Write to a temporary file first so a crash never leaves a torn config
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// DefaultPath returns the full path to the configuration file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Dir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/amremote or $HOME/.config/amremote
//   - macOS: $HOME/.config/amremote
//   - Windows: %LOCALAPPDATA%\amremote
func Dir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			return filepath.Join(userProfile, "AppData", "Local", appName), nil
		}
		return filepath.Join(localAppData, appName), nil

	default:
		// Linux, macOS and other Unix-like systems
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

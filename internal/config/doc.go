// Package config manages the server's YAML configuration file.
//
// The file lives in the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/amremote/config.yaml or $HOME/.config/amremote/config.yaml
//   - macOS: $HOME/.config/amremote/config.yaml
//   - Windows: %LOCALAPPDATA%\amremote\config.yaml
//
// A missing file yields defaults, so a fresh install runs without any setup.
// Saves are atomic (temp file + rename). Watch feeds live reloads; the only
// hot-applied setting is the log level, everything else needs a restart.
//
// # Security
//
// The access token is never stored in the config file. It lives in the
// credential store (see the auth package), or comes from the environment
// variable named by auth.token_env.
package config

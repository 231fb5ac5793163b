// Package logging provides structured logging for the remote server.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used throughout the server, plus a runtime level switch driven by
// the configuration watcher.
//
// # Log Levels
//
//   - Debug: frame-level detail, message payloads, heartbeat traffic
//   - Info: connection lifecycle, HTTP exchanges, state changes
//   - Warn: non-fatal issues (slow clients, rejected upgrades)
//   - Error: failures that need operator attention
//
// # Usage
//
// Initialize logging at server startup:
//
//	if err := logging.Initialize("info"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// All log functions use structured fields:
//
//	logging.Info("client authenticated",
//	    zap.String("remote_addr", addr),
//	    zap.String("conn_id", id),
//	)
//
// CLI commands that should stay silent unless asked use InitializeFromEnv,
// which reads AMREMOTE_LOG_LEVEL and defaults to a nop logger.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging

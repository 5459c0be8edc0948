// Package logging provides logging utilities for keypool.
//
// This package provides two categories of output:
//   - Structured logs for the daemon (via slog)
//   - User output: formatted messages for CLI commands
//
// # Structured Logging
//
// Logs are written using slog and controlled by verbosity settings:
//
//	logging.Debug("attempt failed", "attempt", n, "error", err)
//	logging.Warn("credential quarantined", "key", pool.Redact(key))
//
// The serve command can tee logs into a file opened with OpenFile.
// Credentials must only ever be logged through pool.Redact.
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Pushing %d keys to %s", n, url)
//	logging.UserSuccess("Pool updated: %d keys", n)
//	logging.UserWarning("Control API not reachable at %s", url)
//	logging.UserError("Failed to read keys: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
package logging

// Package errors provides typed errors with exit codes for keypool.
//
// # Error Types
//
// KeypoolError wraps an error with an exit code:
//
//	type KeypoolError struct {
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess        = 0  // Success
//	ExitGeneralError   = 1  // General/unknown errors
//	ExitConfigError    = 2  // Configuration error
//	ExitControlError   = 3  // Control API unreachable or rejected the call
//	ExitServeError     = 4  // A listener failed
//	ExitCacheError     = 5  // Credential cache unreadable or unwritable
//	ExitKeySourceError = 6  // Credential helper command failed
//
// # Error Constructors
//
//	errors.ConfigError("failed to parse config", err)
//	errors.ControlError("update-keys", err)
//	errors.ServeError("proxy", err)
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
//
// HTTP error bodies returned to API callers are not modelled here; see the
// proxy and control packages.
package errors

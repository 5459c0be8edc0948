// Package health reports liveness and pool health for the daemon.
//
// The health endpoint always answers 200 while the process is responsive;
// the Status field tells callers whether requests can currently be served:
//
//	StatusOK       - at least one credential available
//	StatusDegraded - every credential quarantined (next Select self-heals)
//	StatusEmpty    - no credentials configured
package health

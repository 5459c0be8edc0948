// Package pool holds the rotation state for upstream API credentials.
//
// A Pool keeps an ordered list of credentials and a cursor. Select walks
// the list circularly from the cursor and hands out the first credential
// that is still available, so steady traffic is spread round-robin.
//
// # Quarantine
//
// Callers feed back the outcome of every upstream attempt:
//
//	cred, err := p.Select()
//	...
//	p.ReportSuccess(cred.Value) // resets the failure counter
//	p.ReportFailure(cred.Value) // 401/403/429 from upstream
//
// After DefaultFailureThreshold consecutive failures a credential is marked
// unavailable and skipped. If every credential ends up unavailable the next
// Select resets them all, trading a few retries against dead keys for never
// refusing service outright.
//
// # Replacement
//
// Replace swaps in a new credential list atomically. Concurrent callers
// see either the old list or the new one, never a mix.
//
// # Events
//
// WithObserver receives EventReplaced, EventQuarantined and
// EventSelfHealed notifications, outside the pool lock.
package pool

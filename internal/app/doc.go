// Package app wires the keypool daemon together.
//
// An App owns the credential pool and everything that observes or serves
// it: the credential cache, the audit log, metrics, the health reporter,
// the proxy router and the control handlers.
//
// # Lifecycle
//
//	a, err := app.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	return a.Run(ctx) // serves both surfaces until ctx is cancelled
//
// New seeds the pool from the cache file, falling back to keys_command
// when the cache is empty. Reload re-reads the cache (wired to SIGHUP).
//
// # Testing
//
// Use Listen and Serve separately to learn the bound addresses:
//
//	a, _ := app.New(ctx, cfg, app.WithTransport(rt))
//	_ = a.Listen()
//	go a.Serve(ctx)
//	resp, _ := http.Get("http://" + a.ProxyAddr() + "/health")
package app

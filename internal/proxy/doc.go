// Package proxy forwards API requests upstream, rotating credentials from a
// pool and retrying on credential-attributable failures.
//
// # Attempts
//
// Each inbound request gets up to min(MaxAttempts, pool size) upstream
// attempts. Every attempt selects a credential, injects it as
// "Authorization: Bearer <key>" and forwards method, path, query, headers
// and body verbatim:
//
//   - 2xx: the credential is reported healthy and the response relayed.
//   - 401/403/429: the credential is reported failing and the next attempt
//     uses a different one. The last such response is relayed verbatim.
//   - any other status: relayed verbatim, no retry. An empty 4xx/5xx body
//     becomes an upstream_error body with the same status.
//   - transport error: retried; a 500 proxy_error follows the last one.
//
// # Streaming
//
// A POST to a ".../completions" path whose JSON body sets "stream": true is
// piped chunk by chunk when upstream answers text/event-stream. The client
// context governs the upstream call, so a disconnect aborts the stream.
// Once streaming starts no further attempt is made. A client disconnect is
// recorded as client_gone, an upstream cut-off as stream_aborted.
//
// Upstream Access-Control-* headers are never relayed.
//
// # Errors
//
// Proxy-generated failures use the upstream error shape:
//
//	{"error": {"message": "No API keys configured", "type": "no_keys_error"}}
//
// # Usage
//
//	r, err := proxy.New(&proxy.Config{
//	    UpstreamURL: "https://api.example.com",
//	    MaxAttempts: 3,
//	}, p)
//	http.ListenAndServe(":5100", r)
package proxy

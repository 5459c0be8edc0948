// Package testutil provides test doubles shared by the keypool packages.
//
// # Fake upstream
//
// Upstream is an httptest server that records every attempt it receives
// (method, path, credential, body) and answers through a Responder:
//
//	up := testutil.NewUpstream(t, testutil.RespondStatus(429, `{"error":"slow down"}`))
//	...
//	if up.Count() != 3 {
//	    t.Errorf("expected 3 attempts, got %d", up.Count())
//	}
//
// Responders compose:
//
//	testutil.Sequence(testutil.RespondStatus(401, ""), testutil.RespondJSON(200, body))
//	testutil.ByCredential(map[string]testutil.Responder{"sk-bad": ...}, fallback)
//
// # Configuration
//
// Config returns a daemon configuration rooted in a temporary state
// directory and pointed at a given upstream.
package testutil

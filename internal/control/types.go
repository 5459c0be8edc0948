package control

import (
	"time"

	"github.com/firefly-engineering/keypool/internal/pool"
)

// UpdateKeysRequest is the body of POST /update-keys.
type UpdateKeysRequest struct {
	Keys []string `json:"keys"`
}

// UpdateKeysResponse is returned after a successful replace.
type UpdateKeysResponse struct {
	Success bool       `json:"success"`
	Count   int        `json:"count"`
	Stats   pool.Stats `json:"stats"`
}

// Ports reports the listening ports of both surfaces.
type Ports struct {
	Proxy   int `json:"proxy"`
	Control int `json:"control"`
}

// CredentialStatus is the redacted per-credential view.
type CredentialStatus struct {
	Key                 string     `json:"key"`
	Available           bool       `json:"available"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastUsedAt          *time.Time `json:"last_used_at,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Running     bool               `json:"running"`
	Stats       pool.Stats         `json:"stats"`
	Ports       Ports              `json:"ports"`
	Credentials []CredentialStatus `json:"credentials"`
}

// ErrorResponse is the control surface error body.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func toCredentialStatus(c pool.Credential) CredentialStatus {
	cs := CredentialStatus{
		Key:                 c.Redacted(),
		Available:           c.Available,
		ConsecutiveFailures: c.ConsecutiveFailures,
	}
	if !c.LastUsedAt.IsZero() {
		t := c.LastUsedAt.UTC()
		cs.LastUsedAt = &t
	}
	return cs
}

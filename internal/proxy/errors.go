package proxy

import (
	"encoding/json"
	"net/http"
)

// Error kinds reported in proxy-generated error bodies.
const (
	KindNoKeys          = "no_keys_error"
	KindNoAvailableKeys = "no_available_keys"
	KindUpstream        = "upstream_error"
	KindProxy           = "proxy_error"
	KindRequestTooLarge = "request_too_large"
	KindInvalidRequest  = "invalid_request_error"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// WriteError writes a proxy-generated error in the upstream error shape.
func WriteError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Del("Content-Length")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Message: message, Type: kind}})
}

// Package config provides configuration loading for keypool.
//
// # Configuration File
//
// The daemon reads a TOML file, /etc/keypool/config.toml by default:
//
//	proxy_listen      = "127.0.0.1:5100"
//	control_listen    = "127.0.0.1:5101"
//	upstream_url      = "https://api.daidaibird.top"
//	state_dir         = "/var/lib/keypool"
//	cache_file        = ".keys-cache.json"
//	max_attempts      = 3
//	failure_threshold = 3
//	attempt_timeout   = "30s"
//	monitor_interval  = "1m"
//	audit_log         = "/var/log/keypool/audit.jsonl"
//	keys_command      = "pass show api/keys"
//
// Every key is optional; unset keys keep the defaults from Default.
// Unknown keys are rejected so typos do not pass silently.
//
// # Validation
//
// Load validates after decoding. Callers that override fields from
// command-line flags should call Validate again.
package config

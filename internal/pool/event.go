package pool

// EventType classifies a pool lifecycle event.
type EventType string

const (
	EventReplaced    EventType = "replace"
	EventQuarantined EventType = "quarantine"
	EventSelfHealed  EventType = "self_heal"
)

// Event describes a change in pool state.
type Event struct {
	Type EventType

	// Value is the affected credential (quarantine only).
	Value string

	// Failures is the consecutive failure count at quarantine time.
	Failures int

	// Count is the pool size after a replace or self-heal.
	Count int
}

// redactPrefix is how many leading characters of a credential stay visible.
const redactPrefix = 10

// Redact masks a credential for display, keeping a short prefix.
func Redact(value string) string {
	if len(value) <= redactPrefix {
		return "***"
	}
	return value[:redactPrefix] + "..."
}

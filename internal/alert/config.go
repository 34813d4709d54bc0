package alert

// Event names a webhook can subscribe to. "*" subscribes to all of them.
const (
	EventBlock             = "block"
	EventSelfLockActivated = "self_lock_activated"
	EventUnlockRequested   = "unlock_requested"
	EventUnlockConfirmed   = "unlock_confirmed"
	EventSelfLockExpired   = "self_lock_expired"
	EventTamperExtended    = "tamper_extended"
	EventLockIncremented   = "lock_incremented"
	EventAll               = "*"
)

// AlertConfig defines a webhook alert destination.
type AlertConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"`
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// AlertEvent is the payload sent to webhook endpoints.
type AlertEvent struct {
	Timestamp  string   `json:"timestamp"`
	Event      string   `json:"event"`
	URL        string   `json:"url,omitempty"`
	BlockType  string   `json:"block_type,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
	PolicyID   string   `json:"policy_id,omitempty"`
	EndsAt     string   `json:"ends_at,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	ConfigHash string   `json:"config_hash,omitempty"`
}

package audit

// Event names recorded in the audit log.
const (
	EventCheck             = "check"
	EventStateUpdated      = "state_updated"
	EventSelfLockActivated = "self_lock_activated"
	EventUnlockRequested   = "unlock_requested"
	EventUnlockConfirmed   = "unlock_confirmed"
	EventSelfLockExpired   = "self_lock_expired"
	EventTamperExtended    = "tamper_extended"
	EventLockIncremented   = "lock_incremented"
	EventPassphraseChanged = "passphrase_changed"
	EventPINSet            = "pin_set"
	EventPINUnlocked       = "pin_unlocked"
	EventRecoveryGenerated = "recovery_codes_generated"
	EventRecoveryRedeemed  = "recovery_code_redeemed"
	EventCommandRejected   = "command_rejected"
)

// Decisions recorded for check events.
const (
	DecisionBlock = "block"
	DecisionAllow = "allow"
)

// AuditEntry is one line in the hash-chained JSONL audit log.
// All fields are concrete types (no map[string]any) so json.Marshal
// output is deterministic and the chain hashes are reproducible.
type AuditEntry struct {
	ID         string   `json:"id"`
	Timestamp  string   `json:"ts"`
	Event      string   `json:"event"`
	Decision   string   `json:"decision,omitempty"`
	BlockType  string   `json:"block_type,omitempty"`
	PolicyID   string   `json:"policy_id,omitempty"`
	URL        string   `json:"url,omitempty"`
	Reasons    []string `json:"reasons,omitempty"`
	Detail     string   `json:"detail,omitempty"`
	ConfigHash string   `json:"config_hash"`
	PrevHash   string   `json:"prev_hash"`
}

// IsLockEvent reports whether the entry records a self-lock transition.
func (e AuditEntry) IsLockEvent() bool {
	switch e.Event {
	case EventSelfLockActivated, EventUnlockRequested, EventUnlockConfirmed,
		EventSelfLockExpired, EventTamperExtended, EventLockIncremented:
		return true
	default:
		return false
	}
}

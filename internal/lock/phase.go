package lock

import "github.com/ppiankov/contentlock/internal/model"

// Phase is the derived state of a self-lock session. The concrete types
// are Inactive, Active and PendingConfirmation.
type Phase interface {
	phase()
}

// Inactive means no session is enforcing.
type Inactive struct{}

// Active is a running session with no live unlock request.
type Active struct {
	EndsAtEpochMs int64
	RemainingMs   int64
}

// PendingConfirmation is a running session with an unexpired unlock
// phrase waiting to be typed back.
type PendingConfirmation struct {
	EndsAtEpochMs          int64
	RemainingMs            int64
	PhraseExpiresAtEpochMs int64
	CooldownUntilEpochMs   int64
}

func (Inactive) phase()            {}
func (Active) phase()              {}
func (PendingConfirmation) phase() {}

// PhaseOf derives the phase of s at nowMs. A session past its end time
// reads as Inactive even before a tick has deactivated it.
func PhaseOf(s model.SelfLock, nowMs int64) Phase {
	if !s.Active || nowMs >= s.EndsAtEpochMs {
		return Inactive{}
	}
	remaining := s.EndsAtEpochMs - nowMs
	if s.PendingUnlockPhrase != nil && nowMs <= s.PendingUnlockPhraseExpiry {
		return PendingConfirmation{
			EndsAtEpochMs:          s.EndsAtEpochMs,
			RemainingMs:            remaining,
			PhraseExpiresAtEpochMs: s.PendingUnlockPhraseExpiry,
			CooldownUntilEpochMs:   s.CooldownUntilEpochMs,
		}
	}
	return Active{EndsAtEpochMs: s.EndsAtEpochMs, RemainingMs: remaining}
}

// PhaseName returns a short label for logs and status output.
func PhaseName(p Phase) string {
	switch p.(type) {
	case Active:
		return "active"
	case PendingConfirmation:
		return "pending-confirmation"
	default:
		return "inactive"
	}
}

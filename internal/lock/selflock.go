package lock

import (
	"fmt"

	"github.com/ppiankov/contentlock/internal/clock"
	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/secret"
)

// ActivateParams describes a new self-lock session.
type ActivateParams struct {
	DurationMs       int64
	RequiresPassword bool
	PassphraseHash   string
	CooldownMinutes  int
	AllowEarlyUnlock bool
	IncrementOnBlock bool
	IncrementMinutes int

	// Optional. Empty scope and nil IgnoreAllowlist keep the stored values.
	Scope           model.Scope
	IgnoreAllowlist *bool
}

// Activate starts a session, overwriting any running one.
func Activate(state *model.PolicyState, c clock.Clock, p ActivateParams) error {
	if p.DurationMs <= 0 {
		return ErrInvalidDuration
	}
	if p.Scope != "" && !p.Scope.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidScope, p.Scope)
	}
	if p.CooldownMinutes < 0 {
		p.CooldownMinutes = 0
	}

	now := c.NowMs()
	sl := &state.SelfLock
	sl.Active = true
	sl.RequiresPassword = p.RequiresPassword
	sl.PassphraseHash = nil
	if p.PassphraseHash != "" {
		sl.PassphraseHash = model.StringPtr(p.PassphraseHash)
	}
	sl.AllowEarlyUnlock = p.AllowEarlyUnlock
	sl.CooldownMinutes = p.CooldownMinutes
	sl.StartedAtEpochMs = now
	sl.EndsAtEpochMs = now + p.DurationMs
	sl.ElapsedMonotonicMsAtStart = c.MonotonicMs()
	sl.CooldownUntilEpochMs = 0
	sl.ClearPending()
	sl.IncrementOnBlock = p.IncrementOnBlock
	sl.IncrementMinutes = p.IncrementMinutes
	if sl.IncrementMinutes <= 0 {
		sl.IncrementMinutes = model.DefaultIncrementMinutes
	}
	if p.Scope != "" {
		sl.Scope = p.Scope
	}
	if p.IgnoreAllowlist != nil {
		sl.IgnoreAllowlist = *p.IgnoreAllowlist
	}
	return nil
}

// RefreshResult reports what Refresh changed.
type RefreshResult struct {
	Changed      bool
	Expired      bool
	ExtendedByMs int64
}

// Refresh applies tamper correction, then expiry, to an active session.
// It also drops an unlock phrase that has outlived its expiry. Callers
// persist the state when Changed is set.
func Refresh(state *model.PolicyState, c clock.Clock) RefreshResult {
	sl := &state.SelfLock
	if !sl.Active {
		return RefreshResult{}
	}

	var res RefreshResult
	rb := clock.DetectRollback(c, sl.StartedAtEpochMs, sl.ElapsedMonotonicMsAtStart)
	if rb.RolledBack {
		sl.EndsAtEpochMs += rb.ExtendedDurationMs
		// Re-anchor so the same rollback is not counted again next time.
		sl.ElapsedMonotonicMsAtStart += rb.ExtendedDurationMs
		res.ExtendedByMs = rb.ExtendedDurationMs
		res.Changed = true
	}

	now := c.NowMs()
	if now >= sl.EndsAtEpochMs {
		sl.Deactivate()
		res.Expired = true
		res.Changed = true
		return res
	}

	if sl.PendingUnlockPhrase != nil && now > sl.PendingUnlockPhraseExpiry {
		sl.ClearPending()
		res.Changed = true
	}
	return res
}

// TickResult is the outcome of a scheduled tick.
type TickResult struct {
	RefreshResult
	// Active is false when the scheduler should cancel itself.
	Active bool
}

// Tick runs one scheduled check of the session.
func Tick(state *model.PolicyState, c clock.Clock) TickResult {
	if !state.SelfLock.Active {
		return TickResult{}
	}
	r := Refresh(state, c)
	return TickResult{RefreshResult: r, Active: state.SelfLock.Active}
}

// UnlockChallenge is returned by a successful early-unlock request. The
// phrase is shown to the user once.
type UnlockChallenge struct {
	Phrase            string
	CooldownMs        int64
	PhraseExpiresAtMs int64
}

// RequestEarlyUnlock checks the passphrase and starts the cooldown.
func RequestEarlyUnlock(state *model.PolicyState, c clock.Clock, passphrase string) (UnlockChallenge, error) {
	sl := &state.SelfLock
	if !sl.Active {
		return UnlockChallenge{}, ErrNotActive
	}
	if !sl.AllowEarlyUnlock {
		return UnlockChallenge{}, ErrEarlyUnlockDisabled
	}
	if sl.RequiresPassword {
		if sl.PassphraseHash == nil || !secret.Verify(passphrase, *sl.PassphraseHash) {
			return UnlockChallenge{}, ErrInvalidPassphrase
		}
	}

	phrase, err := secret.NewPhrase()
	if err != nil {
		return UnlockChallenge{}, err
	}
	now := c.NowMs()
	cooldownMs := int64(sl.CooldownMinutes) * model.MinuteMs

	// The typing window opens when the cooldown ends.
	sl.PendingUnlockPhrase = model.StringPtr(phrase)
	sl.CooldownUntilEpochMs = now + cooldownMs
	sl.PendingUnlockPhraseExpiry = sl.CooldownUntilEpochMs + model.UnlockPhraseTTLMs

	return UnlockChallenge{
		Phrase:            phrase,
		CooldownMs:        cooldownMs,
		PhraseExpiresAtMs: sl.PendingUnlockPhraseExpiry,
	}, nil
}

// ConfirmUnlock ends the session when the typed phrase matches, the
// phrase is still valid and the cooldown has passed. Checks run in that
// fixed order: active, phrase expiry, cooldown, phrase match.
//
// An expired phrase is cleared, so callers should persist on
// ErrPhraseExpired as well as on success.
func ConfirmUnlock(state *model.PolicyState, c clock.Clock, phrase string) error {
	sl := &state.SelfLock
	if !sl.Active {
		return ErrNotActive
	}
	now := c.NowMs()
	if now > sl.PendingUnlockPhraseExpiry {
		sl.ClearPending()
		return ErrPhraseExpired
	}
	if now < sl.CooldownUntilEpochMs {
		return ErrCooldownNotElapsed
	}
	if sl.PendingUnlockPhrase == nil || phrase != *sl.PendingUnlockPhrase {
		return ErrIncorrectPhrase
	}
	sl.Deactivate()
	return nil
}

// NotifyBlockOccurred extends an active session configured to grow on
// every block. It reports whether the end time moved.
func NotifyBlockOccurred(state *model.PolicyState) (bool, int64) {
	sl := &state.SelfLock
	if !sl.Active || !sl.IncrementOnBlock {
		return false, 0
	}
	sl.EndsAtEpochMs += int64(sl.IncrementMinutes) * model.MinuteMs
	return true, sl.EndsAtEpochMs
}

// SetPassphrase stores a new self-lock passphrase hash.
func SetPassphrase(state *model.PolicyState, passphrase string) error {
	h, err := secret.Hash(passphrase)
	if err != nil {
		return err
	}
	state.SelfLock.PassphraseHash = model.StringPtr(h)
	return nil
}

package lock

import (
	"github.com/ppiankov/contentlock/internal/clock"
	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/secret"
)

// PassKind selects which stored secret VerifyPassphrase checks.
type PassKind string

const (
	PassSettings PassKind = "settings"
	PassSelfLock PassKind = "self-lock"
)

// PinStatus is the settings-lock view returned to UI surfaces.
type PinStatus struct {
	HasPIN      bool  `json:"hasPIN"`
	IsLocked    bool  `json:"isLocked"`
	RemainingMs int64 `json:"remainingMs"`
}

func grantPinWindow(state *model.PolicyState, c clock.Clock) int64 {
	state.PinLock.Locked = false
	state.PinLock.UnlockedUntilEpochMs = c.NowMs() + model.PinUnlockWindowMs
	return state.PinLock.UnlockedUntilEpochMs
}

// SetSettingsPIN stores a new PIN and opens the unlock window so the
// user can keep editing.
func SetSettingsPIN(state *model.PolicyState, c clock.Clock, pin string) (int64, error) {
	h, err := secret.Hash(pin)
	if err != nil {
		return 0, err
	}
	state.Parental.SettingsPINHash = model.StringPtr(h)
	return grantPinWindow(state, c), nil
}

// PinUnlock opens the unlock window when pin matches.
func PinUnlock(state *model.PolicyState, c clock.Clock, pin string) (int64, error) {
	h := state.Parental.SettingsPINHash
	if h == nil || *h == "" {
		return 0, ErrNoPINSet
	}
	if !secret.Verify(pin, *h) {
		return 0, ErrInvalidPIN
	}
	return grantPinWindow(state, c), nil
}

// CheckPinStatus relocks when the window has elapsed. The bool result
// reports whether state changed and needs persisting.
func CheckPinStatus(state *model.PolicyState, c clock.Clock) (PinStatus, bool) {
	now := c.NowMs()
	changed := false
	pl := &state.PinLock
	if pl.UnlockedUntilEpochMs > 0 && now >= pl.UnlockedUntilEpochMs {
		pl.Locked = true
		pl.UnlockedUntilEpochMs = 0
		changed = true
	}
	hasPIN := state.Parental.SettingsPINHash != nil && *state.Parental.SettingsPINHash != ""
	remaining := pl.UnlockedUntilEpochMs - now
	if remaining < 0 {
		remaining = 0
	}
	return PinStatus{
		HasPIN:      hasPIN,
		IsLocked:    hasPIN && pl.Locked,
		RemainingMs: remaining,
	}, changed
}

// VerifyPassphrase checks pass against the settings PIN or the self-lock
// passphrase. A missing hash never verifies.
func VerifyPassphrase(state *model.PolicyState, pass string, kind PassKind) bool {
	var h *string
	if kind == PassSettings {
		h = state.Parental.SettingsPINHash
	} else {
		h = state.SelfLock.PassphraseHash
	}
	if h == nil {
		return false
	}
	return secret.Verify(pass, *h)
}

// GenerateRecoveryCodes replaces the stored recovery hashes and returns
// the plaintext codes. They cannot be recovered later.
func GenerateRecoveryCodes(state *model.PolicyState, n int) ([]string, error) {
	codes, err := secret.NewRecoveryCodes(n)
	if err != nil {
		return nil, err
	}
	hashes := make([]string, len(codes))
	for i, code := range codes {
		h, err := secret.Hash(code)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	state.RecoveryCodesHash = hashes
	return codes, nil
}

// RedeemRecoveryCode consumes a matching code and opens the settings
// unlock window. It never ends a self-lock.
func RedeemRecoveryCode(state *model.PolicyState, c clock.Clock, code string) (int64, error) {
	code = secret.NormalizeRecoveryCode(code)
	if code == "" {
		return 0, ErrInvalidRecoveryCode
	}
	for i, h := range state.RecoveryCodesHash {
		if !secret.Verify(code, h) {
			continue
		}
		state.RecoveryCodesHash = append(state.RecoveryCodesHash[:i:i], state.RecoveryCodesHash[i+1:]...)
		return grantPinWindow(state, c), nil
	}
	return 0, ErrInvalidRecoveryCode
}

package service

import (
	"github.com/ppiankov/contentlock/internal/lock"
	"github.com/ppiankov/contentlock/internal/model"
)

// CheckBlockRequest asks for a verdict on one page. HTML, when set, is
// scanned for rating meta tags and the resulting tags join Signals.
type CheckBlockRequest struct {
	Signals []string `json:"signals"`
	URL     string   `json:"url"`
	HTML    string   `json:"html,omitempty"`
}

// UpdateStateRequest is a partial state document.
type UpdateStateRequest struct {
	Updates map[string]any `json:"updates"`
}

// ActivateSelfLockRequest starts a session. Passphrase is hashed by the
// daemon; PassphraseHash is accepted from clients that hash themselves.
// When both are empty the stored passphrase is kept. Nil pointers keep
// the stored setting.
type ActivateSelfLockRequest struct {
	DurationMs       int64       `json:"durationMs"`
	RequiresPassword bool        `json:"requiresPassword"`
	Passphrase       string      `json:"passphrase,omitempty"`
	PassphraseHash   string      `json:"passphraseHash,omitempty"`
	CooldownMinutes  int         `json:"cooldownMinutes"`
	AllowEarlyUnlock *bool       `json:"allowEarlyUnlock,omitempty"`
	IncrementOnBlock bool        `json:"incrementOnBlock"`
	IncrementMinutes int         `json:"incrementMinutes"`
	Scope            model.Scope `json:"scope,omitempty"`
	IgnoreAllowlist  *bool       `json:"ignoreAllowlist,omitempty"`
}

type RequestEarlyUnlockRequest struct {
	Passphrase string `json:"passphrase"`
}

type ConfirmUnlockRequest struct {
	Phrase string `json:"phrase"`
}

type SetPassphraseRequest struct {
	Passphrase string `json:"passphrase"`
}

type SetPINRequest struct {
	PIN string `json:"pin"`
}

type PinUnlockRequest struct {
	PIN string `json:"pin"`
}

type VerifyPassphraseRequest struct {
	Passphrase string        `json:"passphrase"`
	PassType   lock.PassKind `json:"passType"`
}

type GenerateRecoveryCodesRequest struct {
	Count int `json:"count,omitempty"`
}

type RedeemRecoveryCodeRequest struct {
	Code string `json:"code"`
}

// SafeRequestRequest asks how one outbound request should be rewritten.
type SafeRequestRequest struct {
	URL          string `json:"url"`
	ResourceType string `json:"resourceType,omitempty"`
}

// SuccessResult acknowledges a mutation.
type SuccessResult struct {
	Success bool `json:"success"`
}

// UnlockRequestResult carries the phrase the user must type back.
type UnlockRequestResult struct {
	Success                bool   `json:"success"`
	UnlockPhrase           string `json:"unlockPhrase"`
	CooldownMs             int64  `json:"cooldownMs"`
	PhraseExpiresAtEpochMs int64  `json:"phraseExpiresAtEpochMs"`
}

// PinWindowResult reports the end of the settings unlock window.
type PinWindowResult struct {
	Success              bool  `json:"success"`
	UnlockedUntilEpochMs int64 `json:"unlockedUntilEpochMs"`
}

type VerifyResult struct {
	Valid bool `json:"valid"`
}

// BlockOccurredResult reports whether the session was extended.
type BlockOccurredResult struct {
	Success    bool  `json:"success"`
	NewEndTime int64 `json:"newEndTime,omitempty"`
}

// TickResult is the outcome of one scheduler tick.
type TickResult struct {
	Active       bool  `json:"active"`
	Expired      bool  `json:"expired"`
	ExtendedByMs int64 `json:"extendedByMs"`
}

// LockStatusResult describes the self-lock phase for status surfaces.
type LockStatusResult struct {
	Phase                  string          `json:"phase"`
	Active                 bool            `json:"active"`
	LockInfo               *model.LockInfo `json:"lockInfo,omitempty"`
	PhraseExpiresAtEpochMs int64           `json:"phraseExpiresAtEpochMs,omitempty"`
	SchedulerRunning       bool            `json:"schedulerRunning"`
}

type RecoveryCodesResult struct {
	Codes []string `json:"codes"`
}

type StateResult struct {
	State *model.PolicyState `json:"state"`
}

// Requests for commands that take no input.
type (
	GetStateRequest            struct{}
	CheckPinStatusRequest      struct{}
	NotifyBlockOccurredRequest struct{}
	TickRequest                struct{}
	LockStatusRequest          struct{}
)

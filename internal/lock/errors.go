// Package lock implements the self-lock and settings-PIN lifecycles as
// pure transitions over the policy state.
package lock

import "errors"

// User-facing outcomes. None of them is fatal.
var (
	ErrNotActive           = errors.New("self-lock not active")
	ErrEarlyUnlockDisabled = errors.New("early unlock disabled for this session")
	ErrInvalidPassphrase   = errors.New("invalid passphrase")
	ErrPhraseExpired       = errors.New("unlock phrase expired")
	ErrCooldownNotElapsed  = errors.New("cool-down period not complete")
	ErrIncorrectPhrase     = errors.New("incorrect phrase")
	ErrInvalidPIN          = errors.New("invalid PIN")
	ErrNoPINSet            = errors.New("no PIN set")
	ErrInvalidRecoveryCode = errors.New("invalid recovery code")
	ErrInvalidDuration     = errors.New("lock duration must be positive")
	ErrInvalidScope        = errors.New("unknown self-lock scope")
)

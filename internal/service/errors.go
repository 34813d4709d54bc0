package service

import (
	"errors"

	"github.com/ppiankov/contentlock/internal/lock"
	"github.com/ppiankov/contentlock/internal/ratelimit"
	"github.com/ppiankov/contentlock/internal/secret"
	"github.com/ppiankov/contentlock/internal/store"
)

// Error kinds reported to clients. They are stable wire strings.
const (
	KindNotActive           = "NotActive"
	KindEarlyUnlockDisabled = "EarlyUnlockDisabled"
	KindInvalidPassphrase   = "InvalidPassphrase"
	KindPhraseExpired       = "PhraseExpired"
	KindCooldownNotElapsed  = "CooldownNotElapsed"
	KindIncorrectPhrase     = "IncorrectPhrase"
	KindInvalidPIN          = "InvalidPIN"
	KindNoPINSet            = "NoPINSet"
	KindInvalidRecoveryCode = "InvalidRecoveryCode"
	KindInvalidRequest      = "InvalidRequest"
	KindTooManyAttempts     = "TooManyAttempts"
	KindInternal            = "Internal"
)

// ErrInvalidRequest marks malformed command input.
var ErrInvalidRequest = errors.New("invalid request")

var kinds = []struct {
	err  error
	kind string
}{
	{lock.ErrNotActive, KindNotActive},
	{lock.ErrEarlyUnlockDisabled, KindEarlyUnlockDisabled},
	{lock.ErrInvalidPassphrase, KindInvalidPassphrase},
	{lock.ErrPhraseExpired, KindPhraseExpired},
	{lock.ErrCooldownNotElapsed, KindCooldownNotElapsed},
	{lock.ErrIncorrectPhrase, KindIncorrectPhrase},
	{lock.ErrInvalidPIN, KindInvalidPIN},
	{lock.ErrNoPINSet, KindNoPINSet},
	{lock.ErrInvalidRecoveryCode, KindInvalidRecoveryCode},
	{lock.ErrInvalidDuration, KindInvalidRequest},
	{lock.ErrInvalidScope, KindInvalidRequest},
	{store.ErrInvalidUpdate, KindInvalidRequest},
	{secret.ErrEmpty, KindInvalidRequest},
	{ErrInvalidRequest, KindInvalidRequest},
	{ratelimit.ErrTooManyAttempts, KindTooManyAttempts},
}

// ErrorKind maps an error to its client-facing kind. Storage and other
// unexpected failures map to KindInternal.
func ErrorKind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsUserError reports whether err is an expected outcome rather than a
// daemon failure.
func IsUserError(err error) bool {
	return err != nil && ErrorKind(err) != KindInternal
}

// Class groups error kinds by how transports report them.
type Class int

const (
	ClassInternal Class = iota
	// ClassPrecondition: the session is not in a state that allows the command.
	ClassPrecondition
	// ClassDenied: a secret did not verify, or too many recently failed.
	ClassDenied
	ClassInvalid
)

// Classify returns the transport class of err.
func Classify(err error) Class {
	switch ErrorKind(err) {
	case KindNotActive, KindEarlyUnlockDisabled, KindPhraseExpired, KindCooldownNotElapsed, KindNoPINSet:
		return ClassPrecondition
	case KindInvalidPassphrase, KindIncorrectPhrase, KindInvalidPIN, KindInvalidRecoveryCode, KindTooManyAttempts:
		return ClassDenied
	case KindInvalidRequest:
		return ClassInvalid
	default:
		return ClassInternal
	}
}

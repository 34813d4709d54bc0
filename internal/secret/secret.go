// Package secret hashes passphrases, PINs and recovery codes, and
// generates unlock phrases.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt cost used for new hashes. Tests lower it.
var Cost = bcrypt.DefaultCost

// ErrEmpty is returned when hashing an empty secret.
var ErrEmpty = errors.New("secret must not be empty")

// Hash returns a bcrypt hash of s.
func Hash(s string) (string, error) {
	if s == "" {
		return "", ErrEmpty
	}
	h, err := bcrypt.GenerateFromPassword([]byte(s), Cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(h), nil
}

// LegacyHash returns the unsalted lowercase SHA-256 hex digest used by
// older browser clients.
func LegacyHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether s matches hash. Both bcrypt hashes and legacy
// SHA-256 hex digests are accepted. An empty hash never matches.
func Verify(s, hash string) bool {
	if hash == "" {
		return false
	}
	if isBcrypt(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(s)) == nil
	}
	computed := LegacyHash(s)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(hash))) == 1
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// phraseWords is the NATO phonetic alphabet.
var phraseWords = []string{
	"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel",
	"india", "juliet", "kilo", "lima", "mike", "november", "oscar", "papa",
	"quebec", "romeo", "sierra", "tango", "uniform", "victor", "whiskey", "xray",
	"yankee", "zulu",
}

// PhraseWordCount is the number of words in an unlock phrase.
const PhraseWordCount = 3

// NewPhrase returns a hyphen-joined phrase of three phonetic words.
func NewPhrase() (string, error) {
	words := make([]string, PhraseWordCount)
	limit := big.NewInt(int64(len(phraseWords)))
	for i := range words {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate phrase: %w", err)
		}
		words[i] = phraseWords[n.Int64()]
	}
	return strings.Join(words, "-"), nil
}

// DefaultRecoveryCodeCount is how many recovery codes are issued at once.
const DefaultRecoveryCodeCount = 5

// NewRecoveryCodes returns n codes of eight uppercase hex characters.
func NewRecoveryCodes(n int) ([]string, error) {
	if n <= 0 {
		n = DefaultRecoveryCodeCount
	}
	codes := make([]string, n)
	buf := make([]byte, 4)
	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate recovery code: %w", err)
		}
		codes[i] = strings.ToUpper(hex.EncodeToString(buf))
	}
	return codes, nil
}

// NormalizeRecoveryCode strips spaces and dashes and uppercases the code,
// so "ab12-cd34" matches "AB12CD34".
func NormalizeRecoveryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}

package audit

import (
	"encoding/json"
	"errors"
	"fmt"
)

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Tail      string `json:"tail,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// brokenLink stops a scan at the first line that does not chain.
type brokenLink struct {
	line   int
	reason string
}

func (b *brokenLink) Error() string {
	return fmt.Sprintf("line %d: %s", b.line, b.reason)
}

// Verify walks the log checking that each prev_hash is the hash of the
// line before it (the genesis hash for line 1) and that no entry ID
// repeats. On failure it reports the first offending line.
func Verify(path string) VerifyResult {
	want := GenesisHash
	ids := make(map[string]int)
	lines := 0

	err := eachLine(path, func(n int, line []byte) error {
		var entry AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return &brokenLink{n, fmt.Sprintf("parse error: %v", err)}
		}
		if entry.PrevHash != want {
			if n == 1 {
				return &brokenLink{n, fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", entry.PrevHash)}
			}
			return &brokenLink{n, fmt.Sprintf("hash mismatch: expected %s, got %s", want, entry.PrevHash)}
		}
		if entry.ID != "" {
			if first, dup := ids[entry.ID]; dup {
				return &brokenLink{n, fmt.Sprintf("entry id %s already used on line %d", entry.ID, first)}
			}
			ids[entry.ID] = n
		}
		want = HashLine(line)
		lines = n
		return nil
	})

	var broken *brokenLink
	switch {
	case errors.As(err, &broken):
		return VerifyResult{Lines: lines, Error: broken.reason, ErrorLine: broken.line}
	case err != nil:
		return VerifyResult{Error: err.Error()}
	}
	return VerifyResult{Valid: true, Lines: lines, Tail: want}
}

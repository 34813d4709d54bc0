package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampFormat is the layout used in audit entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// ReplayFilter selects entries for a replay. Zero values match everything.
type ReplayFilter struct {
	Event     string
	BlockOnly bool
	From      time.Time
	To        time.Time
}

// ReplaySummary counts what a replayed window contains.
type ReplaySummary struct {
	Total          int    `json:"total"`
	BlockCount     int    `json:"block_count"`
	AllowCount     int    `json:"allow_count"`
	SelfLockBlocks int    `json:"self_lock_blocks"`
	ParentalBlocks int    `json:"parental_blocks"`
	LockEvents     int    `json:"lock_events"`
	Rejected       int    `json:"rejected"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// ReplayResult holds the filtered entries and their summary.
type ReplayResult struct {
	Filter  string        `json:"filter"`
	Entries []AuditEntry  `json:"entries"`
	Summary ReplaySummary `json:"summary"`
}

// Replay reads the audit log and returns entries matching the filter.
// Malformed lines are skipped; use Verify to detect them.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	result := &ReplayResult{Filter: filter.describe()}
	err := eachLine(path, func(_ int, line []byte) error {
		var entry AuditEntry
		if json.Unmarshal(line, &entry) != nil || !filter.matches(entry) {
			return nil
		}
		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return result, nil
}

func (f ReplayFilter) matches(entry AuditEntry) bool {
	if f.Event != "" && entry.Event != f.Event {
		return false
	}
	if f.BlockOnly && entry.Decision != DecisionBlock {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, entry.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

func (f ReplayFilter) describe() string {
	switch {
	case f.Event != "" && f.BlockOnly:
		return f.Event + " (blocks)"
	case f.Event != "":
		return f.Event
	case f.BlockOnly:
		return "blocks"
	default:
		return "all"
	}
}

func updateSummary(s *ReplaySummary, entry AuditEntry) {
	s.Total++

	switch entry.Decision {
	case DecisionBlock:
		s.BlockCount++
		switch entry.BlockType {
		case "self-lock":
			s.SelfLockBlocks++
		case "parental":
			s.ParentalBlocks++
		}
	case DecisionAllow:
		s.AllowCount++
	}

	if entry.IsLockEvent() {
		s.LockEvents++
	}
	if entry.Event == EventCommandRejected {
		s.Rejected++
	}

	if s.FirstTimestamp == "" {
		s.FirstTimestamp = entry.Timestamp
	}
	s.LastTimestamp = entry.Timestamp
}

// Tail returns the last n entries of the log, oldest first. Lines that do
// not parse are skipped. n <= 0 returns every entry.
func Tail(path string, n int) ([]AuditEntry, error) {
	var entries []AuditEntry
	err := eachLine(path, func(_ int, line []byte) error {
		var entry AuditEntry
		if json.Unmarshal(line, &entry) != nil {
			return nil
		}
		if n > 0 && len(entries) == n {
			entries = append(entries[:0], entries[1:]...)
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return entries, nil
}

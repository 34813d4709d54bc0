package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const ruleWidth = 66

// FormatTimeline renders a replay as one row per entry between a header
// naming the filter and time range and a one-line summary.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Filter: %s | No entries found.\n", result.Filter)
	}

	rule := strings.Repeat("─", ruleWidth) + "\n"
	var b strings.Builder
	fmt.Fprintf(&b, "Filter: %s | %s to %s UTC\n", result.Filter,
		reformat(result.Summary.FirstTimestamp, "2006-01-02 15:04:05"),
		reformat(result.Summary.LastTimestamp, "15:04:05"))
	b.WriteString(rule)
	for _, e := range result.Entries {
		fmt.Fprintf(&b, "%-10s %-24s %-20s %s\n",
			reformat(e.Timestamp, "15:04:05"),
			truncate(e.Event, 24),
			outcome(e),
			truncate(subject(e), 48))
	}
	b.WriteString(rule)
	b.WriteString(summaryLine(result.Summary))
	return b.String()
}

// FormatJSON renders a replay as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

// outcome is the decision in capitals with the block type, e.g.
// "BLOCK (self-lock)". Lock events have none.
func outcome(e AuditEntry) string {
	s := strings.ToUpper(e.Decision)
	if e.BlockType != "" {
		s += " (" + e.BlockType + ")"
	}
	return s
}

func subject(e AuditEntry) string {
	if e.URL != "" {
		return e.URL
	}
	return e.Detail
}

// reformat re-renders an entry timestamp with layout, leaving values
// that do not parse untouched.
func reformat(ts, layout string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format(layout)
}

func summaryLine(s ReplaySummary) string {
	parts := []string{fmt.Sprintf("%d entries", s.Total)}
	add := func(n int, format string, args ...any) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf(format, args...))
		}
	}
	add(s.BlockCount, "%d block (%d self-lock, %d parental)", s.BlockCount, s.SelfLockBlocks, s.ParentalBlocks)
	add(s.AllowCount, "%d allow", s.AllowCount)
	add(s.LockEvents, "%d lock events", s.LockEvents)
	add(s.Rejected, "%d rejected", s.Rejected)
	return "Summary: " + strings.Join(parts, ", ") + "\n"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

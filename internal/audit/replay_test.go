package audit

import (
	"path/filepath"
	"testing"
	"time"
)

// writeTestLog creates a temp audit log with known entries for testing.
func writeTestLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-audit.jsonl")
	log, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	base := time.Date(2025, 1, 15, 14, 0, 0, 0, time.UTC)
	at := func(sec int) string { return base.Add(time.Duration(sec) * time.Second).Format(TimestampFormat) }

	entries := []AuditEntry{
		{Timestamp: at(0), Event: EventSelfLockActivated, Detail: "scope=sexual duration=60m"},
		{Timestamp: at(2), Event: EventCheck, Decision: DecisionAllow, URL: "https://news.example/", PolicyID: "signals.none"},
		{Timestamp: at(4), Event: EventCheck, Decision: DecisionBlock, BlockType: "self-lock", URL: "https://adult.example/", Reasons: []string{"RTA Label"}, PolicyID: "selflock.scope.sexual"},
		{Timestamp: at(6), Event: EventLockIncremented, Detail: "+5m"},
		{Timestamp: at(8), Event: EventCheck, Decision: DecisionBlock, BlockType: "parental", URL: "https://casino.example/", Reasons: []string{"Gambling"}, PolicyID: "parental.category.gambling"},
		{Timestamp: at(10), Event: EventCommandRejected, Detail: "ConfirmUnlock: CooldownNotElapsed"},
	}

	for _, e := range entries {
		if err := log.Record(e); err != nil {
			t.Fatal(err)
		}
	}

	return path
}

func TestReplayAllEntries(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 6 {
		t.Errorf("expected 6 entries, got %d", len(result.Entries))
	}
	if result.Filter != "all" {
		t.Errorf("expected filter label all, got %q", result.Filter)
	}
	for _, e := range result.Entries {
		if e.ID == "" {
			t.Error("expected every recorded entry to carry an id")
		}
	}
}

func TestReplayFiltersByEvent(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{Event: EventCheck})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 3 {
		t.Errorf("expected 3 check entries, got %d", len(result.Entries))
	}
	for _, e := range result.Entries {
		if e.Event != EventCheck {
			t.Errorf("unexpected event: %s", e.Event)
		}
	}
}

func TestReplayBlockOnly(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{BlockOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 {
		t.Errorf("expected 2 block entries, got %d", len(result.Entries))
	}
}

func TestReplayTimeRange(t *testing.T) {
	path := writeTestLog(t)

	tests := []struct {
		name string
		from time.Time
		to   time.Time
		want int
	}{
		{"from", time.Date(2025, 1, 15, 14, 0, 5, 0, time.UTC), time.Time{}, 3},
		{"to", time.Time{}, time.Date(2025, 1, 15, 14, 0, 3, 0, time.UTC), 2},
		{"both", time.Date(2025, 1, 15, 14, 0, 1, 0, time.UTC), time.Date(2025, 1, 15, 14, 0, 7, 0, time.UTC), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Replay(path, ReplayFilter{From: tt.from, To: tt.to})
			if err != nil {
				t.Fatal(err)
			}
			if len(result.Entries) != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, len(result.Entries))
			}
		})
	}
}

func TestReplayEmptyResult(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{Event: EventPINSet})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(result.Entries))
	}
	if result.Summary.Total != 0 {
		t.Errorf("expected 0 total, got %d", result.Summary.Total)
	}
}

func TestReplaySummaryCountsCorrect(t *testing.T) {
	path := writeTestLog(t)

	result, err := Replay(path, ReplayFilter{})
	if err != nil {
		t.Fatal(err)
	}

	s := result.Summary
	if s.Total != 6 {
		t.Errorf("total: expected 6, got %d", s.Total)
	}
	if s.BlockCount != 2 {
		t.Errorf("block: expected 2, got %d", s.BlockCount)
	}
	if s.SelfLockBlocks != 1 || s.ParentalBlocks != 1 {
		t.Errorf("expected 1 self-lock and 1 parental block, got %d and %d", s.SelfLockBlocks, s.ParentalBlocks)
	}
	if s.AllowCount != 1 {
		t.Errorf("allow: expected 1, got %d", s.AllowCount)
	}
	if s.LockEvents != 2 {
		t.Errorf("lock events: expected 2, got %d", s.LockEvents)
	}
	if s.Rejected != 1 {
		t.Errorf("rejected: expected 1, got %d", s.Rejected)
	}
	if s.FirstTimestamp != "2025-01-15T14:00:00.000Z" {
		t.Errorf("unexpected first timestamp %s", s.FirstTimestamp)
	}
	if s.LastTimestamp != "2025-01-15T14:00:10.000Z" {
		t.Errorf("unexpected last timestamp %s", s.LastTimestamp)
	}
}

func TestReplayMissingFile(t *testing.T) {
	if _, err := Replay(filepath.Join(t.TempDir(), "missing.jsonl"), ReplayFilter{}); err == nil {
		t.Fatal("expected error for missing log")
	}
}

func TestTailKeepsNewest(t *testing.T) {
	path := writeTestLog(t)

	entries, err := Tail(path, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Event != EventCheck || entries[1].Event != EventCommandRejected {
		t.Errorf("expected last two entries in order, got %s, %s", entries[0].Event, entries[1].Event)
	}

	all, err := Tail(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 6 {
		t.Errorf("expected 6 entries with n=0, got %d", len(all))
	}
}

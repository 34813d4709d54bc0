package policy

import (
	"testing"

	"github.com/ppiankov/contentlock/internal/model"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0s"},
		{999, "0s"},
		{3000, "3s"},
		{123000, "2m 3s"},
		{3723000, "1h 2m 3s"},
		{-5000, "0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestExplainLockInfo(t *testing.T) {
	s := lockedState(model.ScopeSexual)
	s.SelfLock.RequiresPassword = true
	s.SelfLock.AllowEarlyUnlock = true
	now := s.SelfLock.StartedAtEpochMs + 60000

	bd := Explain([]string{"RTA"}, "https://x.com/", s, now)
	if bd.BlockType != model.BlockSelfLock {
		t.Errorf("expected self-lock block type, got %s", bd.BlockType)
	}
	if bd.URL != "https://x.com/" {
		t.Errorf("unexpected url %q", bd.URL)
	}
	if bd.LockInfo == nil {
		t.Fatal("expected lock info")
	}
	if bd.LockInfo.RemainingMs != 3540000 {
		t.Errorf("expected 59m remaining, got %d", bd.LockInfo.RemainingMs)
	}
	if bd.LockInfo.RemainingFormatted != "59m 0s" {
		t.Errorf("unexpected formatted remaining %q", bd.LockInfo.RemainingFormatted)
	}
	if !bd.LockInfo.CanRequestUnlock {
		t.Error("expected unlock request allowed")
	}

	s.SelfLock.CooldownUntilEpochMs = now + 1000
	bd = Explain([]string{"RTA"}, "https://x.com/", s, now)
	if bd.LockInfo.CanRequestUnlock {
		t.Error("unlock request must be refused during cooldown")
	}
	if bd.LockInfo.CooldownRemainingMs != 1000 {
		t.Errorf("expected 1000ms cooldown, got %d", bd.LockInfo.CooldownRemainingMs)
	}

	s.SelfLock.CooldownUntilEpochMs = 0
	s.SelfLock.AllowEarlyUnlock = false
	bd = Explain([]string{"RTA"}, "https://x.com/", s, now)
	if bd.LockInfo.CanRequestUnlock {
		t.Error("unlock request must be refused when early unlock is disabled")
	}
}

func TestExplainParentalOnly(t *testing.T) {
	s := model.DefaultState()
	bd := Explain([]string{"GENERIC:adult"}, "https://x.com/", s, 0)
	if bd.BlockType != model.BlockParental {
		t.Errorf("expected parental, got %s", bd.BlockType)
	}
	if bd.LockInfo != nil {
		t.Error("expected no lock info without a self-lock")
	}
	if len(bd.Reasons) != 1 || bd.Reasons[0] != "Adult Content" {
		t.Errorf("unexpected reasons %v", bd.Reasons)
	}
}

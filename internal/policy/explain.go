package policy

import (
	"fmt"
	"time"

	"github.com/ppiankov/contentlock/internal/model"
)

// Explain builds the block-page payload for a page. LockInfo is set
// whenever a self-lock is active, even if only parental policy blocked.
func Explain(signals []string, rawURL string, state *model.PolicyState, nowMs int64) model.BlockData {
	d := Evaluate(signals, rawURL, state)
	bd := model.BlockData{
		BlockType: d.BlockType,
		URL:       rawURL,
		Reasons:   Reasons(signals),
	}
	if bd.BlockType == "" {
		bd.BlockType = model.BlockParental
	}
	if state.SelfLock.Active {
		bd.LockInfo = BuildLockInfo(&state.SelfLock, nowMs)
	}
	return bd
}

// BuildLockInfo summarises a running session for display.
func BuildLockInfo(sl *model.SelfLock, nowMs int64) *model.LockInfo {
	remaining := max(0, sl.EndsAtEpochMs-nowMs)
	cooldown := max(0, sl.CooldownUntilEpochMs-nowMs)
	return &model.LockInfo{
		EndsAt:                     FormatEpoch(sl.EndsAtEpochMs),
		EndsAtEpochMs:              sl.EndsAtEpochMs,
		RemainingMs:                remaining,
		RemainingFormatted:         FormatDuration(remaining),
		Scope:                      sl.Scope,
		CanRequestUnlock:           sl.RequiresPassword && sl.AllowEarlyUnlock && cooldown == 0,
		CooldownRemainingMs:        cooldown,
		CooldownRemainingFormatted: FormatDuration(cooldown),
	}
}

// FormatDuration renders ms as "1h 2m 3s", "2m 3s" or "3s".
func FormatDuration(ms int64) string {
	total := ms / 1000
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatEpoch renders epoch milliseconds as RFC 3339 in local time.
func FormatEpoch(ms int64) string {
	return time.UnixMilli(ms).Local().Format(time.RFC3339)
}

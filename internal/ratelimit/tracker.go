package ratelimit

import (
	"errors"
	"fmt"
	"sync"
)

// Attempt categories.
const (
	CategoryPIN        = "pin"
	CategoryPassphrase = "passphrase"
	CategoryRecovery   = "recovery"
)

// ErrTooManyAttempts is returned while a category is locked out.
var ErrTooManyAttempts = errors.New("too many failed attempts")

// CheckResult is the outcome of a lockout check.
type CheckResult struct {
	Exceeded     bool
	Category     string
	Failures     int
	Limit        int
	RetryAfterMs int64
	Reason       string
}

type window struct {
	startMs  int64
	failures int
}

// Tracker counts failed attempts per category. Times are epoch
// milliseconds supplied by the caller, so a mock clock drives it in tests.
// Counters live in memory only; a restart clears them.
type Tracker struct {
	mu      sync.Mutex
	limit   Limit
	windows map[string]*window
}

// NewTracker returns a tracker for limit, or nil when the limit is off.
func NewTracker(limit Limit) *Tracker {
	if !limit.Enabled() {
		return nil
	}
	return &Tracker{limit: limit, windows: make(map[string]*window)}
}

// snapshot returns the live window for category, resetting an expired one.
// A clock moved back restarts the window without clearing its failures.
func (t *Tracker) snapshot(category string, nowMs int64) *window {
	w := t.windows[category]
	switch {
	case w == nil || nowMs-w.startMs >= t.limit.Window.Milliseconds():
		w = &window{startMs: nowMs}
		t.windows[category] = w
	case nowMs < w.startMs:
		w.startMs = nowMs
	}
	return w
}

// Check reports whether category is locked out at nowMs.
func (t *Tracker) Check(category string, nowMs int64) CheckResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := t.snapshot(category, nowMs)
	if w.failures < t.limit.MaxFailures {
		return CheckResult{Category: category, Failures: w.failures, Limit: t.limit.MaxFailures}
	}
	return CheckResult{
		Exceeded:     true,
		Category:     category,
		Failures:     w.failures,
		Limit:        t.limit.MaxFailures,
		RetryAfterMs: w.startMs + t.limit.Window.Milliseconds() - nowMs,
		Reason: fmt.Sprintf("%s: %d/%d failed attempts in %s window",
			category, w.failures, t.limit.MaxFailures, t.limit.Window),
	}
}

// Fail records one failed attempt.
func (t *Tracker) Fail(category string, nowMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot(category, nowMs).failures++
}

// Reset clears category after a successful attempt.
func (t *Tracker) Reset(category string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, category)
}

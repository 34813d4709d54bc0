package clock

// Rollback is the outcome of a tamper check.
type Rollback struct {
	RolledBack         bool
	ExtendedDurationMs int64
}

// DetectRollback compares wall-clock time against the time monotonic
// elapsed says it should be. When the wall clock is behind, the caller
// must push the session end forward by ExtendedDurationMs before checking
// expiry.
//
// A monotonic origin that moved (process restart) can produce false
// positives. That is accepted.
func DetectRollback(c Clock, startedAtEpochMs, elapsedMonotonicMsAtStart int64) Rollback {
	expected := startedAtEpochMs + (c.MonotonicMs() - elapsedMonotonicMsAtStart)
	now := c.NowMs()
	if now < expected {
		return Rollback{RolledBack: true, ExtendedDurationMs: expected - now}
	}
	return Rollback{}
}

package lock

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ppiankov/contentlock/internal/clock"
	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/secret"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	secret.Cost = bcrypt.MinCost
}

const hour = int64(60 * 60 * 1000)

func activeState(t *testing.T, c clock.Clock, p ActivateParams) *model.PolicyState {
	t.Helper()
	state := model.DefaultState()
	if err := Activate(state, c, p); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return state
}

func TestActivateSetsSession(t *testing.T) {
	c := clock.NewMock(1_000_000)
	c.Advance(3 * time.Second)

	state := activeState(t, c, ActivateParams{DurationMs: hour, CooldownMinutes: 10, AllowEarlyUnlock: true})
	sl := state.SelfLock

	if !sl.Active {
		t.Fatal("expected active")
	}
	if sl.StartedAtEpochMs != c.NowMs() {
		t.Errorf("expected start %d, got %d", c.NowMs(), sl.StartedAtEpochMs)
	}
	if sl.EndsAtEpochMs != c.NowMs()+hour {
		t.Errorf("expected end start+1h, got %d", sl.EndsAtEpochMs)
	}
	if sl.ElapsedMonotonicMsAtStart != 3000 {
		t.Errorf("expected monotonic anchor 3000, got %d", sl.ElapsedMonotonicMsAtStart)
	}
	if sl.IncrementMinutes != model.DefaultIncrementMinutes {
		t.Errorf("expected increment fallback 5, got %d", sl.IncrementMinutes)
	}
}

func TestActivateOverwritesPriorSession(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := activeState(t, c, ActivateParams{DurationMs: hour, AllowEarlyUnlock: true})
	if _, err := RequestEarlyUnlock(state, c, ""); err != nil {
		t.Fatal(err)
	}
	if state.SelfLock.PendingUnlockPhrase == nil {
		t.Fatal("expected pending phrase")
	}

	if err := Activate(state, c, ActivateParams{DurationMs: 2 * hour, Scope: model.ScopeAll}); err != nil {
		t.Fatal(err)
	}
	if state.SelfLock.PendingUnlockPhrase != nil || state.SelfLock.CooldownUntilEpochMs != 0 {
		t.Error("expected pending phrase and cooldown cleared")
	}
	if state.SelfLock.Scope != model.ScopeAll {
		t.Errorf("expected scope=all, got %s", state.SelfLock.Scope)
	}
}

func TestActivateRejectsBadInput(t *testing.T) {
	c := clock.NewMock(0)
	state := model.DefaultState()
	if err := Activate(state, c, ActivateParams{DurationMs: 0}); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got %v", err)
	}
	if err := Activate(state, c, ActivateParams{DurationMs: 1, Scope: "nsfw"}); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope, got %v", err)
	}
	if state.SelfLock.Active {
		t.Error("rejected activation must not start a session")
	}
}

func TestTickIdempotentAfterExpiry(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := activeState(t, c, ActivateParams{DurationMs: hour})
	c.Advance(2 * time.Hour)

	first := Tick(state, c)
	if first.Active || !first.Expired || !first.Changed {
		t.Fatalf("expected first tick to expire session, got %+v", first)
	}
	if state.SelfLock.Active {
		t.Fatal("expected inactive after first tick")
	}

	snapshot := *state.Clone()
	for i := 0; i < 3; i++ {
		r := Tick(state, c)
		if r.Active || r.Changed || r.Expired {
			t.Errorf("tick %d: expected no-op, got %+v", i, r)
		}
	}
	if state.SelfLock != snapshot.SelfLock {
		t.Error("repeated ticks changed the session")
	}
}

func TestTamperCorrectionExtendsByDelta(t *testing.T) {
	c := clock.NewMock(10 * hour)
	state := activeState(t, c, ActivateParams{DurationMs: hour})
	originalEnd := state.SelfLock.EndsAtEpochMs

	c.Advance(10 * time.Minute)
	delta := int64(25 * 60 * 1000)
	c.SetWall(c.NowMs() - delta)

	r := Tick(state, c)
	if !r.Active {
		t.Fatal("expected still active")
	}
	if r.ExtendedByMs != delta {
		t.Errorf("expected extension %d, got %d", delta, r.ExtendedByMs)
	}
	if state.SelfLock.EndsAtEpochMs != originalEnd+delta {
		t.Errorf("expected end %d, got %d", originalEnd+delta, state.SelfLock.EndsAtEpochMs)
	}

	// True remaining time is preserved: 50 minutes left.
	if remaining := state.SelfLock.EndsAtEpochMs - c.NowMs(); remaining != 50*60*1000 {
		t.Errorf("expected 50m remaining, got %dms", remaining)
	}

	// The same rollback is not applied twice.
	r = Tick(state, c)
	if r.ExtendedByMs != 0 {
		t.Errorf("expected no further extension, got %d", r.ExtendedByMs)
	}
}

func TestEarlyUnlockFullFlow(t *testing.T) {
	c := clock.NewMock(1_000_000)
	h, err := secret.Hash("let me out")
	if err != nil {
		t.Fatal(err)
	}
	state := activeState(t, c, ActivateParams{
		DurationMs:       hour,
		RequiresPassword: true,
		PassphraseHash:   h,
		CooldownMinutes:  10,
		AllowEarlyUnlock: true,
	})

	ch, err := RequestEarlyUnlock(state, c, "let me out")
	if err != nil {
		t.Fatalf("request unlock: %v", err)
	}
	if !regexp.MustCompile(`^[a-z]+-[a-z]+-[a-z]+$`).MatchString(ch.Phrase) {
		t.Errorf("expected 3-word phrase, got %q", ch.Phrase)
	}
	if ch.CooldownMs != 600000 {
		t.Errorf("expected cooldown 600000, got %d", ch.CooldownMs)
	}

	if err := ConfirmUnlock(state, c, ch.Phrase); !errors.Is(err, ErrCooldownNotElapsed) {
		t.Fatalf("expected ErrCooldownNotElapsed, got %v", err)
	}

	c.Advance(10 * time.Minute)
	if err := ConfirmUnlock(state, c, ch.Phrase); err != nil {
		t.Fatalf("expected confirm to succeed after cooldown, got %v", err)
	}
	if state.SelfLock.Active {
		t.Error("expected inactive after confirm")
	}
}

func TestPhraseExpiresAfterTypingWindow(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := activeState(t, c, ActivateParams{DurationMs: hour, CooldownMinutes: 10, AllowEarlyUnlock: true})

	ch, err := RequestEarlyUnlock(state, c, "")
	if err != nil {
		t.Fatal(err)
	}
	if ch.PhraseExpiresAtMs != c.NowMs()+15*60*1000 {
		t.Errorf("expected phrase to expire 5m after cooldown, got %d", ch.PhraseExpiresAtMs)
	}

	c.Advance(16 * time.Minute)
	if err := ConfirmUnlock(state, c, ch.Phrase); !errors.Is(err, ErrPhraseExpired) {
		t.Fatalf("expected ErrPhraseExpired, got %v", err)
	}
	if state.SelfLock.PendingUnlockPhrase != nil {
		t.Error("expected expired phrase cleared")
	}
	if !state.SelfLock.Active {
		t.Error("expired phrase must not end the session")
	}
}

func TestEarlyUnlockSucceedsAfterCooldown(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := activeState(t, c, ActivateParams{
		DurationMs:       hour,
		CooldownMinutes:  3,
		AllowEarlyUnlock: true,
	})

	ch, err := RequestEarlyUnlock(state, c, "")
	if err != nil {
		t.Fatal(err)
	}
	c.Advance(3 * time.Minute)

	if err := ConfirmUnlock(state, c, "wrong-phrase-here"); !errors.Is(err, ErrIncorrectPhrase) {
		t.Fatalf("expected ErrIncorrectPhrase, got %v", err)
	}
	if err := ConfirmUnlock(state, c, ch.Phrase); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if state.SelfLock.Active {
		t.Error("expected inactive after confirm")
	}
	if state.SelfLock.PendingUnlockPhrase != nil || state.SelfLock.CooldownUntilEpochMs != 0 {
		t.Error("expected phrase and cooldown cleared after confirm")
	}
}

func TestRequestEarlyUnlockErrors(t *testing.T) {
	c := clock.NewMock(1_000_000)
	h, _ := secret.Hash("right")

	inactive := model.DefaultState()
	if _, err := RequestEarlyUnlock(inactive, c, "right"); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}

	disabled := activeState(t, c, ActivateParams{DurationMs: hour, AllowEarlyUnlock: false})
	if _, err := RequestEarlyUnlock(disabled, c, "right"); !errors.Is(err, ErrEarlyUnlockDisabled) {
		t.Errorf("expected ErrEarlyUnlockDisabled, got %v", err)
	}

	locked := activeState(t, c, ActivateParams{DurationMs: hour, AllowEarlyUnlock: true, RequiresPassword: true, PassphraseHash: h})
	if _, err := RequestEarlyUnlock(locked, c, "wrong"); !errors.Is(err, ErrInvalidPassphrase) {
		t.Errorf("expected ErrInvalidPassphrase, got %v", err)
	}
	if locked.SelfLock.PendingUnlockPhrase != nil {
		t.Error("failed request must not set a phrase")
	}

	legacy := activeState(t, c, ActivateParams{DurationMs: hour, AllowEarlyUnlock: true, RequiresPassword: true, PassphraseHash: secret.LegacyHash("right")})
	if _, err := RequestEarlyUnlock(legacy, c, "right"); err != nil {
		t.Errorf("expected legacy hash to be accepted, got %v", err)
	}
}

func TestConfirmUnlockNotActive(t *testing.T) {
	if err := ConfirmUnlock(model.DefaultState(), clock.NewMock(0), "x"); !errors.Is(err, ErrNotActive) {
		t.Errorf("expected ErrNotActive, got %v", err)
	}
}

func TestConfirmWithoutRequestIsExpired(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := activeState(t, c, ActivateParams{DurationMs: hour, AllowEarlyUnlock: true})
	if err := ConfirmUnlock(state, c, "alpha-alpha-alpha"); !errors.Is(err, ErrPhraseExpired) {
		t.Errorf("expected ErrPhraseExpired, got %v", err)
	}
}

func TestRefreshDropsExpiredPhrase(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := activeState(t, c, ActivateParams{DurationMs: hour, AllowEarlyUnlock: true})
	if _, err := RequestEarlyUnlock(state, c, ""); err != nil {
		t.Fatal(err)
	}
	c.Advance(6 * time.Minute)

	r := Refresh(state, c)
	if !r.Changed {
		t.Error("expected change when phrase expired")
	}
	if state.SelfLock.PendingUnlockPhrase != nil {
		t.Error("expected phrase dropped")
	}
	if state.SelfLock.CooldownUntilEpochMs == 0 {
		t.Error("cooldown must survive phrase expiry while active")
	}
}

func TestNotifyBlockOccurred(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := activeState(t, c, ActivateParams{DurationMs: hour, IncrementOnBlock: true, IncrementMinutes: 5})
	before := state.SelfLock.EndsAtEpochMs

	inc, newEnd := NotifyBlockOccurred(state)
	if !inc {
		t.Fatal("expected increment")
	}
	if newEnd != before+300000 || state.SelfLock.EndsAtEpochMs != newEnd {
		t.Errorf("expected end %d, got %d", before+300000, newEnd)
	}

	state.SelfLock.Deactivate()
	end := state.SelfLock.EndsAtEpochMs
	if inc, _ := NotifyBlockOccurred(state); inc {
		t.Error("expected no-op when inactive")
	}
	if state.SelfLock.EndsAtEpochMs != end {
		t.Error("inactive session end time changed")
	}
}

func TestNotifyBlockOccurredWithoutIncrement(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := activeState(t, c, ActivateParams{DurationMs: hour})
	if inc, _ := NotifyBlockOccurred(state); inc {
		t.Error("expected no-op when incrementOnBlock is off")
	}
}

func TestPhaseOf(t *testing.T) {
	c := clock.NewMock(1_000_000)
	state := model.DefaultState()
	if _, ok := PhaseOf(state.SelfLock, c.NowMs()).(Inactive); !ok {
		t.Error("expected Inactive for default state")
	}

	if err := Activate(state, c, ActivateParams{DurationMs: hour, AllowEarlyUnlock: true}); err != nil {
		t.Fatal(err)
	}
	p, ok := PhaseOf(state.SelfLock, c.NowMs()).(Active)
	if !ok {
		t.Fatalf("expected Active, got %T", PhaseOf(state.SelfLock, c.NowMs()))
	}
	if p.RemainingMs != hour {
		t.Errorf("expected remaining 1h, got %d", p.RemainingMs)
	}

	if _, err := RequestEarlyUnlock(state, c, ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := PhaseOf(state.SelfLock, c.NowMs()).(PendingConfirmation); !ok {
		t.Error("expected PendingConfirmation after request")
	}

	// Past the end the session reads as inactive before any tick.
	if _, ok := PhaseOf(state.SelfLock, state.SelfLock.EndsAtEpochMs).(Inactive); !ok {
		t.Error("expected Inactive at end time")
	}
	if PhaseName(Active{}) != "active" {
		t.Error("unexpected phase name")
	}
}

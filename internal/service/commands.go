package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/contentlock/internal/alert"
	"github.com/ppiankov/contentlock/internal/audit"
	"github.com/ppiankov/contentlock/internal/lock"
	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/policy"
	"github.com/ppiankov/contentlock/internal/ratelimit"
	"github.com/ppiankov/contentlock/internal/safereq"
	"github.com/ppiankov/contentlock/internal/secret"
	"github.com/ppiankov/contentlock/internal/signals"
)

// CheckBlock refreshes the session, evaluates the page and, when it is
// blocked, returns the block-page payload.
func (s *Service) CheckBlock(ctx context.Context, req CheckBlockRequest) (model.CheckResult, error) {
	tags := req.Signals
	if req.HTML != "" {
		res, err := signals.FromHTML(strings.NewReader(req.HTML))
		if err != nil {
			return model.CheckResult{}, fmt.Errorf("%w: html: %v", ErrInvalidRequest, err)
		}
		tags = signals.Normalize(append(append([]string(nil), req.Signals...), res.Signals...))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return model.CheckResult{}, err
	}
	if _, err := s.refresh(ctx, state); err != nil {
		return model.CheckResult{}, err
	}

	d := policy.Evaluate(tags, req.URL, state)
	if !d.Block {
		s.logger.Debug("page allowed", "url", req.URL, "policy", d.PolicyID)
		return model.CheckResult{}, nil
	}

	bd := policy.Explain(tags, req.URL, state, s.clock.NowMs())
	s.logger.Info("page blocked", "url", req.URL, "block_type", bd.BlockType, "policy", d.PolicyID)
	s.record(audit.AuditEntry{
		Event:     audit.EventCheck,
		Decision:  audit.DecisionBlock,
		BlockType: string(bd.BlockType),
		PolicyID:  d.PolicyID,
		URL:       req.URL,
		Reasons:   bd.Reasons,
	})
	ev := alert.AlertEvent{
		Timestamp:  s.timestamp(time.RFC3339),
		Event:      alert.EventBlock,
		URL:        req.URL,
		BlockType:  string(bd.BlockType),
		Reasons:    bd.Reasons,
		PolicyID:   d.PolicyID,
		ConfigHash: s.configHash,
	}
	if bd.LockInfo != nil {
		ev.EndsAt = bd.LockInfo.EndsAt
	}
	s.dispatcher().Dispatch(ev)

	return model.CheckResult{ShouldBlock: true, BlockData: &bd}, nil
}

// GetState returns a copy of the current record.
func (s *Service) GetState(ctx context.Context) (StateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return StateResult{}, err
	}
	return StateResult{State: state}, nil
}

// UpdateState merges a partial document into the record.
func (s *Service) UpdateState(ctx context.Context, req UpdateStateRequest) (SuccessResult, error) {
	if len(req.Updates) == 0 {
		return SuccessResult{}, fmt.Errorf("%w: no updates", ErrInvalidRequest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ApplyUpdate(ctx, req.Updates); err != nil {
		return SuccessResult{}, s.rejected("UpdateState", err)
	}

	keys := make([]string, 0, len(req.Updates))
	for k := range req.Updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.record(audit.AuditEntry{Event: audit.EventStateUpdated, Detail: strings.Join(keys, ",")})
	s.logger.Info("state updated", "keys", keys)
	return SuccessResult{Success: true}, nil
}

// ActivateSelfLock starts a session and arms the tick scheduler.
func (s *Service) ActivateSelfLock(ctx context.Context, req ActivateSelfLockRequest) (SuccessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return SuccessResult{}, err
	}

	hash := req.PassphraseHash
	if req.Passphrase != "" {
		if hash, err = secret.Hash(req.Passphrase); err != nil {
			return SuccessResult{}, err
		}
	} else if hash == "" && state.SelfLock.PassphraseHash != nil {
		hash = *state.SelfLock.PassphraseHash
	}
	allowEarly := state.SelfLock.AllowEarlyUnlock
	if req.AllowEarlyUnlock != nil {
		allowEarly = *req.AllowEarlyUnlock
	}

	err = lock.Activate(state, s.clock, lock.ActivateParams{
		DurationMs:       req.DurationMs,
		RequiresPassword: req.RequiresPassword,
		PassphraseHash:   hash,
		CooldownMinutes:  req.CooldownMinutes,
		AllowEarlyUnlock: allowEarly,
		IncrementOnBlock: req.IncrementOnBlock,
		IncrementMinutes: req.IncrementMinutes,
		Scope:            req.Scope,
		IgnoreAllowlist:  req.IgnoreAllowlist,
	})
	if err != nil {
		return SuccessResult{}, s.rejected("ActivateSelfLock", err)
	}
	if err := s.store.Save(ctx, state); err != nil {
		return SuccessResult{}, err
	}
	s.sched.Ensure()

	sl := state.SelfLock
	s.logger.Info("self-lock activated", "scope", sl.Scope, "ends_at", policy.FormatEpoch(sl.EndsAtEpochMs))
	s.lockEvent(audit.EventSelfLockActivated, alert.EventSelfLockActivated, state,
		fmt.Sprintf("scope=%s duration=%s", sl.Scope, policy.FormatDuration(req.DurationMs)))
	return SuccessResult{Success: true}, nil
}

// RequestEarlyUnlock verifies the passphrase and issues an unlock phrase.
func (s *Service) RequestEarlyUnlock(ctx context.Context, req RequestEarlyUnlockRequest) (UnlockRequestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return UnlockRequestResult{}, err
	}
	if _, err := s.refresh(ctx, state); err != nil {
		return UnlockRequestResult{}, err
	}

	if err := s.guardAttempt(ratelimit.CategoryPassphrase); err != nil {
		return UnlockRequestResult{}, s.rejected("RequestEarlyUnlock", err)
	}
	ch, err := lock.RequestEarlyUnlock(state, s.clock, req.Passphrase)
	s.noteAttempt(ratelimit.CategoryPassphrase, err)
	if err != nil {
		return UnlockRequestResult{}, s.rejected("RequestEarlyUnlock", err)
	}
	if err := s.store.Save(ctx, state); err != nil {
		return UnlockRequestResult{}, err
	}

	s.logger.Info("early unlock requested", "cooldown_ms", ch.CooldownMs)
	s.lockEvent(audit.EventUnlockRequested, alert.EventUnlockRequested, state,
		"cooldown "+policy.FormatDuration(ch.CooldownMs))
	return UnlockRequestResult{
		Success:                true,
		UnlockPhrase:           ch.Phrase,
		CooldownMs:             ch.CooldownMs,
		PhraseExpiresAtEpochMs: ch.PhraseExpiresAtMs,
	}, nil
}

// ConfirmUnlock ends the session when the phrase checks out.
func (s *Service) ConfirmUnlock(ctx context.Context, req ConfirmUnlockRequest) (SuccessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return SuccessResult{}, err
	}
	if _, err := s.refresh(ctx, state); err != nil {
		return SuccessResult{}, err
	}

	if err := lock.ConfirmUnlock(state, s.clock, req.Phrase); err != nil {
		if errors.Is(err, lock.ErrPhraseExpired) {
			if saveErr := s.store.Save(ctx, state); saveErr != nil {
				return SuccessResult{}, saveErr
			}
		}
		return SuccessResult{}, s.rejected("ConfirmUnlock", err)
	}
	if err := s.store.Save(ctx, state); err != nil {
		return SuccessResult{}, err
	}
	s.sched.Cancel()

	s.logger.Info("self-lock ended by confirmed unlock")
	s.lockEvent(audit.EventUnlockConfirmed, alert.EventUnlockConfirmed, state, "")
	return SuccessResult{Success: true}, nil
}

// SetSelfLockPassphrase stores a new self-lock passphrase.
func (s *Service) SetSelfLockPassphrase(ctx context.Context, req SetPassphraseRequest) (SuccessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return SuccessResult{}, err
	}
	if err := lock.SetPassphrase(state, req.Passphrase); err != nil {
		return SuccessResult{}, s.rejected("SetSelfLockPassphrase", err)
	}
	if err := s.store.Save(ctx, state); err != nil {
		return SuccessResult{}, err
	}
	s.record(audit.AuditEntry{Event: audit.EventPassphraseChanged})
	return SuccessResult{Success: true}, nil
}

// SetSettingsPIN stores a new settings PIN and opens the unlock window.
func (s *Service) SetSettingsPIN(ctx context.Context, req SetPINRequest) (PinWindowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return PinWindowResult{}, err
	}
	until, err := lock.SetSettingsPIN(state, s.clock, req.PIN)
	if err != nil {
		return PinWindowResult{}, s.rejected("SetSettingsPIN", err)
	}
	if err := s.store.Save(ctx, state); err != nil {
		return PinWindowResult{}, err
	}
	s.record(audit.AuditEntry{Event: audit.EventPINSet})
	return PinWindowResult{Success: true, UnlockedUntilEpochMs: until}, nil
}

// PinUnlock opens the settings unlock window.
func (s *Service) PinUnlock(ctx context.Context, req PinUnlockRequest) (PinWindowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return PinWindowResult{}, err
	}
	if err := s.guardAttempt(ratelimit.CategoryPIN); err != nil {
		return PinWindowResult{}, s.rejected("PinUnlock", err)
	}
	until, err := lock.PinUnlock(state, s.clock, req.PIN)
	s.noteAttempt(ratelimit.CategoryPIN, err)
	if err != nil {
		return PinWindowResult{}, s.rejected("PinUnlock", err)
	}
	if err := s.store.Save(ctx, state); err != nil {
		return PinWindowResult{}, err
	}
	s.record(audit.AuditEntry{Event: audit.EventPINUnlocked})
	return PinWindowResult{Success: true, UnlockedUntilEpochMs: until}, nil
}

// CheckPinStatus reports the settings lock, relocking an elapsed window.
func (s *Service) CheckPinStatus(ctx context.Context) (lock.PinStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return lock.PinStatus{}, err
	}
	status, changed := lock.CheckPinStatus(state, s.clock)
	if changed {
		if err := s.store.Save(ctx, state); err != nil {
			return lock.PinStatus{}, err
		}
	}
	return status, nil
}

// VerifyPassphrase checks a secret without changing state.
func (s *Service) VerifyPassphrase(ctx context.Context, req VerifyPassphraseRequest) (VerifyResult, error) {
	kind := req.PassType
	if kind != lock.PassSettings && kind != lock.PassSelfLock {
		return VerifyResult{}, fmt.Errorf("%w: passType %q", ErrInvalidRequest, req.PassType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return VerifyResult{}, err
	}
	category := ratelimit.CategoryPassphrase
	if kind == lock.PassSettings {
		category = ratelimit.CategoryPIN
	}
	if err := s.guardAttempt(category); err != nil {
		return VerifyResult{}, s.rejected("VerifyPassphrase", err)
	}
	valid := lock.VerifyPassphrase(state, req.Passphrase, kind)
	if valid {
		s.noteAttempt(category, nil)
	} else if s.attempts != nil {
		s.attempts.Fail(category, s.clock.NowMs())
	}
	return VerifyResult{Valid: valid}, nil
}

// NotifyBlockOccurred extends a session configured to grow on blocks.
func (s *Service) NotifyBlockOccurred(ctx context.Context) (BlockOccurredResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return BlockOccurredResult{}, err
	}
	if _, err := s.refresh(ctx, state); err != nil {
		return BlockOccurredResult{}, err
	}

	ok, newEnd := lock.NotifyBlockOccurred(state)
	if !ok {
		return BlockOccurredResult{}, nil
	}
	if err := s.store.Save(ctx, state); err != nil {
		return BlockOccurredResult{}, err
	}
	s.logger.Info("self-lock extended after block", "ends_at", policy.FormatEpoch(newEnd))
	s.lockEvent(audit.EventLockIncremented, alert.EventLockIncremented, state,
		"+"+policy.FormatDuration(int64(state.SelfLock.IncrementMinutes)*model.MinuteMs))
	return BlockOccurredResult{Success: true, NewEndTime: newEnd}, nil
}

// Tick runs one scheduled check. It keeps the scheduler armed while a
// session is active and cancels it otherwise.
func (s *Service) Tick(ctx context.Context) (TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return TickResult{}, err
	}
	r := lock.Tick(state, s.clock)
	if r.Changed {
		if err := s.store.Save(ctx, state); err != nil {
			return TickResult{}, err
		}
		s.observeRefresh(state, r.RefreshResult)
	}
	if r.Active {
		s.sched.Ensure()
	} else {
		s.sched.Cancel()
	}
	return TickResult{Active: r.Active, Expired: r.Expired, ExtendedByMs: r.ExtendedByMs}, nil
}

// LockStatus reports the derived self-lock phase.
func (s *Service) LockStatus(ctx context.Context) (LockStatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return LockStatusResult{}, err
	}
	if _, err := s.refresh(ctx, state); err != nil {
		return LockStatusResult{}, err
	}

	now := s.clock.NowMs()
	phase := lock.PhaseOf(state.SelfLock, now)
	res := LockStatusResult{
		Phase:            lock.PhaseName(phase),
		SchedulerRunning: s.sched.Running(),
	}
	switch p := phase.(type) {
	case lock.Active:
		res.Active = true
		res.LockInfo = policy.BuildLockInfo(&state.SelfLock, now)
	case lock.PendingConfirmation:
		res.Active = true
		res.LockInfo = policy.BuildLockInfo(&state.SelfLock, now)
		res.PhraseExpiresAtEpochMs = p.PhraseExpiresAtEpochMs
	}
	return res, nil
}

// GenerateRecoveryCodes replaces the recovery codes and returns them once.
func (s *Service) GenerateRecoveryCodes(ctx context.Context, req GenerateRecoveryCodesRequest) (RecoveryCodesResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return RecoveryCodesResult{}, err
	}
	codes, err := lock.GenerateRecoveryCodes(state, req.Count)
	if err != nil {
		return RecoveryCodesResult{}, err
	}
	if err := s.store.Save(ctx, state); err != nil {
		return RecoveryCodesResult{}, err
	}
	s.record(audit.AuditEntry{Event: audit.EventRecoveryGenerated, Detail: fmt.Sprintf("%d codes", len(codes))})
	return RecoveryCodesResult{Codes: codes}, nil
}

// RedeemRecoveryCode consumes a code and opens the settings unlock window.
func (s *Service) RedeemRecoveryCode(ctx context.Context, req RedeemRecoveryCodeRequest) (PinWindowResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return PinWindowResult{}, err
	}
	if err := s.guardAttempt(ratelimit.CategoryRecovery); err != nil {
		return PinWindowResult{}, s.rejected("RedeemRecoveryCode", err)
	}
	until, err := lock.RedeemRecoveryCode(state, s.clock, req.Code)
	s.noteAttempt(ratelimit.CategoryRecovery, err)
	if err != nil {
		return PinWindowResult{}, s.rejected("RedeemRecoveryCode", err)
	}
	if err := s.store.Save(ctx, state); err != nil {
		return PinWindowResult{}, err
	}
	s.record(audit.AuditEntry{
		Event:  audit.EventRecoveryRedeemed,
		Detail: fmt.Sprintf("%d codes left", len(state.RecoveryCodesHash)),
	})
	return PinWindowResult{Success: true, UnlockedUntilEpochMs: until}, nil
}

// SafeRequestConfig plans the rewrite for one outbound request.
func (s *Service) SafeRequestConfig(ctx context.Context, req SafeRequestRequest) (safereq.Plan, error) {
	if req.URL == "" {
		return safereq.Plan{}, fmt.Errorf("%w: url required", ErrInvalidRequest)
	}
	rt := req.ResourceType
	if rt == "" {
		rt = safereq.MainFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.Load(ctx)
	if err != nil {
		return safereq.Plan{}, err
	}
	if _, err := s.refresh(ctx, state); err != nil {
		return safereq.Plan{}, err
	}
	return safereq.PlanRequest(state, req.URL, rt), nil
}

// Package service owns the policy state and runs every command against it
// one at a time.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/contentlock/internal/alert"
	"github.com/ppiankov/contentlock/internal/audit"
	"github.com/ppiankov/contentlock/internal/clock"
	"github.com/ppiankov/contentlock/internal/lock"
	"github.com/ppiankov/contentlock/internal/model"
	"github.com/ppiankov/contentlock/internal/policy"
	"github.com/ppiankov/contentlock/internal/ratelimit"
	"github.com/ppiankov/contentlock/internal/store"
)

// tickTimeout bounds one scheduled tick, storage included.
const tickTimeout = 30 * time.Second

// Options configures a Service. Store is required; everything else has a
// usable zero value.
type Options struct {
	Store        *store.Store
	Clock        clock.Clock
	Audit        *audit.Log
	Alerts       *alert.Dispatcher
	Logger       *slog.Logger
	TickInterval time.Duration
	ConfigHash   string
	// AttemptLimit locks out PIN, passphrase and recovery code checks
	// after repeated failures. The zero value disables it.
	AttemptLimit ratelimit.Limit
}

// Service is the single owner of the policy record. Commands are
// serialized by mu, so each one sees the result of the previous one.
type Service struct {
	mu         sync.Mutex
	store      *store.Store
	clock      clock.Clock
	audit      *audit.Log
	logger     *slog.Logger
	sched      *lock.Scheduler
	attempts   *ratelimit.Tracker
	configHash string

	// alertMu guards alerts separately so a config reload does not wait
	// behind a slow command.
	alertMu sync.RWMutex
	alerts  *alert.Dispatcher
}

// New builds a Service. Call Start before serving commands.
func New(opts Options) *Service {
	s := &Service{
		store:      opts.Store,
		clock:      opts.Clock,
		audit:      opts.Audit,
		alerts:     opts.Alerts,
		logger:     opts.Logger,
		attempts:   ratelimit.NewTracker(opts.AttemptLimit),
		configHash: opts.ConfigHash,
	}
	if s.clock == nil {
		s.clock = clock.NewReal()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.sched = lock.NewScheduler(opts.TickInterval, s.scheduledTick, s.logger)
	return s
}

// Start writes the default record when none exists and runs one tick, so
// a session persisted before a restart gets its scheduler back.
func (s *Service) Start(ctx context.Context) error {
	created, err := s.store.Init(ctx)
	if err != nil {
		return err
	}
	if created {
		s.logger.Info("initialized default policy state")
	}
	_, err = s.Tick(ctx)
	return err
}

// Close stops the scheduler and waits for in-flight alert deliveries.
func (s *Service) Close() {
	s.sched.Stop()
	s.dispatcher().Wait()
}

// SetAlerts swaps the alert dispatcher. Used by config hot-reload.
func (s *Service) SetAlerts(d *alert.Dispatcher) {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	s.alerts = d
}

// SetConfigHash updates the hash recorded in audit entries.
func (s *Service) SetConfigHash(h string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configHash = h
}

// SchedulerRunning reports whether the tick job is registered.
func (s *Service) SchedulerRunning() bool {
	return s.sched.Running()
}

func (s *Service) dispatcher() *alert.Dispatcher {
	s.alertMu.RLock()
	defer s.alertMu.RUnlock()
	return s.alerts
}

func (s *Service) scheduledTick() {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()
	if _, err := s.Tick(ctx); err != nil {
		s.logger.Error("self-lock tick failed", "error", err)
	}
}

// refresh applies tamper correction and expiry, persisting and reporting
// any change. Callers hold mu.
func (s *Service) refresh(ctx context.Context, state *model.PolicyState) (lock.RefreshResult, error) {
	r := lock.Refresh(state, s.clock)
	if !r.Changed {
		return r, nil
	}
	if err := s.store.Save(ctx, state); err != nil {
		return r, err
	}
	s.observeRefresh(state, r)
	return r, nil
}

func (s *Service) observeRefresh(state *model.PolicyState, r lock.RefreshResult) {
	if r.ExtendedByMs > 0 {
		s.logger.Warn("clock rollback detected, self-lock extended",
			"extended_ms", r.ExtendedByMs,
			"ends_at", policy.FormatEpoch(state.SelfLock.EndsAtEpochMs))
		s.lockEvent(audit.EventTamperExtended, alert.EventTamperExtended, state,
			"extended by "+policy.FormatDuration(r.ExtendedByMs))
	}
	if r.Expired {
		s.logger.Info("self-lock expired")
		s.lockEvent(audit.EventSelfLockExpired, alert.EventSelfLockExpired, state, "")
		s.sched.Cancel()
	}
}

// lockEvent records a self-lock transition in the audit log and alerts.
func (s *Service) lockEvent(auditEvent, alertEvent string, state *model.PolicyState, detail string) {
	var endsAt string
	if state.SelfLock.Active {
		endsAt = policy.FormatEpoch(state.SelfLock.EndsAtEpochMs)
	}
	s.record(audit.AuditEntry{Event: auditEvent, Detail: detail})
	if alertEvent != "" {
		s.dispatcher().Dispatch(alert.AlertEvent{
			Timestamp:  s.timestamp(time.RFC3339),
			Event:      alertEvent,
			EndsAt:     endsAt,
			Detail:     detail,
			ConfigHash: s.configHash,
		})
	}
}

// record appends to the audit log. Failures are logged, never returned.
func (s *Service) record(e audit.AuditEntry) {
	if s.audit == nil {
		return
	}
	if e.Timestamp == "" {
		e.Timestamp = s.timestamp(audit.TimestampFormat)
	}
	e.ConfigHash = s.configHash
	if err := s.audit.Record(e); err != nil {
		s.logger.Error("audit record failed", "event", e.Event, "error", err)
	}
}

func (s *Service) timestamp(layout string) string {
	return time.UnixMilli(s.clock.NowMs()).UTC().Format(layout)
}

// rejected audits a user-facing failure and passes err through.
func (s *Service) rejected(command string, err error) error {
	if kind := ErrorKind(err); kind != KindInternal {
		s.record(audit.AuditEntry{Event: audit.EventCommandRejected, Detail: command + ": " + kind})
		s.logger.Debug("command rejected", "command", command, "kind", kind)
	}
	return err
}

// guardAttempt rejects a secret check while its category is locked out.
func (s *Service) guardAttempt(category string) error {
	if s.attempts == nil {
		return nil
	}
	r := s.attempts.Check(category, s.clock.NowMs())
	if !r.Exceeded {
		return nil
	}
	s.logger.Warn("secret attempts locked out", "category", category, "failures", r.Failures)
	return fmt.Errorf("%w: retry in %s", ratelimit.ErrTooManyAttempts, policy.FormatDuration(r.RetryAfterMs))
}

// noteAttempt records the outcome of a secret check.
func (s *Service) noteAttempt(category string, err error) {
	if s.attempts == nil {
		return
	}
	switch {
	case err == nil:
		s.attempts.Reset(category)
	case Classify(err) == ClassDenied:
		s.attempts.Fail(category, s.clock.NowMs())
	}
}

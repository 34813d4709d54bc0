package lock

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTickInterval is how often an active session is re-checked.
const DefaultTickInterval = time.Minute

// Scheduler owns the recurring tick of a self-lock session. At most one
// tick job is registered at a time.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	running  bool
	started  bool
	interval time.Duration
	job      func()
	logger   *slog.Logger
}

// NewScheduler returns a Scheduler that calls job every interval once
// Ensure is called.
func NewScheduler(interval time.Duration, job func(), logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New(
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
	)
	return &Scheduler{
		cron:     c,
		interval: interval,
		job:      job,
		logger:   logger,
	}
}

// Ensure registers the tick job if it is not already registered. It
// reports whether a new job was registered.
func (s *Scheduler) Ensure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	s.entry = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.job))
	s.running = true
	if !s.started {
		s.cron.Start()
		s.started = true
	}
	s.logger.Debug("self-lock tick scheduled", "interval", s.interval)
	return true
}

// Cancel removes the tick job. Safe to call from inside the job.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Remove(s.entry)
	s.running = false
	s.logger.Debug("self-lock tick cancelled")
}

// Running reports whether a tick job is registered.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop cancels the job and stops the underlying cron runner, waiting for
// a running tick to finish.
func (s *Scheduler) Stop() {
	s.Cancel()
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()
	if started {
		<-s.cron.Stop().Done()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

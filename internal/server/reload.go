package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/contentlock/internal/alert"
	"github.com/ppiankov/contentlock/internal/config"
	"github.com/ppiankov/contentlock/internal/logging"
	"github.com/ppiankov/contentlock/internal/service"
)

const reloadDebounce = 500 * time.Millisecond

// ConfigReloader applies the hot-reloadable parts of the daemon config:
// alert destinations, log level and the config hash stamped on audit
// entries. Listener addresses and the storage backend need a restart.
type ConfigReloader struct {
	Path    string
	Service *service.Service
	Level   *slog.LevelVar
	Logger  *slog.Logger

	mu   sync.Mutex
	hash string
}

// Reload re-reads Path. An invalid file leaves the running config alone.
func (c *ConfigReloader) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, hash, err := config.LoadWithHash(c.Path)
	if err != nil {
		return err
	}
	if hash == c.hash {
		return nil
	}
	c.Service.SetAlerts(alert.NewDispatcher(cfg.Alerts, c.Logger))
	c.Service.SetConfigHash(hash)
	if c.Level != nil {
		c.Level.Set(logging.ParseLevel(cfg.Log.Level))
	}
	c.hash = hash
	return nil
}

// Hash returns the hash of the last applied config.
func (c *ConfigReloader) Hash() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hash
}

// Reloadable is anything a Reloader can refresh.
type Reloadable interface {
	Reload() error
}

// Reloader watches files for changes and triggers hot-reload.
type Reloader struct {
	watcher *fsnotify.Watcher
	target  Reloadable
	logger  *slog.Logger
	paths   []string
}

// NewReloader creates a file watcher for the given paths. Paths that do
// not exist yet are skipped.
func NewReloader(target Reloadable, paths []string, logger *slog.Logger) (*Reloader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	var watched []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", p, err)
		}
		watched = append(watched, p)
	}

	return &Reloader{
		watcher: watcher,
		target:  target,
		logger:  logger,
		paths:   watched,
	}, nil
}

// Paths lists the files actually being watched.
func (r *Reloader) Paths() []string {
	return r.paths
}

// Run watches for file changes and reloads. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					if err := r.target.Reload(); err != nil {
						r.logger.Warn("hot-reload failed", "error", err)
					} else {
						r.logger.Info("hot-reload: config reloaded")
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("file watcher error", "error", err)
		}
	}
}

package ratelimit

import "time"

// Limit caps failed secret attempts per category within a fixed window.
// Zero values mean no limit.
type Limit struct {
	MaxFailures int           `yaml:"max_failures"`
	Window      time.Duration `yaml:"window"`
}

// Enabled returns true if the limit is configured.
func (l Limit) Enabled() bool {
	return l.MaxFailures > 0 && l.Window > 0
}

package clock

import (
	"sync"
	"time"
)

// Clock supplies wall-clock and monotonic readings in milliseconds.
type Clock interface {
	// NowMs returns wall-clock time as Unix milliseconds. The user can
	// move it.
	NowMs() int64
	// MonotonicMs returns milliseconds elapsed since an arbitrary origin
	// fixed for the lifetime of the process.
	MonotonicMs() int64
}

// Real reads the system clock. Its monotonic origin is the moment it was
// created.
type Real struct {
	start time.Time
}

// NewReal returns a Real clock whose monotonic origin is now.
func NewReal() *Real {
	return &Real{start: time.Now()}
}

// NowMs returns the current wall-clock time.
func (r *Real) NowMs() int64 {
	return time.Now().UnixMilli()
}

// MonotonicMs uses the monotonic reading carried by time.Time, which is
// unaffected by wall-clock changes.
func (r *Real) MonotonicMs() int64 {
	return time.Since(r.start).Milliseconds()
}

// Mock is a Clock for tests. Wall and monotonic time move independently.
type Mock struct {
	mu   sync.Mutex
	wall int64
	mono int64
}

// NewMock returns a Mock at the given wall time with monotonic time zero.
func NewMock(wallMs int64) *Mock {
	return &Mock{wall: wallMs}
}

// NowMs returns the mocked wall time.
func (m *Mock) NowMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wall
}

// MonotonicMs returns the mocked monotonic time.
func (m *Mock) MonotonicMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mono
}

// Advance moves both readings forward, as real time passing would.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wall += d.Milliseconds()
	m.mono += d.Milliseconds()
}

// SetWall moves only the wall clock, simulating a user changing the
// system time.
func (m *Mock) SetWall(wallMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wall = wallMs
}

var (
	_ Clock = (*Real)(nil)
	_ Clock = (*Mock)(nil)
)

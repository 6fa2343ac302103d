// Package ticker drives the one-shot, re-arming timer each Event owns.
//
// Unlike a classic interval ticker, a MinuteTicker never fires on a fixed
// period of its own: every fire is scheduled for the next exact minute
// boundary (seconds and nanoseconds zero), and the next firing is armed
// again from inside the callback. This mirrors the "one timer per event,
// re-armed on every tick" shape the scheduler's design notes call out —
// the timer only ever knows about minute boundaries; an Event decides for
// itself, on each tick, whether its target time has actually arrived.
package ticker

import (
	"sync"
	"time"
)

// MinuteTicker invokes onTick once per minute boundary until Stop is
// called. onTick runs synchronously on the timer's own goroutine; callers
// must not assume a dedicated thread and must not block for long inside
// it, since the next arm happens only after onTick returns.
type MinuteTicker struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool

	now    func() time.Time
	onTick func()
}

// New creates a MinuteTicker using the real wall clock. It does not start
// until Start is called.
func New(onTick func()) *MinuteTicker {
	return NewWithClock(time.Now, onTick)
}

// NewWithClock creates a MinuteTicker with an injectable clock, so tests
// can control exactly where the next minute boundary falls without
// sleeping in real time.
func NewWithClock(now func() time.Time, onTick func()) *MinuteTicker {
	return &MinuteTicker{now: now, onTick: onTick, stopped: true}
}

// Start arms the first tick at the next minute boundary. Calling Start on
// an already-running ticker is a no-op.
func (m *MinuteTicker) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		return
	}
	m.stopped = false
	m.arm()
}

// Stop cancels the pending tick, if any, and prevents further re-arming.
// It is safe to call from inside onTick itself — a tick that decides its
// event is firing for the last time stops its own ticker before
// returning, which suppresses the re-arm that would otherwise follow.
// Stop is idempotent.
func (m *MinuteTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
	}
}

// Running reports whether the ticker is currently armed.
func (m *MinuteTicker) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.stopped
}

// arm schedules fire at the next minute boundary. Caller must hold m.mu.
func (m *MinuteTicker) arm() {
	delay := UntilNextMinute(m.now())
	m.timer = time.AfterFunc(delay, m.fire)
}

func (m *MinuteTicker) fire() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.onTick()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.stopped {
		m.arm()
	}
}

// UntilNextMinute returns the delay from now until the next exact minute
// boundary (zero seconds, zero nanoseconds). If now already sits exactly
// on a boundary, it returns a full minute, never zero — a tick is always
// scheduled, never fired immediately.
func UntilNextMinute(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	return next.Sub(now)
}

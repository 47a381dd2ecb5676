// Package typing converts a stream of raw input-activity signals into
// discrete typing-started / typing-stopped events with a quiet-period
// timer: the first keystroke signals typing, continued keystrokes keep the
// signal alive, and a fixed stretch of silence (or sending a message)
// retracts it.
package typing

import (
	"sync"
	"time"

	"github.com/parley/chat-client/internal/metrics"
)

// DefaultQuietPeriod is the input inactivity after which an active typing
// signal is retracted.
const DefaultQuietPeriod = 2 * time.Second

// Debouncer is a two-state machine: Idle (not signaling) and Active
// (signaling, quiet-period timer running). The emit callback receives true
// on the Idle->Active transition and false on Active->Idle, each at most
// once per transition. It is invoked with the Debouncer's lock held and
// must not call back into the Debouncer.
type Debouncer struct {
	mu      sync.Mutex
	quiet   time.Duration
	emit    func(isTyping bool)
	timer   *time.Timer
	gen     uint64 // invalidates timers scheduled before the latest reset
	active  bool
	stopped bool
}

// NewDebouncer creates an Idle debouncer. quiet <= 0 selects
// DefaultQuietPeriod.
func NewDebouncer(quiet time.Duration, emit func(isTyping bool)) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer{quiet: quiet, emit: emit}
}

// InputActivity records one local input change. From Idle it emits
// typing(true) and arms the quiet-period timer; while Active it only resets
// the timer, never re-emitting.
func (d *Debouncer) InputActivity() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if !d.active {
		d.active = true
		metrics.TypingTransitions.WithLabelValues("active").Inc()
		d.emit(true)
	} else if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.quiet, func() { d.expire(gen) })
}

// MessageSent clears the typing signal immediately: if Active, it cancels
// the pending timer and emits typing(false) regardless of remaining time.
func (d *Debouncer) MessageSent() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.active {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.active = false
	metrics.TypingTransitions.WithLabelValues("idle").Inc()
	d.emit(false)
}

// Stop cancels any pending timer without emitting further events. The
// debouncer is unusable afterwards; subsequent calls are no-ops.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.active = false
}

// expire is the quiet-period timer body. A timer canceled or superseded
// after this fired but before the lock was acquired sees a stale generation
// and performs no action.
func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.active || gen != d.gen {
		return
	}

	d.timer = nil
	d.active = false
	metrics.TypingTransitions.WithLabelValues("idle").Inc()
	d.emit(false)
}

// Package platform is the host port every pipeline relies on: a
// monotonic millisecond clock, sleep, a one-shot timer, an atomic
// compare-and-exchange, random numbers and the critical-error hook.
// The defaults are backed by the standard library; tests swap the hooks
// they need and restore them on cleanup.
package platform

import (
	"math/rand"
	"sync/atomic"
	"time"
)

var epoch = time.Now()

// Clock returns monotonic milliseconds since an arbitrary process-local
// epoch. It is wall-clock free and never goes backwards.
var Clock = func() int64 {
	return time.Since(epoch).Milliseconds()
}

// Sleep blocks the calling goroutine for the given number of milliseconds.
var Sleep = func(ms int32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// Random returns a uniformly distributed non-negative int32.
var Random = func() int32 {
	return rand.Int31()
}

// CriticalError is invoked when an invariant no one can recover from is
// broken, e.g. a top-level state refusing an event. It never returns.
var CriticalError = func() {
	panic("azcore: critical error")
}

// AtomicCompareExchange atomically replaces *state with desired when it
// equals expected and reports whether the exchange happened.
func AtomicCompareExchange(state *int32, expected, desired int32) bool {
	return atomic.CompareAndSwapInt32(state, expected, desired)
}

// Timer is a one-shot timer. The callback runs on a timer goroutine,
// possibly different from the creator's.
type Timer struct {
	callback func()
	t        *time.Timer
}

// NewTimer creates a stopped timer with the given callback.
func NewTimer(callback func()) *Timer {
	if callback == nil {
		panic("callback is nil")
	}
	return &Timer{callback: callback}
}

// Start arms the timer to fire once after delayMs milliseconds,
// replacing any previously armed deadline.
func (t *Timer) Start(delayMs int32) {
	t.Stop()
	t.t = time.AfterFunc(time.Duration(delayMs)*time.Millisecond, t.callback)
}

// Stop disarms the timer. A callback already running is not interrupted.
func (t *Timer) Stop() {
	if t.t != nil {
		t.t.Stop()
	}
}

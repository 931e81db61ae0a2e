// Package pool provides pooled timers for teardown and wait paths that
// create timers frequently.
package pool

import (
	"sync"
	"time"
)

var timerPool = sync.Pool{
	New: func() any { return time.NewTimer(time.Hour) },
}

// GetTimer returns a timer for the given duration d from the pool.
//
// Return back the timer to the pool with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	t, _ := timerPool.Get().(*time.Timer)
	if t.Reset(d) {
		// timer was active, drain the channel to prevent a stale fire
		select {
		case <-t.C:
		default:
		}
	}
	return t
}

// PutTimer returns timer to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// drain t.C if it wasn't obtained by the caller yet
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

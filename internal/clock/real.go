package clock

import (
	"sync"
	"time"
)

// Real schedules callbacks on the wall clock using time.AfterFunc. Callbacks
// run on their own goroutines.
type Real struct {
	mu     sync.Mutex
	next   Token
	timers map[Token]*time.Timer
}

// NewReal returns a wall-clock scheduler.
func NewReal() *Real {
	return &Real{timers: make(map[Token]*time.Timer)}
}

// Now returns the current UTC time.
func (r *Real) Now() time.Time {
	return time.Now().UTC()
}

// After runs fn on its own goroutine once d has elapsed.
func (r *Real) After(d time.Duration, fn func()) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	token := r.next
	r.timers[token] = time.AfterFunc(d, func() {
		r.mu.Lock()
		_, pending := r.timers[token]
		delete(r.timers, token)
		r.mu.Unlock()

		if pending {
			fn()
		}
	})
	return token
}

// Cancel stops the timer behind t if it has not fired yet.
func (r *Real) Cancel(t Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer, ok := r.timers[t]
	if !ok {
		return false
	}
	delete(r.timers, t)
	timer.Stop()
	return true
}

// Pending reports how many callbacks have not fired or been cancelled.
func (r *Real) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels every pending callback.
func (r *Real) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, timer := range r.timers {
		timer.Stop()
		delete(r.timers, token)
	}
}

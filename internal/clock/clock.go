// Package clock provides the delayed one-shot callbacks that drive the chat
// panel state machine, with a real implementation and a manual one for tests.
package clock

import "time"

// Token identifies a scheduled callback. The zero Token never refers to a
// pending callback.
type Token uint64

// Scheduler arms one-shot callbacks and revokes them before they fire.
type Scheduler interface {
	// Now reports the scheduler's current time.
	Now() time.Time
	// After arranges for fn to run once d has elapsed.
	After(d time.Duration, fn func()) Token
	// Cancel revokes a pending callback. It reports whether the callback was
	// still pending; false means it already fired or was cancelled.
	Cancel(t Token) bool
}

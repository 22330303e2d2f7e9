package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps run metadata such as cluster score computation times.
// Tests freeze it through SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the package clock's current time in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}

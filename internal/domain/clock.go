package domain

import "github.com/jonboulle/clockwork"

// clock stamps events whose snapshot carries no observation time.
// Tests freeze it via SetClock for deterministic timestamps.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used by Diff. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

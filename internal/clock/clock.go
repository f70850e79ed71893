// Package clock supplies the current time behind an interface so expiry and
// eligibility checks stay deterministic under test.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// New returns a Clock backed by the system wall clock.
func New() Clock {
	return systemClock{}
}

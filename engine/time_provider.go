package engine

import "time"

// Clock supplies the current time to the scheduler
type Clock interface {
	Now() time.Time
}

// TimeProvider is the wall clock with monotonic readings
type TimeProvider struct{}

// NewTimeProvider creates a wall-clock provider
func NewTimeProvider() *TimeProvider {
	return &TimeProvider{}
}

// Now returns time.Now
func (p *TimeProvider) Now() time.Time {
	return time.Now()
}

// Elapsed returns seconds since start on clock c, the timestamp base for captured frames
func Elapsed(c Clock, start time.Time) float64 {
	return c.Now().Sub(start).Seconds()
}

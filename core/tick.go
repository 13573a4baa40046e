package core

import "time"

// Tick identifies one fixed-duration simulation step
// Signed so that tick arithmetic (current - target) never wraps
type Tick int64

// TickNone marks an unset tick slot
const TickNone Tick = -1

// Valid reports whether t refers to a real tick
func (t Tick) Valid() bool {
	return t >= 0
}

// TickInterval returns the wall-clock duration of one tick at the given rate
func TickInterval(ticksPerSecond int) time.Duration {
	if ticksPerSecond <= 0 {
		return 0
	}
	return time.Second / time.Duration(ticksPerSecond)
}

package status

import (
	"math"
	"sync/atomic"
)

// AtomicFloat is a float64 gauge stored as its IEEE bits
// Method names follow atomic.Int64 so gauges and counters read alike
type AtomicFloat struct {
	v atomic.Uint64
}

func (f *AtomicFloat) Store(val float64) {
	f.v.Store(math.Float64bits(val))
}

func (f *AtomicFloat) Load() float64 {
	return math.Float64frombits(f.v.Load())
}

// Add applies delta with a CAS loop and returns the new value
func (f *AtomicFloat) Add(delta float64) float64 {
	for {
		old := f.v.Load()
		next := math.Float64frombits(old) + delta
		if f.v.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

package input

import (
	"fmt"

	"github.com/lixenwraith/rollback/core"
)

// Buffer is a per-participant ring of samples indexed by tick mod capacity
// Each slot remembers its tick so stale entries are never mistaken for current ones
// The ring holds twice the window: a future tick accepted at current+window-1
// may only evict ticks older than current-window, which no rollback can reach
type Buffer struct {
	slots      []bufferSlot
	window     core.Tick
	latestAuth core.Tick
}

type bufferSlot struct {
	tick      core.Tick
	sample    Sample
	predicted bool
}

// NewBuffer creates a buffer with the given window; window must be positive
func NewBuffer(window int) *Buffer {
	b := &Buffer{
		slots:      make([]bufferSlot, 2*window),
		window:     core.Tick(window),
		latestAuth: core.TickNone,
	}
	for i := range b.slots {
		b.slots[i].tick = core.TickNone
	}
	return b
}

// Window is the distance from current within which ticks are accepted
func (b *Buffer) Window() int {
	return int(b.window)
}

func (b *Buffer) slot(tick core.Tick) *bufferSlot {
	return &b.slots[int(tick%core.Tick(len(b.slots)))]
}

// Record stores sample for tick. Accepted ticks run from current-window, the
// oldest tick a rollback can restore, to current+window-1; others are rejected
// with ErrInputOutsideWindow
func (b *Buffer) Record(current, tick core.Tick, sample Sample, predicted bool) error {
	h := b.window
	if !tick.Valid() || tick-current >= h || current-tick > h {
		return fmt.Errorf("%w: tick %d, current %d, window %d", ErrInputOutsideWindow, tick, current, h)
	}
	if !sample.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidSample, sample)
	}

	s := b.slot(tick)
	// A prediction never replaces authoritative data for the same tick
	if predicted && s.tick == tick && !s.predicted {
		return nil
	}
	s.tick = tick
	s.sample = sample
	s.predicted = predicted
	if !predicted && tick > b.latestAuth {
		b.latestAuth = tick
	}
	return nil
}

// Recorded returns the raw slot content for tick: the authoritative sample or
// the prediction that was last resolved for it
func (b *Buffer) Recorded(tick core.Tick) (sample Sample, predicted bool, ok bool) {
	if !tick.Valid() {
		return Neutral, false, false
	}
	s := b.slot(tick)
	if s.tick != tick {
		return Neutral, false, false
	}
	return s.sample, s.predicted, true
}

// Get returns the authoritative sample for tick, or a prediction: the most
// recent authoritative sample before tick still in the window, else Neutral
// Pure read; repeated calls without new data return the same value
func (b *Buffer) Get(tick core.Tick) (Sample, bool) {
	if s, predicted, ok := b.Recorded(tick); ok && !predicted {
		return s, false
	}
	return b.predict(tick), true
}

func (b *Buffer) predict(tick core.Tick) Sample {
	h := b.window

	// Fast path: newest authoritative data is older than tick
	if b.latestAuth.Valid() && b.latestAuth < tick && tick-b.latestAuth <= h {
		if s, predicted, ok := b.Recorded(b.latestAuth); ok && !predicted {
			return s
		}
	}

	for t := tick - 1; t >= 0 && tick-t <= h; t-- {
		if s, predicted, ok := b.Recorded(t); ok && !predicted {
			return s
		}
	}
	return Neutral
}

// Resolve returns the sample to simulate tick with and stores any prediction
// so a later authoritative arrival can be compared against it
func (b *Buffer) Resolve(current, tick core.Tick) Sample {
	s, predicted := b.Get(tick)
	if predicted {
		_ = b.Record(current, tick, s, true)
	}
	return s
}

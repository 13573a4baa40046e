package engine

import (
	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/physics"
)

// SnapshotHistory is a fixed ring of world snapshots indexed by tick mod capacity
// Slots are overwritten unconditionally; Get checks the stored tick so stale
// slots never answer for a different tick
type SnapshotHistory struct {
	slots []historySlot
}

type historySlot struct {
	tick core.Tick
	snap physics.WorldSnapshot
}

// NewSnapshotHistory allocates capacity slots, capacity must be positive
func NewSnapshotHistory(capacity int) *SnapshotHistory {
	h := &SnapshotHistory{slots: make([]historySlot, capacity)}
	h.Clear()
	return h
}

func (h *SnapshotHistory) Capacity() int {
	return len(h.slots)
}

func (h *SnapshotHistory) slot(tick core.Tick) *historySlot {
	return &h.slots[int(tick%core.Tick(len(h.slots)))]
}

// Record stores snap for tick, copying into the slot's own storage
func (h *SnapshotHistory) Record(tick core.Tick, snap physics.WorldSnapshot) {
	if !tick.Valid() {
		return
	}
	s := h.slot(tick)
	s.tick = tick
	s.snap.Tick = tick
	s.snap.Bodies = append(s.snap.Bodies[:0], snap.Bodies...)
}

// Get returns the snapshot for tick if its slot still holds it
// The returned snapshot shares slot storage and is valid until the slot is rewritten
func (h *SnapshotHistory) Get(tick core.Tick) (physics.WorldSnapshot, bool) {
	if !tick.Valid() {
		return physics.WorldSnapshot{}, false
	}
	s := h.slot(tick)
	if s.tick != tick {
		return physics.WorldSnapshot{}, false
	}
	return s.snap, true
}

// Clear forgets every recorded tick
func (h *SnapshotHistory) Clear() {
	for i := range h.slots {
		h.slots[i].tick = core.TickNone
		h.slots[i].snap.Bodies = h.slots[i].snap.Bodies[:0]
	}
}

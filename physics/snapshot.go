package physics

import (
	"errors"
	"fmt"
	"slices"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/vmath"
)

// BodyState is the mutable, velocity-affecting state of one body
type BodyState struct {
	ID              BodyID
	Position        vmath.Vec2
	Velocity        vmath.Vec2
	Angle           int64
	AngularVelocity int64
}

// WorldSnapshot is the state of every awake body at the start of Tick
// Bodies are in ascending id order; the id list records which bodies existed
type WorldSnapshot struct {
	Tick   core.Tick
	Bodies []BodyState
}

// Equal reports whether two snapshots hold bit-identical state
func (s WorldSnapshot) Equal(o WorldSnapshot) bool {
	return s.Tick == o.Tick && slices.Equal(s.Bodies, o.Bodies)
}

// Clone returns a deep copy
func (s WorldSnapshot) Clone() WorldSnapshot {
	return WorldSnapshot{Tick: s.Tick, Bodies: slices.Clone(s.Bodies)}
}

// Snapshot captures the state of all awake bodies, labelled with tick
func (w *World) Snapshot(tick core.Tick) WorldSnapshot {
	var s WorldSnapshot
	w.SnapshotInto(&s, tick)
	return s
}

// SnapshotInto is Snapshot reusing dst's storage
func (w *World) SnapshotInto(dst *WorldSnapshot, tick core.Tick) {
	dst.Tick = tick
	dst.Bodies = dst.Bodies[:0]
	for _, b := range w.bodies {
		if b.dormant {
			continue
		}
		dst.Bodies = append(dst.Bodies, b.State())
	}
}

// Restore puts the world back to the state captured in s
//
// Bodies present in both are restored exactly. Bodies spawned after s.Tick
// return to their spawn state and sleep until BeginTick reaches their spawn
// tick. Ids that exist on only one side are skipped and reported as
// ErrSnapshotBodyMismatch; the rest of the restore still happens.
// Pending forces and the last step's contacts are discarded.
func (w *World) Restore(s WorldSnapshot) error {
	if w.locked {
		return ErrWorldStepping
	}

	var errs []error
	i := 0
	for _, b := range w.bodies {
		for i < len(s.Bodies) && s.Bodies[i].ID < b.id {
			errs = append(errs, fmt.Errorf("%w: body %d removed since tick %d", ErrSnapshotBodyMismatch, s.Bodies[i].ID, s.Tick))
			i++
		}

		switch {
		case i < len(s.Bodies) && s.Bodies[i].ID == b.id:
			b.applyState(s.Bodies[i])
			b.dormant = false
			i++
		case b.spawnTick > s.Tick:
			b.applyState(b.spawn)
			b.dormant = true
		default:
			errs = append(errs, fmt.Errorf("%w: body %d missing from tick %d", ErrSnapshotBodyMismatch, b.id, s.Tick))
		}
		b.clearForces()
		b.updateGeometry()
	}
	for ; i < len(s.Bodies); i++ {
		errs = append(errs, fmt.Errorf("%w: body %d removed since tick %d", ErrSnapshotBodyMismatch, s.Bodies[i].ID, s.Tick))
	}

	w.tick = s.Tick
	w.manifolds = w.manifolds[:0]
	w.contacts = w.contacts[:0]
	return errors.Join(errs...)
}

// Package arena builds the level shared by every peer of a session
//
// Peers must construct identical worlds: bodies are added in a fixed order,
// so ids line up, and every coordinate is an exact fixed-point value.
package arena

import (
	"fmt"

	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/input"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/vmath"
)

// Layout in world units, y up
const (
	FloorHalfWidth  = 12
	WallHalfHeight  = 6
	SpawnHeight     = 3
	PlayerSpacing   = 4
	CrateStackCount = 2
)

// PlayerFunc builds a participant's body at x, y
type PlayerFunc func(x, y int64) physics.BodyDesc

// Arena records the ids of the bodies it created
type Arena struct {
	Floor   physics.BodyID
	Walls   [2]physics.BodyID
	Crates  []physics.BodyID
	Players map[input.ParticipantID]physics.BodyID
}

// Build adds the static frame, the crates, then one body per session
// participant in ascending id order, and binds each participant to its body
func Build(sim *engine.Simulation, session *input.Session, player PlayerFunc) (*Arena, error) {
	a := &Arena{Players: make(map[input.ParticipantID]physics.BodyID)}

	var err error
	half := vmath.FromRatio(1, 2)
	if a.Floor, err = sim.AddBody(static(0, 0, vmath.FromInt(FloorHalfWidth), half)); err != nil {
		return nil, fmt.Errorf("arena: floor: %w", err)
	}
	wallX := vmath.FromInt(FloorHalfWidth) + half
	for i, x := range []int64{-wallX, wallX} {
		if a.Walls[i], err = sim.AddBody(static(x, vmath.FromInt(WallHalfHeight), half, vmath.FromInt(WallHalfHeight))); err != nil {
			return nil, fmt.Errorf("arena: wall %d: %w", i, err)
		}
	}

	for i := range CrateStackCount {
		desc := player(0, vmath.FromInt(1+i))
		desc.FreezeRotation = false
		id, err := sim.AddBody(desc)
		if err != nil {
			return nil, fmt.Errorf("arena: crate %d: %w", i, err)
		}
		a.Crates = append(a.Crates, id)
	}

	ids := session.Participants()
	for i, pid := range ids {
		id, err := sim.AddBody(player(SpawnX(i, len(ids)), vmath.FromInt(SpawnHeight)))
		if err != nil {
			return nil, fmt.Errorf("arena: participant %d: %w", pid, err)
		}
		if err := session.Bind(pid, id); err != nil {
			return nil, err
		}
		a.Players[pid] = id
	}
	return a, nil
}

// SpawnX spreads n players symmetrically around the origin inside the walls
// The center is left to the crates
func SpawnX(i, n int) int64 {
	if n <= 0 {
		return 0
	}
	span := vmath.FromInt(2 * (FloorHalfWidth - 1))
	step := min(vmath.FromInt(PlayerSpacing), span/int64(n))
	x := int64(2*i-(n-1)) * step / 2
	if x == 0 {
		x = step / 2
	}
	return x
}

func static(x, y, hw, hh int64) physics.BodyDesc {
	return physics.BodyDesc{
		Kind:     physics.Static,
		Position: vmath.V2(x, y),
		Shapes:   []physics.Shape{physics.Box(hw, hh).WithMaterial(0, vmath.FromRatio(1, 2))},
	}
}

package arena

import (
	"testing"

	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/input"
	"github.com/lixenwraith/rollback/physics"
	"github.com/lixenwraith/rollback/vmath"
)

func box(x, y int64) physics.BodyDesc {
	return physics.BodyDesc{
		Kind:           physics.Dynamic,
		Position:       vmath.V2(x, y),
		Gravity:        vmath.V2(0, -vmath.FromInt(10)),
		FreezeRotation: true,
		Shapes:         []physics.Shape{physics.Box(vmath.FromRatio(1, 2), vmath.FromRatio(1, 2))},
	}
}

func build(t *testing.T, participants ...input.ParticipantID) (*engine.Simulation, *input.Session, *Arena) {
	t.Helper()
	sim, err := engine.NewSimulation(engine.DefaultConfig(), physics.NewWorld(physics.Config{}), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	session, err := input.NewSession(input.SessionConfig{Horizon: sim.Horizon(), Delay: 2, InboxSize: 16}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, id := range participants {
		if err := session.AddParticipant(id, i == 0); err != nil {
			t.Fatal(err)
		}
	}
	a, err := Build(sim, session, box)
	if err != nil {
		t.Fatal(err)
	}
	return sim, session, a
}

func TestBuildBindsParticipants(t *testing.T) {
	_, session, a := build(t, 3, 1)

	if len(a.Players) != 2 {
		t.Fatalf("got %d player bodies, want 2", len(a.Players))
	}
	for id, body := range a.Players {
		bound, ok := session.BodyOf(id)
		if !ok || bound != body {
			t.Errorf("participant %d bound to %d, arena says %d", id, bound, body)
		}
	}
	// Ascending participant order decides body order
	if a.Players[1] >= a.Players[3] {
		t.Errorf("participant 1 body %d should precede participant 3 body %d", a.Players[1], a.Players[3])
	}
}

func TestBuildIsReproducible(t *testing.T) {
	simA, _, _ := build(t, 0, 1)
	simB, _, _ := build(t, 0, 1)

	if err := simA.RunTicks(240); err != nil {
		t.Fatal(err)
	}
	if err := simB.RunTicks(240); err != nil {
		t.Fatal(err)
	}
	a := simA.World().Snapshot(simA.Tick())
	b := simB.World().Snapshot(simB.Tick())
	if !a.Equal(b) {
		t.Error("identical arenas diverged")
	}
}

func TestSpawnXStaysInsideWalls(t *testing.T) {
	limit := vmath.FromInt(FloorHalfWidth - 1)
	for n := 1; n <= 9; n++ {
		seen := make(map[int64]bool)
		for i := range n {
			x := SpawnX(i, n)
			if x < -limit || x > limit {
				t.Errorf("n=%d i=%d: x=%f outside walls", n, i, vmath.ToFloat(x))
			}
			if x == 0 {
				t.Errorf("n=%d i=%d: spawned on the crates", n, i)
			}
			if seen[x] {
				t.Errorf("n=%d i=%d: duplicate spawn %f", n, i, vmath.ToFloat(x))
			}
			seen[x] = true
		}
	}
}

package audio

import (
	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/physics"
)

// CuePlayer is satisfied by Player
type CuePlayer interface {
	Play(Cue) bool
}

type pair struct{ a, b physics.BodyID }

// Observer turns simulation events into cues
// Contacts sound only on the tick they begin and never while resimulating
type Observer struct {
	player CuePlayer
	prev   map[pair]struct{}
	cur    map[pair]struct{}
}

func NewObserver(p CuePlayer) *Observer {
	return &Observer{
		player: p,
		prev:   make(map[pair]struct{}),
		cur:    make(map[pair]struct{}),
	}
}

// Attach registers the contact observer and the rollback listener
func (o *Observer) Attach(sim *engine.Simulation) {
	sim.AddObserver(engine.PhasePost, o)
	sim.OnRollback(func(from, to core.Tick) {
		o.player.Play(CueRollback)
	})
}

func (o *Observer) Observe(sim *engine.Simulation) {
	if sim.Resimulating() {
		return
	}

	clear(o.cur)
	started := false
	for _, c := range sim.World().Contacts() {
		k := pair{c.A, c.B}
		if c.B < c.A {
			k = pair{c.B, c.A}
		}
		o.cur[k] = struct{}{}
		if _, ok := o.prev[k]; !ok {
			started = true
		}
	}
	o.prev, o.cur = o.cur, o.prev

	// One cue per tick however many pairs began
	if started {
		o.player.Play(CueContact)
	}
}

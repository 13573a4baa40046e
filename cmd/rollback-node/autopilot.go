package main

import (
	"github.com/lixenwraith/rollback/input"
	"github.com/lixenwraith/rollback/vmath"
)

// autopilot stands in for a device on a headless node
// It changes direction every 0.25 to 1.25 seconds of ticks and jumps now and then
type autopilot struct {
	rng      *vmath.FastRand
	tickRate int
	current  input.Sample
	left     int
	jump     int
}

func newAutopilot(seed uint64, tickRate int) *autopilot {
	return &autopilot{rng: vmath.NewFastRand(seed), tickRate: tickRate}
}

// Sample implements input.Source; called once per live tick
func (a *autopilot) Sample() input.Sample {
	if a.left <= 0 {
		a.left = a.tickRate/4 + a.rng.Intn(a.tickRate)
		a.current.Move = input.MoveDirection(a.rng.Intn(3))
		if a.rng.Intn(4) == 0 {
			a.jump = a.tickRate / 8
		}
	}
	a.left--

	s := a.current
	if a.jump > 0 {
		a.jump--
		s.Jump = input.JumpPressed
	}
	return s
}

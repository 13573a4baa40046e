package main

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/input"
	"github.com/lixenwraith/rollback/vmath"
)

// loopback plays a remote participant whose input reaches the session late
// It decides a sample every live tick and delivers it after latency plus
// jitter from a timer goroutine, the way a network peer would
type loopback struct {
	session *input.Session
	id      input.ParticipantID
	delay   core.Tick
	latency time.Duration
	jitter  time.Duration

	rng    *vmath.FastRand
	sample input.Sample
	hold   int // ticks left on the current sample
	jump   int // ticks left holding jump

	stopped atomic.Bool
	pending sync.WaitGroup
	sent    *atomic.Int64
}

func newLoopback(session *input.Session, id input.ParticipantID, latency, jitter time.Duration, seed uint64, sent *atomic.Int64) *loopback {
	return &loopback{
		session: session,
		id:      id,
		delay:   core.Tick(session.Config().Delay),
		latency: latency,
		jitter:  jitter,
		rng:     vmath.NewFastRand(seed),
		sent:    sent,
	}
}

func (l *loopback) Attach(sim *engine.Simulation) {
	sim.AddObserver(engine.PhasePre, l)
}

func (l *loopback) Observe(sim *engine.Simulation) {
	if sim.Resimulating() || l.stopped.Load() {
		return
	}
	l.decide(sim)

	msg := input.Message{Participant: l.id, Tick: sim.Tick() + l.delay, Sample: l.sample}
	wait := l.latency
	if l.jitter > 0 {
		wait += time.Duration(l.rng.Intn(int(l.jitter)))
	}

	l.pending.Add(1)
	time.AfterFunc(wait, func() {
		defer l.pending.Done()
		if l.stopped.Load() {
			return
		}
		if err := l.session.Deliver(msg); err == nil {
			l.sent.Add(1)
		}
	})
}

// decide wanders between directions, turning back near the walls
func (l *loopback) decide(sim *engine.Simulation) {
	if l.hold > 0 {
		l.hold--
		if l.jump > 0 {
			l.jump--
		} else {
			l.sample.Jump = input.JumpNone
		}
		return
	}

	l.hold = 30 + l.rng.Intn(90)
	l.sample = input.Sample{Move: input.MoveDirection(l.rng.Intn(3))}
	if l.rng.Intn(3) == 0 {
		l.sample.Jump = input.JumpPressed
		l.jump = 14
	}

	if id, ok := l.session.BodyOf(l.id); ok {
		if b, ok := sim.World().Body(id); ok {
			limit := vmath.FromInt(8)
			switch {
			case b.Position.X > limit:
				l.sample.Move = input.MoveLeft
			case b.Position.X < -limit:
				l.sample.Move = input.MoveRight
			}
		}
	}
}

// Stop discards undelivered input and waits for the timers
func (l *loopback) Stop() {
	l.stopped.Store(true)
	l.pending.Wait()
}

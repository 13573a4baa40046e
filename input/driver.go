package input

import (
	"github.com/lixenwraith/rollback/engine"
	"github.com/lixenwraith/rollback/vmath"
)

// DriverConfig maps samples to forces, Q32.32
type DriverConfig struct {
	MoveForce int64 // horizontal force per unit of Axis
	JumpForce int64 // upward force while jump is held
}

// Driver is a Step observer turning each bound participant's sample into forces
type Driver struct {
	session *Session
	cfg     DriverConfig
}

func NewDriver(session *Session, cfg DriverConfig) *Driver {
	return &Driver{session: session, cfg: cfg}
}

// Attach registers the driver for the step phase
func (d *Driver) Attach(sim *engine.Simulation) {
	sim.AddObserver(engine.PhaseStep, d)
}

// Observe queues forces for the tick being executed, participants in id order
func (d *Driver) Observe(sim *engine.Simulation) {
	tick := sim.Tick()
	world := sim.World()
	for _, p := range d.session.participants {
		if !p.bound {
			continue
		}
		s := p.buf.Resolve(tick, tick)
		f := d.Force(s)
		if f.IsZero() {
			continue
		}
		if err := world.QueueForce(p.body, f); err != nil {
			sim.Logger().Debug("driver force skipped", "participant", p.id, "body", p.body, "err", err)
		}
	}
}

// Force returns the force a sample produces
func (d *Driver) Force(s Sample) vmath.Vec2 {
	f := vmath.V2(d.cfg.MoveForce*int64(s.Axis()), 0)
	if s.Jumping() {
		f.Y = d.cfg.JumpForce
	}
	return f
}

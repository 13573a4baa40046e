package physics

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/vmath"
)

// Config holds solver tuning, all Q32.32 except Iterations
type Config struct {
	// Damping is the fraction of velocity kept per step, Scale = no damping
	Damping int64
	// CorrectionPercent of penetration beyond Slop removed per step
	CorrectionPercent int64
	Slop              int64
	// Iterations of the velocity solver over all contacts
	Iterations int
}

// DefaultConfig returns the solver settings used by the sandbox
func DefaultConfig() Config {
	return Config{
		Damping:           vmath.Scale,
		CorrectionPercent: vmath.FromRatio(4, 10),
		Slop:              vmath.FromRatio(5, 1000),
		Iterations:        4,
	}
}

// Contact describes one resolved collision of the last step
type Contact struct {
	A, B        BodyID
	Normal      vmath.Vec2 // A -> B
	Point       vmath.Vec2
	Penetration int64
}

// World owns all bodies and advances them in fixed steps
// Bodies are kept sorted by id and every pass walks them in that order
// Not safe for concurrent use
type World struct {
	cfg       Config
	bodies    []*Body
	nextID    BodyID
	tick      core.Tick
	locked    bool
	manifolds []manifold
	contacts  []Contact
}

// NewWorld creates an empty world, zero config fields fall back to DefaultConfig
func NewWorld(cfg Config) *World {
	def := DefaultConfig()
	if cfg.Damping == 0 {
		cfg.Damping = def.Damping
	}
	if cfg.CorrectionPercent == 0 {
		cfg.CorrectionPercent = def.CorrectionPercent
	}
	if cfg.Slop == 0 {
		cfg.Slop = def.Slop
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}
	return &World{cfg: cfg, nextID: 1}
}

func (w *World) Config() Config { return w.cfg }

// Tick returns the tick the world state belongs to
func (w *World) Tick() core.Tick { return w.tick }

// Lock rejects structural changes until Unlock, used around the step phase
func (w *World) Lock()   { w.locked = true }
func (w *World) Unlock() { w.locked = false }

// AddBody builds a body from desc and inserts it
// A spawnTick later than the world tick keeps the body dormant until BeginTick reaches it
func (w *World) AddBody(desc BodyDesc, spawnTick core.Tick) (BodyID, error) {
	if w.locked {
		return 0, ErrWorldStepping
	}
	b, err := newBody(w.nextID, desc, spawnTick)
	if err != nil {
		return 0, err
	}
	b.dormant = spawnTick > w.tick
	w.nextID++
	// ids are monotonic so append keeps the slice sorted
	w.bodies = append(w.bodies, b)
	return b.id, nil
}

// RemoveBody deletes a body. Snapshots that still list it report a mismatch on restore
func (w *World) RemoveBody(id BodyID) error {
	if w.locked {
		return ErrWorldStepping
	}
	i, ok := w.find(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	w.bodies = slices.Delete(w.bodies, i, i+1)
	return nil
}

func (w *World) find(id BodyID) (int, bool) {
	return slices.BinarySearchFunc(w.bodies, id, func(b *Body, id BodyID) int {
		return cmp.Compare(b.id, id)
	})
}

// Body returns the body with id
func (w *World) Body(id BodyID) (*Body, bool) {
	i, ok := w.find(id)
	if !ok {
		return nil, false
	}
	return w.bodies[i], true
}

// Bodies returns all bodies in ascending id order; the slice must not be modified
func (w *World) Bodies() []*Body {
	return w.bodies
}

// BodyCount returns the number of bodies, dormant included
func (w *World) BodyCount() int {
	return len(w.bodies)
}

// QueueForce accumulates a force applied during the next Step
func (w *World) QueueForce(id BodyID, f vmath.Vec2) error {
	b, ok := w.Body(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	b.force = b.force.Add(f)
	return nil
}

// QueueTorque accumulates a torque applied during the next Step
func (w *World) QueueTorque(id BodyID, torque int64) error {
	b, ok := w.Body(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	b.torque += torque
	return nil
}

func (w *World) SetPosition(id BodyID, p vmath.Vec2) error {
	b, ok := w.Body(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	b.Position = p
	return nil
}

func (w *World) SetVelocity(id BodyID, v vmath.Vec2) error {
	b, ok := w.Body(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	b.Velocity = v
	return nil
}

// BeginTick marks the start of tick and wakes bodies whose spawn tick has come
func (w *World) BeginTick(tick core.Tick) {
	w.tick = tick
	for _, b := range w.bodies {
		if b.dormant && b.spawnTick <= tick {
			b.dormant = false
		}
	}
}

// Step advances the world by dt (Q32.32 seconds)
// Result depends only on body state and queued forces
func (w *World) Step(dt int64) {
	for _, b := range w.bodies {
		if !b.dormant {
			integrate(b, dt, w.cfg.Damping)
		}
	}
	for _, b := range w.bodies {
		if !b.dormant {
			b.updateGeometry()
		}
	}

	w.detect()
	for it := 0; it < w.cfg.Iterations; it++ {
		for i := range w.manifolds {
			resolveVelocity(&w.manifolds[i])
		}
	}
	for i := range w.manifolds {
		correctPosition(&w.manifolds[i], w.cfg.CorrectionPercent, w.cfg.Slop)
	}

	w.contacts = w.contacts[:0]
	for i := range w.manifolds {
		m := &w.manifolds[i]
		w.contacts = append(w.contacts, Contact{
			A:           m.a.id,
			B:           m.b.id,
			Normal:      m.normal,
			Point:       m.point,
			Penetration: m.penetration,
		})
	}

	for _, b := range w.bodies {
		b.clearForces()
	}
}

// detect builds manifolds for every overlapping pair, i < j in id order
func (w *World) detect() {
	w.manifolds = w.manifolds[:0]
	for i, a := range w.bodies {
		if a.dormant || len(a.geom) == 0 {
			continue
		}
		for _, b := range w.bodies[i+1:] {
			if b.dormant || len(b.geom) == 0 {
				continue
			}
			if a.invMass == 0 && b.invMass == 0 {
				continue
			}
			if !a.box.overlaps(b.box) {
				continue
			}
			for si := range a.geom {
				sa := &a.geom[si]
				for sj := range b.geom {
					sb := &b.geom[sj]
					if !sa.box.overlaps(sb.box) {
						continue
					}
					c, ok := collide(sa, sb)
					if !ok {
						continue
					}
					w.manifolds = append(w.manifolds, manifold{
						a:           a,
						b:           b,
						normal:      c.normal,
						point:       c.point,
						penetration: c.penetration,
						restitution: vmath.Min(sa.src.Restitution, sb.src.Restitution),
						friction:    mixFriction(sa.src.Friction, sb.src.Friction),
					})
				}
			}
		}
	}
}

// Contacts returns the contacts resolved by the last Step, valid until the next one
func (w *World) Contacts() []Contact {
	return w.contacts
}

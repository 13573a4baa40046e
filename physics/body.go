package physics

import (
	"fmt"

	"github.com/lixenwraith/rollback/core"
	"github.com/lixenwraith/rollback/vmath"
)

// BodyID identifies a body within one World, assigned in increasing order
type BodyID uint32

// BodyKind selects how a body responds to forces and contacts
type BodyKind uint8

const (
	// Static bodies never move
	Static BodyKind = iota
	// Dynamic bodies respond to forces, gravity and contacts
	Dynamic
	// Kinematic bodies move by their own velocity and have infinite mass
	Kinematic
)

func (k BodyKind) String() string {
	switch k {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	case Kinematic:
		return "kinematic"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// BodyDesc declares a body for World.AddBody
// All scalars are Q32.32. Mass zero on a dynamic body defaults to 1
type BodyDesc struct {
	Kind            BodyKind
	Position        vmath.Vec2
	Angle           int64 // radians
	Velocity        vmath.Vec2
	AngularVelocity int64 // rad/s
	Mass            int64
	Gravity         vmath.Vec2 // acceleration applied every step to dynamic bodies
	MaxSpeed        int64      // 0 = uncapped
	FreezeX         bool
	FreezeY         bool
	FreezeRotation  bool
	Shapes          []Shape
}

// Body is owned by a World
// Position, Velocity, Angle and AngularVelocity may be edited by gameplay
// code between steps; everything else is fixed at creation
type Body struct {
	Position        vmath.Vec2
	Velocity        vmath.Vec2
	Angle           int64
	AngularVelocity int64

	id             BodyID
	kind           BodyKind
	gravity        vmath.Vec2
	maxSpeed       int64
	freezeX        bool
	freezeY        bool
	freezeRotation bool
	shapes         []Shape
	localNormals   [][]vmath.Vec2

	mass       int64
	invMass    int64
	inertia    int64
	invInertia int64

	force  vmath.Vec2
	torque int64

	spawnTick core.Tick
	spawn     BodyState
	dormant   bool

	geom []worldShape
	box  aabb
}

func (b *Body) ID() BodyID           { return b.id }
func (b *Body) Kind() BodyKind       { return b.kind }
func (b *Body) Mass() int64          { return b.mass }
func (b *Body) Inertia() int64       { return b.inertia }
func (b *Body) Shapes() []Shape      { return b.shapes }
func (b *Body) SpawnTick() core.Tick { return b.spawnTick }

// Dormant reports whether the body is waiting for its spawn tick
func (b *Body) Dormant() bool { return b.dormant }

// State returns the mutable kinematic state of the body
func (b *Body) State() BodyState {
	return BodyState{
		ID:              b.id,
		Position:        b.Position,
		Velocity:        b.Velocity,
		Angle:           b.Angle,
		AngularVelocity: b.AngularVelocity,
	}
}

func (b *Body) applyState(s BodyState) {
	b.Position = s.Position
	b.Velocity = s.Velocity
	b.Angle = s.Angle
	b.AngularVelocity = s.AngularVelocity
}

func (b *Body) clearForces() {
	b.force = vmath.Vec2{}
	b.torque = 0
}

// newBody validates desc and derives mass properties
func newBody(id BodyID, desc BodyDesc, spawnTick core.Tick) (*Body, error) {
	b := &Body{
		Position:        desc.Position,
		Velocity:        desc.Velocity,
		Angle:           desc.Angle,
		AngularVelocity: desc.AngularVelocity,
		id:              id,
		kind:            desc.Kind,
		gravity:         desc.Gravity,
		maxSpeed:        desc.MaxSpeed,
		freezeX:         desc.FreezeX,
		freezeY:         desc.FreezeY,
		freezeRotation:  desc.FreezeRotation,
		spawnTick:       spawnTick,
	}

	if desc.Kind > Kinematic {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBody, desc.Kind)
	}
	if desc.Mass < 0 {
		return nil, fmt.Errorf("%w: negative mass", ErrInvalidBody)
	}
	if desc.MaxSpeed < 0 {
		return nil, fmt.Errorf("%w: negative max speed", ErrInvalidBody)
	}

	b.shapes = make([]Shape, 0, len(desc.Shapes))
	b.localNormals = make([][]vmath.Vec2, 0, len(desc.Shapes))
	for i, s := range desc.Shapes {
		ns, err := s.normalized()
		if err != nil {
			return nil, fmt.Errorf("shape %d: %w", i, err)
		}
		b.shapes = append(b.shapes, ns)
		b.localNormals = append(b.localNormals, edgeNormals(ns))
	}
	b.geom = make([]worldShape, len(b.shapes))
	for i := range b.shapes {
		b.geom[i].src = &b.shapes[i]
		if n := len(b.shapes[i].Vertices); n > 0 {
			b.geom[i].verts = make([]vmath.Vec2, n)
			b.geom[i].normals = make([]vmath.Vec2, n)
		}
	}

	if desc.Kind == Dynamic {
		b.mass = desc.Mass
		if b.mass == 0 {
			b.mass = vmath.Scale
		}
		b.invMass = vmath.Div(vmath.Scale, b.mass)
		b.inertia = bodyInertia(b.shapes, b.mass)
		if b.inertia > 0 && !b.freezeRotation {
			b.invInertia = vmath.Div(vmath.Scale, b.inertia)
		}
	}

	b.spawn = b.State()
	b.updateGeometry()
	return b, nil
}

// bodyInertia splits mass across shapes by area and sums their inertia
func bodyInertia(shapes []Shape, mass int64) int64 {
	var total int64
	for i := range shapes {
		total += shapes[i].area()
	}
	if total <= 0 {
		return 0
	}
	var inertia int64
	for i := range shapes {
		m := vmath.MulDiv(mass, shapes[i].area(), total)
		inertia += shapes[i].inertia(m)
	}
	return inertia
}

// edgeNormals returns outward unit normals of a CCW polygon, nil for circles
func edgeNormals(s Shape) []vmath.Vec2 {
	if s.Kind != ShapePolygon {
		return nil
	}
	n := len(s.Vertices)
	out := make([]vmath.Vec2, n)
	for i := 0; i < n; i++ {
		edge := s.Vertices[(i+1)%n].Sub(s.Vertices[i])
		out[i], _ = edge.Perp().Neg().Normalize()
	}
	return out
}

// updateGeometry transforms shapes into world space and refreshes the bounds
func (b *Body) updateGeometry() {
	rot := newRotation(b.Angle)
	for i := range b.geom {
		g := &b.geom[i]
		s := g.src
		switch s.Kind {
		case ShapeCircle:
			g.center = b.Position.Add(rot.apply(s.Offset))
			g.radius = s.Radius
			r := vmath.V2(s.Radius, s.Radius)
			g.box = aabb{min: g.center.Sub(r), max: g.center.Add(r)}
		case ShapePolygon:
			for j, v := range s.Vertices {
				g.verts[j] = b.Position.Add(rot.apply(v))
				g.normals[j] = rot.apply(b.localNormals[i][j])
			}
			g.box = aabb{min: g.verts[0], max: g.verts[0]}
			for _, v := range g.verts[1:] {
				g.box = g.box.union(aabb{min: v, max: v})
			}
			g.center = b.Position
		}
		if i == 0 {
			b.box = g.box
		} else {
			b.box = b.box.union(g.box)
		}
	}
}

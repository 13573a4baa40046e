package physics

import (
	"fmt"

	"github.com/lixenwraith/rollback/vmath"
)

// ShapeKind selects the collision primitive of a Shape
type ShapeKind uint8

const (
	ShapeCircle ShapeKind = iota
	ShapePolygon
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCircle:
		return "circle"
	case ShapePolygon:
		return "polygon"
	default:
		return fmt.Sprintf("shape(%d)", k)
	}
}

// Default material, matching a slightly bouncy frictionless surface
var (
	DefaultRestitution = vmath.FromRatio(5, 100)
	DefaultFriction    = int64(0)
)

// Shape is a collision primitive in body space
// Circle uses Offset and Radius, Polygon uses Vertices (convex)
type Shape struct {
	Kind        ShapeKind
	Offset      vmath.Vec2
	Radius      int64
	Vertices    []vmath.Vec2
	Restitution int64
	Friction    int64
}

// Circle returns a circle shape centered at offset from the body origin
func Circle(offset vmath.Vec2, radius int64) Shape {
	return Shape{
		Kind:        ShapeCircle,
		Offset:      offset,
		Radius:      radius,
		Restitution: DefaultRestitution,
		Friction:    DefaultFriction,
	}
}

// Polygon returns a convex polygon shape, vertices in body space
// Winding is normalized to counter-clockwise when the body is built
func Polygon(vertices ...vmath.Vec2) Shape {
	vs := make([]vmath.Vec2, len(vertices))
	copy(vs, vertices)
	return Shape{
		Kind:        ShapePolygon,
		Vertices:    vs,
		Restitution: DefaultRestitution,
		Friction:    DefaultFriction,
	}
}

// Box returns an axis-aligned rectangle centered on the body origin
func Box(halfWidth, halfHeight int64) Shape {
	return Polygon(
		vmath.V2(-halfWidth, -halfHeight),
		vmath.V2(halfWidth, -halfHeight),
		vmath.V2(halfWidth, halfHeight),
		vmath.V2(-halfWidth, halfHeight),
	)
}

// WithMaterial returns a copy of s with the given restitution and friction
func (s Shape) WithMaterial(restitution, friction int64) Shape {
	s.Restitution = restitution
	s.Friction = friction
	return s
}

// normalized validates the shape and returns a private copy with CCW winding
func (s Shape) normalized() (Shape, error) {
	switch s.Kind {
	case ShapeCircle:
		if s.Radius <= 0 {
			return s, fmt.Errorf("%w: circle radius must be positive", ErrInvalidShape)
		}
		return s, nil
	case ShapePolygon:
		n := len(s.Vertices)
		if n < 3 {
			return s, fmt.Errorf("%w: polygon needs at least 3 vertices, got %d", ErrInvalidShape, n)
		}
		vs := make([]vmath.Vec2, n)
		copy(vs, s.Vertices)
		if signedArea2(vs) < 0 {
			for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
				vs[i], vs[j] = vs[j], vs[i]
			}
		}
		if signedArea2(vs) == 0 {
			return s, fmt.Errorf("%w: degenerate polygon", ErrInvalidShape)
		}
		for i := 0; i < n; i++ {
			a, b, c := vs[i], vs[(i+1)%n], vs[(i+2)%n]
			if b.Sub(a).Cross(c.Sub(b)) < 0 {
				return s, fmt.Errorf("%w: polygon is not convex at vertex %d", ErrInvalidShape, (i+1)%n)
			}
		}
		s.Vertices = vs
		return s, nil
	default:
		return s, fmt.Errorf("%w: unknown kind %s", ErrInvalidShape, s.Kind)
	}
}

// signedArea2 returns twice the signed polygon area, positive for CCW
func signedArea2(vs []vmath.Vec2) int64 {
	var sum int64
	for i := range vs {
		sum += vs[i].Cross(vs[(i+1)%len(vs)])
	}
	return sum
}

// area returns the shape area in Q32.32
func (s *Shape) area() int64 {
	if s.Kind == ShapeCircle {
		return vmath.Mul(vmath.Pi, vmath.Mul(s.Radius, s.Radius))
	}
	return signedArea2(s.Vertices) / 2
}

// inertia returns the moment of inertia about the body origin for mass m
func (s *Shape) inertia(m int64) int64 {
	if s.Kind == ShapeCircle {
		r2 := vmath.Mul(s.Radius, s.Radius)
		return vmath.Mul(m, r2/2+s.Offset.MagSq())
	}

	// I = m / (6 * sum(cross)) * sum(cross * (a.a + a.b + b.b))
	var num, den int64
	vs := s.Vertices
	for i := range vs {
		a, b := vs[i], vs[(i+1)%len(vs)]
		c := a.Cross(b)
		num += vmath.Mul(c, a.Dot(a)+a.Dot(b)+b.Dot(b))
		den += c
	}
	if den == 0 {
		return 0
	}
	return vmath.MulDiv(m, num, 6*den)
}

// worldShape is a shape transformed into world space for one step
type worldShape struct {
	src     *Shape
	center  vmath.Vec2
	radius  int64
	verts   []vmath.Vec2
	normals []vmath.Vec2
	box     aabb
}

type aabb struct {
	min, max vmath.Vec2
}

func (a aabb) overlaps(b aabb) bool {
	return a.min.X <= b.max.X && b.min.X <= a.max.X &&
		a.min.Y <= b.max.Y && b.min.Y <= a.max.Y
}

func (a aabb) union(b aabb) aabb {
	return aabb{
		min: vmath.V2(vmath.Min(a.min.X, b.min.X), vmath.Min(a.min.Y, b.min.Y)),
		max: vmath.V2(vmath.Max(a.max.X, b.max.X), vmath.Max(a.max.Y, b.max.Y)),
	}
}

// rotation caches cos/sin of a body angle for the step
type rotation struct {
	c, s int64
}

func newRotation(angle int64) rotation {
	if angle == 0 {
		return rotation{c: vmath.Scale}
	}
	turn := vmath.RadToTurn(angle)
	return rotation{c: vmath.Cos(turn), s: vmath.Sin(turn)}
}

func (r rotation) apply(v vmath.Vec2) vmath.Vec2 {
	return vmath.V2(
		vmath.Mul(v.X, r.c)-vmath.Mul(v.Y, r.s),
		vmath.Mul(v.X, r.s)+vmath.Mul(v.Y, r.c),
	)
}

// support returns the vertex furthest along dir
func (ws *worldShape) support(dir vmath.Vec2) vmath.Vec2 {
	best := ws.verts[0]
	bestDot := best.Dot(dir)
	for _, v := range ws.verts[1:] {
		if d := v.Dot(dir); d > bestDot {
			best, bestDot = v, d
		}
	}
	return best
}

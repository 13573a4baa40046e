package physics

import (
	"math"

	"github.com/lixenwraith/rollback/vmath"
)

// faceBias prefers the first polygon as reference when separations are nearly equal
var faceBias = vmath.FromRatio(1, 1000)

// contactGeom is the narrow phase result for one shape pair
// normal points from the first shape toward the second
type contactGeom struct {
	normal      vmath.Vec2
	point       vmath.Vec2
	penetration int64
}

// collide dispatches on the shape kinds of a and b
func collide(a, b *worldShape) (contactGeom, bool) {
	switch {
	case a.src.Kind == ShapeCircle && b.src.Kind == ShapeCircle:
		return circleCircle(a, b)
	case a.src.Kind == ShapePolygon && b.src.Kind == ShapeCircle:
		return polygonCircle(a, b)
	case a.src.Kind == ShapeCircle && b.src.Kind == ShapePolygon:
		c, ok := polygonCircle(b, a)
		c.normal = c.normal.Neg()
		return c, ok
	default:
		return polygonPolygon(a, b)
	}
}

func circleCircle(a, b *worldShape) (contactGeom, bool) {
	d := b.center.Sub(a.center)
	rs := a.radius + b.radius
	if d.MagSq() >= vmath.Mul(rs, rs) {
		return contactGeom{}, false
	}
	n, dist := d.Normalize()
	if dist == 0 {
		// Coincident centers, push along +X
		return contactGeom{
			normal:      vmath.V2(vmath.Scale, 0),
			point:       a.center,
			penetration: rs,
		}, true
	}
	return contactGeom{
		normal:      n,
		point:       a.center.Add(n.Scale(a.radius)),
		penetration: rs - dist,
	}, true
}

// polygonCircle tests polygon p against circle c, normal from p to c
func polygonCircle(p, c *worldShape) (contactGeom, bool) {
	n := len(p.verts)
	sep := int64(math.MinInt64)
	face := 0
	for i, v := range p.verts {
		s := p.normals[i].Dot(c.center.Sub(v))
		if s > c.radius {
			return contactGeom{}, false
		}
		if s > sep {
			sep, face = s, i
		}
	}

	v1 := p.verts[face]
	v2 := p.verts[(face+1)%n]

	// Center inside polygon
	if sep <= 0 {
		nrm := p.normals[face]
		return contactGeom{
			normal:      nrm,
			point:       c.center.Sub(nrm.Scale(sep)),
			penetration: c.radius - sep,
		}, true
	}

	// Voronoi region of v1, v2 or the face
	u1 := c.center.Sub(v1).Dot(v2.Sub(v1))
	u2 := c.center.Sub(v2).Dot(v1.Sub(v2))
	switch {
	case u1 <= 0:
		return cornerContact(v1, c)
	case u2 <= 0:
		return cornerContact(v2, c)
	default:
		nrm := p.normals[face]
		return contactGeom{
			normal:      nrm,
			point:       c.center.Sub(nrm.Scale(sep)),
			penetration: c.radius - sep,
		}, true
	}
}

func cornerContact(corner vmath.Vec2, c *worldShape) (contactGeom, bool) {
	d := c.center.Sub(corner)
	if d.MagSq() > vmath.Mul(c.radius, c.radius) {
		return contactGeom{}, false
	}
	nrm, dist := d.Normalize()
	if dist == 0 {
		return contactGeom{}, false
	}
	return contactGeom{normal: nrm, point: corner, penetration: c.radius - dist}, true
}

// leastPenetration returns the face of a with maximum separation from b
func leastPenetration(a, b *worldShape) (int64, int) {
	best := int64(math.MinInt64)
	face := 0
	for i, nrm := range a.normals {
		s := b.support(nrm.Neg())
		d := nrm.Dot(s.Sub(a.verts[i]))
		if d > best {
			best, face = d, i
		}
	}
	return best, face
}

// polygonPolygon runs SAT over both face sets, then clips the incident edge
// against the reference face to find the contact point
func polygonPolygon(a, b *worldShape) (contactGeom, bool) {
	sepA, faceA := leastPenetration(a, b)
	if sepA > 0 {
		return contactGeom{}, false
	}
	sepB, faceB := leastPenetration(b, a)
	if sepB > 0 {
		return contactGeom{}, false
	}

	ref, inc, face, flip := a, b, faceA, false
	if sepB > sepA+faceBias {
		ref, inc, face, flip = b, a, faceB, true
	}

	nrm := ref.normals[face]
	rn := len(ref.verts)
	rv1 := ref.verts[face]
	rv2 := ref.verts[(face+1)%rn]

	// Incident edge: face of inc most anti-parallel to the reference normal
	incFace := 0
	minDot := int64(math.MaxInt64)
	for i, in := range inc.normals {
		if d := in.Dot(nrm); d < minDot {
			minDot, incFace = d, i
		}
	}
	in := len(inc.verts)
	edge := [2]vmath.Vec2{inc.verts[incFace], inc.verts[(incFace+1)%in]}

	tangent, _ := rv2.Sub(rv1).Normalize()
	clipped, count := clipSegment(edge, tangent.Neg(), -tangent.Dot(rv1))
	if count < 2 {
		return contactGeom{}, false
	}
	clipped, count = clipSegment(clipped, tangent, tangent.Dot(rv2))
	if count < 2 {
		return contactGeom{}, false
	}

	var sum vmath.Vec2
	var depth int64
	points := int64(0)
	for _, p := range clipped {
		s := nrm.Dot(p.Sub(rv1))
		if s <= 0 {
			sum = sum.Add(p)
			points++
			if -s > depth {
				depth = -s
			}
		}
	}
	if points == 0 {
		return contactGeom{}, false
	}

	out := contactGeom{
		normal:      nrm,
		point:       vmath.V2(sum.X/points, sum.Y/points),
		penetration: depth,
	}
	if flip {
		out.normal = out.normal.Neg()
	}
	return out, true
}

// clipSegment keeps the part of seg where n.p <= c
func clipSegment(seg [2]vmath.Vec2, n vmath.Vec2, c int64) ([2]vmath.Vec2, int) {
	var out [2]vmath.Vec2
	count := 0

	d1 := n.Dot(seg[0]) - c
	d2 := n.Dot(seg[1]) - c
	if d1 <= 0 {
		out[count] = seg[0]
		count++
	}
	if d2 <= 0 {
		out[count] = seg[1]
		count++
	}
	if (d1 <= 0) != (d2 <= 0) && count < 2 {
		alpha := vmath.Div(d1, d1-d2)
		out[count] = seg[0].Add(seg[1].Sub(seg[0]).Scale(alpha))
		count++
	}
	return out, count
}

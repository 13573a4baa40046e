package physics

import (
	"github.com/lixenwraith/rollback/vmath"
)

// restitutionThreshold: closing speeds below this resolve inelastically so
// resting contacts do not jitter
var restitutionThreshold int64 = vmath.Scale

// manifold is one resolved shape pair between bodies a and b
type manifold struct {
	a, b        *Body
	normal      vmath.Vec2 // a -> b
	point       vmath.Vec2
	penetration int64
	restitution int64
	friction    int64
}

// resolveVelocity applies the normal and friction impulses for one manifold
func resolveVelocity(m *manifold) {
	a, b := m.a, m.b
	ra := m.point.Sub(a.Position)
	rb := m.point.Sub(b.Position)

	rv := relativeVelocity(a, b, ra, rb)
	vn := rv.Dot(m.normal)
	if vn > 0 {
		return
	}

	raN := ra.Cross(m.normal)
	rbN := rb.Cross(m.normal)
	denom := a.invMass + b.invMass +
		vmath.Mul(vmath.Mul(raN, raN), a.invInertia) +
		vmath.Mul(vmath.Mul(rbN, rbN), b.invInertia)
	if denom == 0 {
		return
	}

	e := m.restitution
	if -vn < restitutionThreshold {
		e = 0
	}
	j := vmath.Div(-vmath.Mul(vmath.Scale+e, vn), denom)
	impulse := m.normal.Scale(j)
	applyImpulse(a, impulse.Neg(), ra)
	applyImpulse(b, impulse, rb)

	if m.friction == 0 {
		return
	}

	// Coulomb friction along the contact tangent
	rv = relativeVelocity(a, b, ra, rb)
	t, tm := rv.Sub(m.normal.Scale(rv.Dot(m.normal))).Normalize()
	if tm == 0 {
		return
	}
	raT := ra.Cross(t)
	rbT := rb.Cross(t)
	denomT := a.invMass + b.invMass +
		vmath.Mul(vmath.Mul(raT, raT), a.invInertia) +
		vmath.Mul(vmath.Mul(rbT, rbT), b.invInertia)
	if denomT == 0 {
		return
	}
	jt := vmath.Div(-rv.Dot(t), denomT)
	limit := vmath.Mul(j, m.friction)
	jt = vmath.Clamp(jt, -limit, limit)

	fImpulse := t.Scale(jt)
	applyImpulse(a, fImpulse.Neg(), ra)
	applyImpulse(b, fImpulse, rb)
}

func relativeVelocity(a, b *Body, ra, rb vmath.Vec2) vmath.Vec2 {
	va := a.Velocity.Add(vmath.CrossScalar(a.AngularVelocity, ra))
	vb := b.Velocity.Add(vmath.CrossScalar(b.AngularVelocity, rb))
	return vb.Sub(va)
}

// correctPosition pushes overlapping bodies apart (Baumgarte style)
func correctPosition(m *manifold, percent, slop int64) {
	invSum := m.a.invMass + m.b.invMass
	if invSum == 0 {
		return
	}
	depth := m.penetration - slop
	if depth <= 0 {
		return
	}
	mag := vmath.Mul(vmath.Div(depth, invSum), percent)
	corr := m.normal.Scale(mag)

	a, b := m.a, m.b
	if a.kind == Dynamic {
		a.Position = a.Position.Sub(freezeMask(a, corr.Scale(a.invMass)))
	}
	if b.kind == Dynamic {
		b.Position = b.Position.Add(freezeMask(b, corr.Scale(b.invMass)))
	}
}

// freezeMask zeroes components on frozen axes
func freezeMask(b *Body, v vmath.Vec2) vmath.Vec2 {
	if b.freezeX {
		v.X = 0
	}
	if b.freezeY {
		v.Y = 0
	}
	return v
}

// mixFriction combines two friction coefficients as sqrt(mu_a * mu_b)
func mixFriction(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return vmath.Sqrt(vmath.Mul(a, b))
}

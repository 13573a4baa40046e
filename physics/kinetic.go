package physics

import (
	"github.com/lixenwraith/rollback/vmath"
)

// integrate advances one body by dt using semi-implicit Euler:
// v = v + (F/m + g)*dt; p = p + v*dt
func integrate(b *Body, dt, damping int64) {
	switch b.kind {
	case Static:
		return
	case Dynamic:
		accel := b.force.Scale(b.invMass).Add(b.gravity)
		b.Velocity = b.Velocity.Add(accel.Scale(dt))
		b.AngularVelocity += vmath.Mul(vmath.Mul(b.torque, b.invInertia), dt)

		if damping != vmath.Scale {
			b.Velocity = b.Velocity.Scale(damping)
			b.AngularVelocity = vmath.Mul(b.AngularVelocity, damping)
		}
		if b.maxSpeed > 0 {
			capSpeed(&b.Velocity, b.maxSpeed)
		}
	}

	if b.freezeX {
		b.Velocity.X = 0
	}
	if b.freezeY {
		b.Velocity.Y = 0
	}
	if b.freezeRotation {
		b.AngularVelocity = 0
	}

	b.Position = b.Position.Add(b.Velocity.Scale(dt))
	b.Angle += vmath.Mul(b.AngularVelocity, dt)
}

// applyImpulse changes velocity by impulse/m and angular velocity by (r x impulse)/I
func applyImpulse(b *Body, impulse, r vmath.Vec2) {
	b.Velocity = b.Velocity.Add(impulse.Scale(b.invMass))
	b.AngularVelocity += vmath.Mul(r.Cross(impulse), b.invInertia)
	if b.freezeX {
		b.Velocity.X = 0
	}
	if b.freezeY {
		b.Velocity.Y = 0
	}
}

// capSpeed limits the velocity magnitude to maxSpeed
// Returns true if velocity was clamped
func capSpeed(v *vmath.Vec2, maxSpeed int64) bool {
	magSq := v.MagSq()
	if magSq <= vmath.Mul(maxSpeed, maxSpeed) {
		return false
	}
	mag := vmath.Sqrt(magSq)
	if mag == 0 {
		return false
	}
	*v = v.Scale(vmath.Div(maxSpeed, mag))
	return true
}

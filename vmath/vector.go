package vmath

// Vec2 is a 2D vector in Q32.32 fixed-point
type Vec2 struct {
	X, Y int64
}

// V2 builds a vector from Q32.32 components
func V2(x, y int64) Vec2 {
	return Vec2{X: x, Y: y}
}

// V2Int builds a vector from integer units
func V2Int(x, y int) Vec2 {
	return Vec2{X: FromInt(x), Y: FromInt(y)}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

func (v Vec2) Neg() Vec2 {
	return Vec2{-v.X, -v.Y}
}

// Scale multiplies both components by a Q32.32 factor
func (v Vec2) Scale(s int64) Vec2 {
	return Vec2{Mul(v.X, s), Mul(v.Y, s)}
}

// Dot returns x1*x2 + y1*y2 in Q32.32
func (v Vec2) Dot(o Vec2) int64 {
	return Mul(v.X, o.X) + Mul(v.Y, o.Y)
}

// Cross returns the z component of the 3D cross product
func (v Vec2) Cross(o Vec2) int64 {
	return Mul(v.X, o.Y) - Mul(v.Y, o.X)
}

// CrossScalar returns s x v for a scalar angular quantity s
func CrossScalar(s int64, v Vec2) Vec2 {
	return Vec2{-Mul(s, v.Y), Mul(s, v.X)}
}

// Perp returns vector rotated 90° counter-clockwise
func (v Vec2) Perp() Vec2 {
	return Vec2{-v.Y, v.X}
}

// MagSq returns squared magnitude without sqrt
func (v Vec2) MagSq() int64 {
	return Mul(v.X, v.X) + Mul(v.Y, v.Y)
}

// Mag returns true Euclidean length
func (v Vec2) Mag() int64 {
	return Sqrt(v.MagSq())
}

// Normalize returns unit vector and the original length, zero-safe
func (v Vec2) Normalize() (Vec2, int64) {
	mag := v.Mag()
	if mag == 0 {
		return Vec2{}, 0
	}
	return Vec2{Div(v.X, mag), Div(v.Y, mag)}, mag
}

// Rotate rotates the vector by angle (Scale = full turn) using the Sin LUT
func (v Vec2) Rotate(angle int64) Vec2 {
	if angle == 0 {
		return v
	}
	c := Cos(angle)
	s := Sin(angle)
	return Vec2{
		Mul(v.X, c) - Mul(v.Y, s),
		Mul(v.X, s) + Mul(v.Y, c),
	}
}

// IsZero reports whether both components are zero
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Reflect returns velocity reflected off surface with given normal
// vel' = vel - 2 * dot(vel, normal) * normal
func Reflect(vel, normal Vec2) Vec2 {
	dot2 := vel.Dot(normal) << 1
	return vel.Sub(normal.Scale(dot2))
}

package vmath

// Angle constants in radians, Q32.32
const (
	Pi    int64 = 13493037705 // round(pi * 2^32)
	TwoPi int64 = 26986075409 // round(2pi * 2^32)
)

// SinLUT is scaled by Q32.32 and indexed by turn fraction (LUTSize per turn)
// Built from an integer-only series so the table is identical on every platform
var SinLUT [LUTSize]int64

func init() {
	quarter := LUTSize / 4
	for i := 0; i <= quarter; i++ {
		SinLUT[i%LUTSize] = sinSeries(MulDiv(TwoPi, int64(i), LUTSize))
	}
	// Exact endpoints
	SinLUT[0] = 0
	SinLUT[quarter] = Scale

	for i := 1; i < quarter; i++ {
		SinLUT[2*quarter-i] = SinLUT[i]
	}
	SinLUT[2*quarter] = 0
	for i := 1; i < 2*quarter; i++ {
		SinLUT[2*quarter+i] = -SinLUT[i]
	}
}

// sinSeries evaluates the Taylor series of sin(x) for x in [0, pi/2]
// Seven terms keep the truncation error below a few ulps of Q32.32
func sinSeries(x int64) int64 {
	x2 := Mul(x, x)
	term := x
	sum := x
	for k := int64(1); k <= 7; k++ {
		term = -Mul(term, x2) / ((2 * k) * (2*k + 1))
		sum += term
	}
	return sum
}

// InvTwoPi converts radians to turns: turns = Mul(rad, InvTwoPi)
const InvTwoPi int64 = 683565276 // round(2^32 / 2pi)

// RadToTurn converts a Q32.32 radian angle to the turn units used by Sin/Cos
func RadToTurn(rad int64) int64 {
	return Mul(rad, InvTwoPi)
}

// atanLUT[i] is atan(i/LUTMask) in turns, covering the first octant
var atanLUT [LUTSize]int64

func init() {
	for i := int64(1); i < LUTMask; i++ {
		// Smallest angle with sin*LUTMask >= i*cos, by bisection on the sine table
		lo, hi := int64(0), int64(Scale/8)
		for lo < hi {
			mid := (lo + hi) / 2
			if Sin(mid)*LUTMask >= i*Cos(mid) {
				hi = mid
			} else {
				lo = mid + 1
			}
		}
		atanLUT[i] = lo
	}
	atanLUT[LUTMask] = Scale / 8
}

// atanRatio returns atan(num/den) in turns for 0 <= num <= den, den > 0
func atanRatio(num, den int64) int64 {
	pos := MulDiv(num, LUTMask<<16, den)
	idx := pos >> 16
	if idx >= LUTMask {
		return atanLUT[LUTMask]
	}
	frac := pos & 0xffff
	a, b := atanLUT[idx], atanLUT[idx+1]
	return a + ((b-a)*frac)>>16
}

// Atan2 returns the angle of (dx, dy) in turns, in [0, Scale)
func Atan2(dy, dx int64) int64 {
	if dx == 0 && dy == 0 {
		return 0
	}
	adx, ady := Abs(dx), Abs(dy)

	var base int64
	if adx >= ady {
		base = atanRatio(ady, adx)
	} else {
		base = Scale/4 - atanRatio(adx, ady)
	}

	switch {
	case dx >= 0 && dy >= 0:
		return base
	case dx < 0 && dy >= 0:
		return Scale/2 - base
	case dx < 0:
		return Scale/2 + base
	default:
		if base == 0 {
			return 0
		}
		return Scale - base
	}
}

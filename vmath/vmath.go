package vmath

import (
	"math"
	"math/bits"
)

// Q32.32 Fixed Point constants
const (
	Shift         = 32
	Scale   int64 = 1 << Shift
	Mask          = Scale - 1
	Half    int64 = 1 << (Shift - 1)
	LUTSize       = 1024
	LUTMask       = LUTSize - 1

	// ScaleF is Scale as float64, used only at the presentation/config boundary
	ScaleF = float64(Scale)
)

// --- Arithmetic ---

func FromInt(i int) int64     { return int64(i) << Shift }
func FromInt64(i int64) int64 { return i << Shift }
func ToInt(f int64) int       { return int(f >> Shift) }

// FromRatio returns num/den in Q32.32 without touching floating point
func FromRatio(num, den int64) int64 {
	return MulDiv(num, Scale, den)
}

// FromFloat and ToFloat convert at the presentation boundary only
// Never call them from physics, engine or input code
func FromFloat(f float64) int64 { return int64(f * ScaleF) }
func ToFloat(f int64) float64   { return float64(f) / ScaleF }

func Mul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	negative := (a < 0) != (b < 0)
	ua, ub := uabs(a), uabs(b)

	hi, lo := bits.Mul64(ua, ub)
	// Q32.32 * Q32.32 = Q64.64, shift right 32 for Q32.32
	if hi>>31 != 0 {
		if negative {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	result := int64((hi << 32) | (lo >> 32))

	if negative {
		return -result
	}
	return result
}

func Div(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	negative := (a < 0) != (b < 0)
	ua, ub := uabs(a), uabs(b)

	// a << 32 as 128-bit: hi = a >> 32, lo = a << 32
	hi := ua >> 32
	lo := ua << 32

	// Quotient would not fit in 64 bits
	if hi >= ub {
		if negative {
			return math.MinInt64
		}
		return math.MaxInt64
	}

	quo, _ := bits.Div64(hi, lo, ub)

	if quo > math.MaxInt64 {
		if negative {
			return math.MinInt64
		}
		return math.MaxInt64
	}

	if negative {
		return -int64(quo)
	}
	return int64(quo)
}

// Abs returns absolute value
func Abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// Sign returns -Scale, 0, or Scale
func Sign(x int64) int64 {
	if x < 0 {
		return -Scale
	}
	if x > 0 {
		return Scale
	}
	return 0
}

// Min and Max for Q32.32 values
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func Max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Clamp limits x to [lo, hi]
func Clamp(x, lo, hi int64) int64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// MulDiv computes (a * b) / c with 128-bit intermediate
// Useful for ratio calculations without precision loss
func MulDiv(a, b, c int64) int64 {
	if c == 0 {
		return 0
	}
	neg := ((a < 0) != (b < 0)) != (c < 0)
	hi, lo := bits.Mul64(uabs(a), uabs(b))
	uc := uabs(c)
	if hi >= uc {
		if neg {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, uc)
	if q > math.MaxInt64 {
		if neg {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	r := int64(q)
	if neg {
		return -r
	}
	return r
}

// Sqrt returns the Q32.32 square root, integer-only
// Seeds from the 64-bit integer root (16 fractional bits) and refines with two Newton steps
func Sqrt(x int64) int64 {
	if x <= 0 {
		return 0
	}
	guess := int64(isqrt64(uint64(x))) << 16
	for i := 0; i < 2; i++ {
		next := (guess + Div(x, guess)) >> 1
		if next == guess {
			break
		}
		guess = next
	}
	return guess
}

// isqrt64 returns floor(sqrt(n)) by the digit-by-digit method
func isqrt64(n uint64) uint64 {
	var res uint64
	bit := uint64(1) << 62
	for bit > n {
		bit >>= 2
	}
	for bit != 0 {
		if n >= res+bit {
			n -= res + bit
			res = (res >> 1) + bit
		} else {
			res >>= 1
		}
		bit >>= 2
	}
	return res
}

func uabs(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

// --- Trigonometry ---

// Sin returns sine of an angle where angle 0..Scale maps to 0..2pi
// Linear interpolation between LUT entries
func Sin(angle int64) int64 {
	idx := (angle >> (Shift - 10)) & LUTMask
	frac := angle & (1<<(Shift-10) - 1)
	a := SinLUT[idx]
	b := SinLUT[(idx+1)&LUTMask]
	return a + ((b-a)*frac)>>(Shift-10)
}

func Cos(angle int64) int64 {
	return Sin(angle + Scale/4)
}

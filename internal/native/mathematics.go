package native

import (
	"math"
	"math/bits"
)

// NoPTS marks an undefined timestamp (AV_NOPTS_VALUE).
const NoPTS int64 = math.MinInt64

// Rational mirrors AVRational.
type Rational struct {
	Num, Den int
}

// Rounding modes for RescaleRnd.
type Rounding int

const (
	RoundZero       Rounding = 0
	RoundInf        Rounding = 1
	RoundDown       Rounding = 2
	RoundUp         Rounding = 3
	RoundNearInf    Rounding = 5
	RoundPassMinMax Rounding = 8192
)

// RescaleRnd computes a*b/c with the given rounding using 128-bit
// intermediates. It returns math.MinInt64 when c <= 0 or the result
// overflows.
func RescaleRnd(a, b, c int64, rnd Rounding) int64 {
	if c <= 0 || b < 0 {
		return NoPTS
	}
	if rnd&RoundPassMinMax != 0 {
		if a == math.MinInt64 || a == math.MaxInt64 {
			return a
		}
		rnd &^= RoundPassMinMax
	}
	if a < 0 {
		if a == math.MinInt64 {
			return NoPTS
		}
		// Mirror the rounding direction for negative inputs.
		flip := rnd
		switch rnd {
		case RoundDown:
			flip = RoundUp
		case RoundUp:
			flip = RoundDown
		}
		r := RescaleRnd(-a, b, c, flip)
		if r == NoPTS {
			return NoPTS
		}
		return -r
	}

	var r uint64
	switch rnd {
	case RoundNearInf:
		r = uint64(c) / 2
	case RoundInf, RoundUp:
		r = uint64(c) - 1
	}

	hi, lo := bits.Mul64(uint64(a), uint64(b))
	var carry uint64
	lo, carry = bits.Add64(lo, r, 0)
	hi += carry
	if hi >= uint64(c) {
		return NoPTS
	}
	q, _ := bits.Div64(hi, lo, uint64(c))
	if q > math.MaxInt64 {
		return NoPTS
	}
	return int64(q)
}

// RescaleQ rescales a from base bq to base cq rounding to nearest, ties
// away from zero.
func RescaleQ(a int64, bq, cq Rational) int64 {
	return RescaleQRnd(a, bq, cq, RoundNearInf)
}

// RescaleQRnd is RescaleQ with an explicit rounding mode.
func RescaleQRnd(a int64, bq, cq Rational, rnd Rounding) int64 {
	b := int64(bq.Num) * int64(cq.Den)
	c := int64(cq.Num) * int64(bq.Den)
	if b < 0 {
		b, c = -b, -c
		a = -a
	}
	if c < 0 {
		return NoPTS
	}
	return RescaleRnd(a, b, c, rnd)
}

// Reduce normalises num/den so that both fit into limit.
func Reduce(num, den, limit int64) (Rational, bool) {
	if den == 0 {
		return Rational{}, num == 0
	}
	sign := int64(1)
	if (num < 0) != (den < 0) {
		sign = -1
	}
	if num < 0 {
		num = -num
	}
	if den < 0 {
		den = -den
	}
	g := gcd(num, den)
	if g > 0 {
		num /= g
		den /= g
	}
	exact := true
	for num > limit || den > limit {
		exact = false
		num >>= 1
		den >>= 1
		if den == 0 {
			den = 1
		}
	}
	return Rational{Num: int(sign * num), Den: int(den)}, exact
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

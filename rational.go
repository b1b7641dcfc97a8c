package av

import (
	"fmt"
	"math"

	"github.com/thesyncim/av/internal/native"
)

// Rational is an exact ratio, typically a time base in seconds per tick.
// The zero value is the unset rational.
type Rational struct {
	Num int
	Den int
}

// NewRational returns num/den without reducing it.
func NewRational(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

// RationalFromFloat approximates v with a denominator no larger than
// maxDen.
func RationalFromFloat(v float64, maxDen int) Rational {
	if math.IsNaN(v) || maxDen <= 0 {
		return Rational{}
	}
	best := Rational{int(math.Round(v)), 1}
	bestErr := math.Abs(v - float64(best.Num))
	for den := 2; den <= maxDen && bestErr > 0; den++ {
		num := int(math.Round(v * float64(den)))
		if e := math.Abs(v - float64(num)/float64(den)); e < bestErr {
			best, bestErr = Rational{num, den}, e
		}
	}
	return best.Reduce()
}

// IsZero reports whether r is unusable as a time base.
func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

// Rescale converts v from units of r to units of dst, rounding to the
// nearest value with halfway cases away from zero. NoPTS is preserved and
// v is returned unchanged when either base is zero.
func (r Rational) Rescale(v int64, dst Rational) int64 {
	if v == NoPTS || r.IsZero() || dst.IsZero() {
		return v
	}
	return native.RescaleQ(v, r.native(), dst.native())
}

// Equal compares by cross-multiplication, so 1/2 equals 2/4.
func (r Rational) Equal(o Rational) bool {
	return int64(r.Num)*int64(o.Den) == int64(o.Num)*int64(r.Den)
}

// Compare returns -1, 0 or 1 as r is less than, equal to or greater than o.
// Both denominators must be non-zero.
func (r Rational) Compare(o Rational) int {
	a := int64(r.Num) * int64(o.Den)
	b := int64(o.Num) * int64(r.Den)
	if (r.Den < 0) != (o.Den < 0) {
		a, b = b, a
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Reduce returns r in lowest terms.
func (r Rational) Reduce() Rational {
	if r.Den == 0 {
		return r
	}
	q, _ := native.Reduce(int64(r.Num), int64(r.Den), math.MaxInt32)
	return Rational{q.Num, q.Den}
}

// Invert returns den/num.
func (r Rational) Invert() Rational {
	return Rational{r.Den, r.Num}
}

// Mul returns the reduced product.
func (r Rational) Mul(o Rational) Rational {
	return Rational{r.Num * o.Num, r.Den * o.Den}.Reduce()
}

// Float64 returns num/den, or 0 when the denominator is zero.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

func (r Rational) native() native.Rational {
	return native.Rational{Num: r.Num, Den: r.Den}
}

func fromNativeRational(q native.Rational) Rational {
	return Rational{Num: q.Num, Den: q.Den}
}

package av

import (
	"fmt"
	"time"

	"github.com/thesyncim/av/internal/native"
)

// NoPTS marks an unknown timestamp.
const NoPTS = native.NoPTS

// Timestamp is a value in units of its time base.
type Timestamp struct {
	Value    int64
	TimeBase Rational
}

// NewTimestamp returns value expressed in units of tb.
func NewTimestamp(value int64, tb Rational) Timestamp {
	return Timestamp{Value: value, TimeBase: tb}
}

// IsValid reports whether the timestamp holds a known value.
func (t Timestamp) IsValid() bool {
	return t.Value != NoPTS
}

// Rescale returns the same instant in units of tb.
func (t Timestamp) Rescale(tb Rational) Timestamp {
	return Timestamp{Value: t.TimeBase.Rescale(t.Value, tb), TimeBase: tb}
}

// Seconds converts to seconds. NoPTS yields 0.
func (t Timestamp) Seconds() float64 {
	if !t.IsValid() {
		return 0
	}
	return float64(t.Value) * t.TimeBase.Float64()
}

// Duration converts to a time.Duration. NoPTS yields 0.
func (t Timestamp) Duration() time.Duration {
	if !t.IsValid() || t.TimeBase.IsZero() {
		return 0
	}
	return time.Duration(t.TimeBase.Rescale(t.Value, Rational{1, int(time.Second)}))
}

// coarser returns the larger of two bases, ignoring zero ones.
func coarser(a, b Rational) Rational {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case a.Compare(b) >= 0:
		return a
	}
	return b
}

// Compare orders two timestamps after rescaling both to the coarser of the
// two time bases. NoPTS sorts before every valid timestamp.
func (t Timestamp) Compare(o Timestamp) int {
	switch {
	case !t.IsValid() && !o.IsValid():
		return 0
	case !t.IsValid():
		return -1
	case !o.IsValid():
		return 1
	}
	tb := coarser(t.TimeBase, o.TimeBase)
	a := t.TimeBase.Rescale(t.Value, tb)
	b := o.TimeBase.Rescale(o.Value, tb)
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// commonBase returns the base shared by both operands. A zero base adopts
// the other one.
func commonBase(op string, a, b Rational) (Rational, error) {
	switch {
	case a.IsZero():
		return b, nil
	case b.IsZero():
		return a, nil
	case a.Equal(b):
		return a, nil
	}
	return Rational{}, newError(KindInvalidParameters, op, "time bases %s and %s differ", a, b)
}

// Add sums two timestamps sharing a time base.
func (t Timestamp) Add(o Timestamp) (Timestamp, error) {
	tb, err := commonBase("timestamp add", t.TimeBase, o.TimeBase)
	if err != nil {
		return Timestamp{}, err
	}
	if !t.IsValid() || !o.IsValid() {
		return Timestamp{NoPTS, tb}, nil
	}
	return Timestamp{t.Value + o.Value, tb}, nil
}

// Sub subtracts o from t; both must share a time base.
func (t Timestamp) Sub(o Timestamp) (Timestamp, error) {
	tb, err := commonBase("timestamp sub", t.TimeBase, o.TimeBase)
	if err != nil {
		return Timestamp{}, err
	}
	if !t.IsValid() || !o.IsValid() {
		return Timestamp{NoPTS, tb}, nil
	}
	return Timestamp{t.Value - o.Value, tb}, nil
}

func (t Timestamp) String() string {
	if !t.IsValid() {
		return "NOPTS"
	}
	return fmt.Sprintf("%d@%s", t.Value, t.TimeBase)
}

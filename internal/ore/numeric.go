package ore

import (
	"fmt"
	"math"
	"math/bits"
)

// Numeric is the on-chain I80F48 fixed-point value: a signed 128-bit
// integer (little-endian) with 48 fractional bits.
type Numeric struct {
	Lo uint64
	Hi uint64
}

const numericFracBits = 48

// Float64 converts the fixed-point value to a float64. Precision loss is
// fine for display and reward estimation; settlement math stays on-chain.
func (n Numeric) Float64() float64 {
	hi := float64(int64(n.Hi)) * math.Pow(2, 64)
	return (hi + float64(n.Lo)) / float64(uint64(1)<<numericFracBits)
}

// Sub returns n - o with wrapping i128 semantics.
func (n Numeric) Sub(o Numeric) Numeric {
	lo, borrow := bits.Sub64(n.Lo, o.Lo, 0)
	hi, _ := bits.Sub64(n.Hi, o.Hi, borrow)
	return Numeric{Lo: lo, Hi: hi}
}

// IsNegative reports whether the value is below zero.
func (n Numeric) IsNegative() bool {
	return int64(n.Hi) < 0
}

// MulU64ToU64 multiplies by an integer and truncates to a uint64, the
// shape the rewards-factor accrual math needs. Negative values clamp to 0.
func (n Numeric) MulU64ToU64(v uint64) uint64 {
	f := n.Float64() * float64(v)
	if f <= 0 {
		return 0
	}
	if f >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(f)
}

func (n Numeric) String() string {
	return fmt.Sprintf("%.12f", n.Float64())
}

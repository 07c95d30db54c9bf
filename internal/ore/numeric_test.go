package ore

import (
	"math"
	"testing"
)

func TestNumericFloat64_WholeValues(t *testing.T) {
	// 1.0 in I80F48 is 2^48.
	one := Numeric{Lo: 1 << 48}
	if got := one.Float64(); got != 1.0 {
		t.Fatalf("Float64=%v want 1.0", got)
	}

	// 2.5 = 2^48 * 2 + 2^47.
	twoAndHalf := Numeric{Lo: 2<<48 + 1<<47}
	if got := twoAndHalf.Float64(); got != 2.5 {
		t.Fatalf("Float64=%v want 2.5", got)
	}
}

func TestNumericSub_Borrow(t *testing.T) {
	a := Numeric{Lo: 0, Hi: 1}
	b := Numeric{Lo: 1, Hi: 0}
	d := a.Sub(b)
	if d.Lo != math.MaxUint64 || d.Hi != 0 {
		t.Fatalf("Sub=%+v want lo=MaxUint64 hi=0", d)
	}
}

func TestNumericSub_NegativeResult(t *testing.T) {
	a := Numeric{Lo: 1 << 48}
	b := Numeric{Lo: 2 << 48}
	d := a.Sub(b)
	if !d.IsNegative() {
		t.Fatalf("expected negative result, got %+v", d)
	}
	if got := d.Float64(); got != -1.0 {
		t.Fatalf("Float64=%v want -1.0", got)
	}
}

func TestNumericMulU64ToU64(t *testing.T) {
	half := Numeric{Lo: 1 << 47}
	if got := half.MulU64ToU64(100); got != 50 {
		t.Fatalf("MulU64ToU64=%d want 50", got)
	}

	neg := Numeric{}.Sub(Numeric{Lo: 1 << 48})
	if got := neg.MulU64ToU64(100); got != 0 {
		t.Fatalf("negative factor should clamp to 0, got %d", got)
	}
}

// Package signed provides a sign+magnitude integer over a 256-bit unsigned
// magnitude. Net liquidity flow can go below zero inside a window while every
// individual transfer amount is unsigned, so the two are kept apart instead of
// using two's complement.
package signed

import (
	"strings"

	"github.com/holiman/uint256"
)

// BpsDenominator is the basis-point denominator (100%)
const BpsDenominator = 10000

// Int is a signed integer with a 256-bit magnitude.
// The zero value is canonical zero. Zero magnitude never carries Neg.
type Int struct {
	Mag uint256.Int
	Neg bool
}

// Zero returns canonical zero
func Zero() Int { return Int{} }

// FromUint returns +x
func FromUint(x *uint256.Int) Int {
	var r Int
	if x != nil {
		r.Mag.Set(x)
	}
	return r
}

// NegFromUint returns -x
func NegFromUint(x *uint256.Int) Int {
	r := FromUint(x)
	r.Neg = true
	return r.normalize()
}

// FromInt64 converts a machine integer
func FromInt64(v int64) Int {
	if v >= 0 {
		return FromUint(uint256.NewInt(uint64(v)))
	}
	// -v overflows for MinInt64, go through uint64 arithmetic instead
	return NegFromUint(uint256.NewInt(uint64(-(v + 1)) + 1))
}

// FromDecimal parses an optionally '-'-prefixed decimal string
func FromDecimal(s string) (Int, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	mag, err := uint256.FromDecimal(s)
	if err != nil {
		return Int{}, ErrParse.Wrap(err).WithData("input", s)
	}
	r := Int{Mag: *mag, Neg: neg}
	return r.normalize(), nil
}

// MustFromDecimal is FromDecimal for constants and tests
func MustFromDecimal(s string) Int {
	r, err := FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (x Int) normalize() Int {
	if x.Mag.IsZero() {
		x.Neg = false
	}
	return x
}

// IsZero reports x == 0
func (x Int) IsZero() bool { return x.Mag.IsZero() }

// IsNegative reports x < 0
func (x Int) IsNegative() bool { return x.Neg && !x.Mag.IsZero() }

// Sign returns -1, 0 or 1
func (x Int) Sign() int {
	switch {
	case x.Mag.IsZero():
		return 0
	case x.Neg:
		return -1
	default:
		return 1
	}
}

// Negate returns -x
func (x Int) Negate() Int {
	x.Neg = !x.Neg
	return x.normalize()
}

// Abs returns a copy of the magnitude
func (x Int) Abs() *uint256.Int {
	return new(uint256.Int).Set(&x.Mag)
}

// AddChecked returns x + y, or ErrOverflow when the magnitude exceeds 256 bits
func (x Int) AddChecked(y Int) (Int, error) {
	var r Int
	if x.Neg == y.Neg {
		if _, overflow := r.Mag.AddOverflow(&x.Mag, &y.Mag); overflow {
			return Int{}, ErrOverflow
		}
		r.Neg = x.Neg
		return r.normalize(), nil
	}
	// opposite signs: subtract the smaller magnitude from the larger one,
	// the result takes the sign of the larger operand
	if x.Mag.Cmp(&y.Mag) >= 0 {
		r.Mag.Sub(&x.Mag, &y.Mag)
		r.Neg = x.Neg
	} else {
		r.Mag.Sub(&y.Mag, &x.Mag)
		r.Neg = y.Neg
	}
	return r.normalize(), nil
}

// SubChecked returns x - y, or ErrOverflow
func (x Int) SubChecked(y Int) (Int, error) {
	return x.AddChecked(y.Negate())
}

// Add is AddChecked for operands known to be bounded. Panics on overflow.
func (x Int) Add(y Int) Int {
	r, err := x.AddChecked(y)
	if err != nil {
		panic(err)
	}
	return r
}

// Sub is SubChecked for operands known to be bounded. Panics on overflow.
func (x Int) Sub(y Int) Int {
	return x.Add(y.Negate())
}

// Cmp returns -1, 0, 1 for x < y, x == y, x > y
func (x Int) Cmp(y Int) int {
	xs, ys := x.Sign(), y.Sign()
	if xs != ys {
		if xs < ys {
			return -1
		}
		return 1
	}
	c := x.Mag.Cmp(&y.Mag)
	if xs < 0 {
		return -c
	}
	return c
}

// Lt reports x < y
func (x Int) Lt(y Int) bool { return x.Cmp(y) < 0 }

// Eq reports x == y
func (x Int) Eq(y Int) bool { return x.Cmp(y) == 0 }

// MulBps returns x * bps / 10000 with the sign of x. The magnitude is
// floor-divided; the full 512-bit intermediate product is used so large
// magnitudes do not overflow.
func (x Int) MulBps(bps uint32) Int {
	var r Int
	r.Mag.MulDivOverflow(&x.Mag, uint256.NewInt(uint64(bps)), uint256.NewInt(BpsDenominator))
	r.Neg = x.Neg
	return r.normalize()
}

// String renders decimal with a leading '-' for negatives
func (x Int) String() string {
	if x.IsNegative() {
		return "-" + x.Mag.Dec()
	}
	return x.Mag.Dec()
}

// MarshalText implements encoding.TextMarshaler
func (x Int) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (x *Int) UnmarshalText(text []byte) error {
	v, err := FromDecimal(string(text))
	if err != nil {
		return err
	}
	*x = v
	return nil
}

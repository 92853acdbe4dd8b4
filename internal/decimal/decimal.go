// Package decimal implements the fixed-point arithmetic used throughout
// floxcore.
//
// Design Decisions (following the teacher's internal/orders fixed-point
// rationale, generalized from cents-scale int64 to a tagged, scale-1e8
// int64):
//
// 1. Fixed-Point Arithmetic: every price, quantity, and notional value is a
//    raw int64 at a compile-time scale of 1e8. This avoids the accumulated
//    rounding errors of floating point, which are unacceptable once money is
//    involved.
//
// 2. Type Tags: Price, Quantity, and Volume are distinct Go types wrapping
//    the same raw representation so the compiler rejects `Price + Quantity`.
//    The only permitted cross-type operations are Price*Quantity->Volume,
//    Volume/Quantity->Price, and Volume/Price->Quantity.
//
// 3. 128-bit intermediates: multiplication and division that cross the
//    scale boundary are carried out with math/bits.Mul64/Div64 so that
//    large notionals never silently overflow int64.
package decimal

import "math/bits"

// Scale is the fixed-point scale shared by every Price, Quantity, and
// Volume value: 10^8.
const Scale = 100_000_000

// Price is a tagged fixed-point value representing a per-unit price.
type Price int64

// Quantity is a tagged fixed-point value representing an amount of an
// instrument.
type Quantity int64

// Volume is a tagged fixed-point value representing a notional amount
// (price * quantity).
type Volume int64

// NewPrice builds a Price from a raw integer and a fractional part
// expressed in Scale units, e.g. NewPrice(100, 50_000_000) == 100.5.
func NewPrice(whole int64, fraction int64) Price {
	return Price(whole*Scale + fraction)
}

// Float64 helpers are provided only for logging/printing; no arithmetic in
// the package uses them.
func (p Price) Float64() float64    { return float64(p) / Scale }
func (q Quantity) Float64() float64 { return float64(q) / Scale }
func (v Volume) Float64() float64   { return float64(v) / Scale }

func (p Price) Add(o Price) Price { return p + o }
func (p Price) Sub(o Price) Price { return p - o }

func (q Quantity) Add(o Quantity) Quantity { return q + o }
func (q Quantity) Sub(o Quantity) Quantity { return q - o }

func (v Volume) Add(o Volume) Volume { return v + o }
func (v Volume) Sub(o Volume) Volume { return v - o }

// Mul multiplies a Price by a Quantity to produce a Volume, using a 128-bit
// intermediate product so that large prices times large quantities never
// silently wrap an int64 before the descale.
func (p Price) Mul(q Quantity) Volume {
	return Volume(mulDiv(int64(p), int64(q), Scale))
}

// Mul is the commutative counterpart on Quantity.
func (q Quantity) Mul(p Price) Volume {
	return p.Mul(q)
}

// DivQuantity divides a Volume by a Quantity to recover a Price.
func (v Volume) DivQuantity(q Quantity) Price {
	if q == 0 {
		panic("decimal: division by zero quantity")
	}
	return Price(mulDiv(int64(v), Scale, int64(q)))
}

// DivPrice divides a Volume by a Price to recover a Quantity.
func (v Volume) DivPrice(p Price) Quantity {
	if p == 0 {
		panic("decimal: division by zero price")
	}
	return Quantity(mulDiv(int64(v), Scale, int64(p)))
}

// mulDiv computes (a*b)/c using a 128-bit intermediate product, rounding
// toward zero. c must be non-zero.
func mulDiv(a, b, c int64) int64 {
	neg := false
	ua, ub, uc := uint64(a), uint64(b), uint64(c)
	if a < 0 {
		neg = !neg
		ua = uint64(-a)
	}
	if b < 0 {
		neg = !neg
		ub = uint64(-b)
	}
	if c < 0 {
		neg = !neg
		uc = uint64(-c)
	}

	hi, lo := bits.Mul64(ua, ub)
	q, _ := bits.Div64(hi, lo, uc)
	if neg {
		return -int64(q)
	}
	return int64(q)
}

// TickRound rounds p to the nearest multiple of tickSize using signed
// half-away-from-zero rounding, matching exchange tick-size semantics.
func TickRound(p Price, tickSize Price) Price {
	if tickSize <= 0 {
		return p
	}
	t := int64(tickSize)
	ticks := int64(p) / t
	rem := int64(p) % t // same sign as p, or zero

	if rem >= 0 {
		if rem*2 >= t {
			ticks++
		}
	} else {
		if -rem*2 >= t {
			ticks--
		}
	}
	return Price(ticks) * tickSize
}

// Ticks returns the number of ticks of size tickSize that fit below p,
// i.e. the tick index used to address the order book grid.
func Ticks(p Price, tickSize Price) int64 {
	if tickSize <= 0 {
		panic("decimal: tickSize must be positive")
	}
	// Floor division that works for negative p too (prices are never
	// negative in practice, but floor semantics keep the grid consistent).
	q := int64(p) / int64(tickSize)
	if int64(p)%int64(tickSize) != 0 && (p < 0) {
		q--
	}
	return q
}

// FromTicks is the inverse of Ticks.
func FromTicks(ticks int64, tickSize Price) Price {
	return Price(ticks) * tickSize
}

// Package money provides the core's exact, base-10 decimal arithmetic.
//
// Every price, amount, and fee in the engine flows through Decimal. Floats
// never appear on this type's surface: construction is from a string, an
// int64, or another Decimal. The underlying representation is
// shopspring/decimal, whose arbitrary-precision, string-exact semantics
// mirror the rust_decimal type the engine's algorithms were designed
// against.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrDivisionByZero is returned by Div when the divisor is zero.
var ErrDivisionByZero = errors.New("money: division by zero")

// Decimal is an exact base-10 number. Add, Sub and Mul are exact; Div
// rounds its quotient to 22 decimal places of guard precision.
type Decimal struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Decimal{d: decimal.Zero}

// NewFromString parses a base-10 literal such as "123.456000".
func NewFromString(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return Decimal{d: d}, nil
}

// MustFromString is NewFromString but panics on a malformed literal; used
// for compile-time-known constants (market min_amount defaults and the
// like), never for untrusted input.
func MustFromString(s string) Decimal {
	d, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewFromInt builds a Decimal from a whole number.
func NewFromInt(i int64) Decimal {
	return Decimal{d: decimal.NewFromInt(i)}
}

func (d Decimal) String() string { return d.d.String() }

// MarshalJSON encodes as a JSON string so precision survives round-trips.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.d.String() + `"`), nil
}

// UnmarshalJSON accepts both a JSON string and a bare JSON number.
func (d *Decimal) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("money: unmarshal %q: %w", s, err)
	}
	d.d = parsed
	return nil
}

func (d Decimal) Add(o Decimal) Decimal { return Decimal{d: d.d.Add(o.d)} }
func (d Decimal) Sub(o Decimal) Decimal { return Decimal{d: d.d.Sub(o.d)} }
func (d Decimal) Mul(o Decimal) Decimal { return Decimal{d: d.d.Mul(o.d)} }

// Div divides, rounding the quotient to 22 decimal places of guard
// precision. Callers needing a fixed output scale should follow with
// RoundDP.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	if o.d.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	return Decimal{d: d.d.DivRound(o.d, 22)}, nil
}

// Neg returns the additive inverse.
func (d Decimal) Neg() Decimal { return Decimal{d: d.d.Neg()} }

// Cmp returns -1, 0, or 1 per standard comparator convention.
func (d Decimal) Cmp(o Decimal) int { return d.d.Cmp(o.d) }

func (d Decimal) Equal(o Decimal) bool        { return d.d.Equal(o.d) }
func (d Decimal) GreaterThan(o Decimal) bool  { return d.d.GreaterThan(o.d) }
func (d Decimal) GreaterOrEqual(o Decimal) bool { return d.d.GreaterThanOrEqual(o.d) }
func (d Decimal) LessThan(o Decimal) bool     { return d.d.LessThan(o.d) }
func (d Decimal) LessOrEqual(o Decimal) bool  { return d.d.LessThanOrEqual(o.d) }

func (d Decimal) IsZero() bool         { return d.d.IsZero() }
func (d Decimal) IsSignPositive() bool { return d.d.Sign() > 0 }
func (d Decimal) IsSignNegative() bool { return d.d.Sign() < 0 }

// RoundDP rounds to the nearest value with n decimal places, halves away
// from zero, matching the core's default rounding mode (§4.1).
func (d Decimal) RoundDP(n int32) Decimal {
	return Decimal{d: d.d.Round(n)}
}

// FloorDP rounds down (toward negative infinity) to n decimal places. Used
// for the one place the core requires an explicit floor rather than
// away-from-zero rounding: sizing a MARKET BID's fill against its
// remaining quote_limit, and fee amounts (no dust to the fee account).
func (d Decimal) FloorDP(n int32) Decimal {
	scaled := d.d.Shift(n)
	return Decimal{d: scaled.Floor().Shift(-n)}
}

// RoundBank rounds to n decimal places using banker's rounding (round
// half to even). Exposed for callers that explicitly request it per
// §4.1; the core's default path uses RoundDP.
func (d Decimal) RoundBank(n int32) Decimal {
	return Decimal{d: d.d.RoundBank(n)}
}

// Raw exposes the underlying shopspring/decimal.Decimal for callers (the
// money package's own tests, and JSON-adjacent encoders) that need it.
func (d Decimal) Raw() decimal.Decimal { return d.d }

// FromRaw wraps an existing shopspring/decimal.Decimal.
func FromRaw(raw decimal.Decimal) Decimal { return Decimal{d: raw} }

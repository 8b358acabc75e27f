package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// WadDecimals is the number of decimal places carried by on-chain token amounts.
const WadDecimals int32 = 18

// ErrNegativeAmount is returned when a value below zero is used to build an Amount.
var ErrNegativeAmount = errors.New("amount must not be negative")

// Amount is an exact, non-negative decimal quantity used for every monetary value.
// The zero value is a valid zero amount. Amounts are immutable; every operation
// returns a new value.
type Amount struct {
	d decimal.Decimal
}

// ZeroAmount is the additive identity.
var ZeroAmount = Amount{}

// NewAmount wraps d, rejecting negative values.
func NewAmount(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, fmt.Errorf("%w: %s", ErrNegativeAmount, d.String())
	}
	return Amount{d: d}, nil
}

// MustAmount is like NewAmount but panics on a negative value. Intended for
// constants and tests.
func MustAmount(d decimal.Decimal) Amount {
	a, err := NewAmount(d)
	if err != nil {
		panic(err)
	}
	return a
}

// AmountFromString parses a decimal string such as "101.25".
func AmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return NewAmount(d)
}

// AmountFromInt returns the amount for a whole number of units.
func AmountFromInt(n int64) (Amount, error) {
	return NewAmount(decimal.NewFromInt(n))
}

// FromWad converts an 18-decimal integer, as stored on-chain, into an Amount.
func FromWad(wad *big.Int) (Amount, error) {
	if wad == nil {
		return Amount{}, nil
	}
	return NewAmount(decimal.NewFromBigInt(wad, -WadDecimals))
}

// ToWad returns the 18-decimal integer representation, truncating any digits
// beyond WadDecimals toward zero.
func (a Amount) ToWad() *big.Int {
	return a.d.Shift(WadDecimals).Truncate(0).BigInt()
}

// Decimal exposes the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a-b, clamped at zero.
func (a Amount) Sub(b Amount) Amount {
	if a.d.LessThan(b.d) {
		return Amount{}
	}
	return Amount{d: a.d.Sub(b.d)}
}

// CheckedSub returns a-b, or ErrNegativeAmount if b is greater than a.
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	if a.d.LessThan(b.d) {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrNegativeAmount, a.d.String(), b.d.String())
	}
	return Amount{d: a.d.Sub(b.d)}, nil
}

// Mul scales a by a non-negative factor. A negative factor yields zero.
func (a Amount) Mul(factor decimal.Decimal) Amount {
	if factor.IsNegative() {
		return Amount{}
	}
	return Amount{d: a.d.Mul(factor)}
}

// MulAmount multiplies two amounts, e.g. a quantity by a unit price.
func (a Amount) MulAmount(b Amount) Amount {
	return Amount{d: a.d.Mul(b.d)}
}

func (a Amount) Min(b Amount) Amount {
	if b.d.LessThan(a.d) {
		return b
	}
	return a
}

func (a Amount) Max(b Amount) Amount {
	if b.d.GreaterThan(a.d) {
		return b
	}
	return a
}

// Cmp returns -1, 0 or +1 depending on whether a is less than, equal to or greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// Equal reports numeric equality, so 1.50 equals 1.5.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

func (a Amount) GreaterThan(b Amount) bool {
	return a.d.GreaterThan(b.d)
}

func (a Amount) GreaterThanOrEqual(b Amount) bool {
	return a.d.GreaterThanOrEqual(b.d)
}

func (a Amount) LessThan(b Amount) bool {
	return a.d.LessThan(b.d)
}

func (a Amount) LessThanOrEqual(b Amount) bool {
	return a.d.LessThanOrEqual(b.d)
}

func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// String returns the exact value without trailing zeros.
func (a Amount) String() string {
	return a.d.String()
}

// StringFixed returns the value rounded half-up to places decimal places.
func (a Amount) StringFixed(places int32) string {
	return a.d.StringFixed(places)
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return a.d.MarshalJSON()
}

// UnmarshalJSON accepts both quoted strings and bare JSON numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	parsed, err := NewAmount(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalText() ([]byte, error) {
	return a.d.MarshalText()
}

func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := AmountFromString(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

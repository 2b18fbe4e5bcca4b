package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// NGN is the marketplace settlement currency. PriceMinor values on the wire
// are kobo (1/100 naira).
var NGN = currency.MustParseISO("NGN")

// ErrCurrencyMismatch is returned when arithmetic mixes currencies.
var ErrCurrencyMismatch = errors.New("domain: currency mismatch")

// Money pairs an exact decimal amount with its ISO currency.
type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// NewMoney builds a Money value from a decimal amount.
func NewMoney(amount decimal.Decimal, unit currency.Unit) Money {
	return Money{Amount: amount, Currency: unit}
}

// MoneyFromMinor converts an integer minor-unit amount (kobo for NGN) into a
// Money value.
func MoneyFromMinor(minor int64, unit currency.Unit) Money {
	return Money{Amount: decimal.NewFromInt(minor).Shift(-2), Currency: unit}
}

// Minor returns the amount in integer minor units, rounding half up.
func (m Money) Minor() int64 {
	return m.Amount.Shift(2).Round(0).IntPart()
}

// Add returns m + other. Both operands must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// MulInt scales the amount by an integer quantity.
func (m Money) MulInt(n int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(n)), Currency: m.Currency}
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Equal reports whether two Money values share currency and amount.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// String renders the value as "NGN 1250.00".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Currency, m.Amount.StringFixed(2))
}

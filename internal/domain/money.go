package domain

import (
	"github.com/shopspring/decimal"
)

// Money is an exact-decimal amount, always normalized to two fractional
// digits with banker's rounding (round half to even). Every arithmetic
// operation returns a new normalized value.
type Money struct {
	amount decimal.Decimal
}

var ZeroMoney = Money{amount: decimal.Zero.RoundBank(2)}

func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount.RoundBank(2)}
}

func NewMoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return NewMoney(d), nil
}

func NewMoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Add(other Money) Money {
	return NewMoney(m.amount.Add(other.amount))
}

func (m Money) Subtract(other Money) Money {
	return NewMoney(m.amount.Sub(other.amount))
}

func (m Money) Multiply(multiplier int) Money {
	return NewMoney(m.amount.Mul(decimal.NewFromInt(int64(multiplier))))
}

func (m Money) IsGreaterThan(other Money) bool {
	return m.amount.Cmp(other.amount) > 0
}

func (m Money) IsGreaterThanZero() bool {
	return m.amount.Cmp(decimal.Zero) > 0
}

func (m Money) Equal(other Money) bool {
	return m.amount.Cmp(other.amount) == 0
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.amount.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	m.amount = d.RoundBank(2)
	return nil
}

package shared

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places kept for every amount.
const AmountScale = 2

// Side is the debit or credit side of a posting, also used as normal balance.
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// ParseSide normalises a side string.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Debit:
		return Debit, nil
	case Credit:
		return Credit, nil
	}
	return "", fmt.Errorf("accounting: unknown side %q", s)
}

// Valid reports whether s is DEBIT or CREDIT.
func (s Side) Valid() bool {
	return s == Debit || s == Credit
}

// Opposite swaps debit and credit.
func (s Side) Opposite() Side {
	if s == Debit {
		return Credit
	}
	return Debit
}

// Signed returns +amount when side matches normal, -amount otherwise.
func Signed(normal, side Side, amount decimal.Decimal) decimal.Decimal {
	if side == normal {
		return amount
	}
	return amount.Neg()
}

// NetOnSide converts debit/credit totals into a balance on the given side.
func NetOnSide(normal Side, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == Debit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// HasScale reports whether d fits the fixed-point precision.
func HasScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(AmountScale))
}

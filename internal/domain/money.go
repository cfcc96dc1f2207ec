package domain

import "github.com/shopspring/decimal"

// Monetary arithmetic is fixed-point, scaled to 2 decimal places (cents).
//
// Running sums are rounded after each accumulation step, not only at the
// end. This per-step rounding is part of the observable contract of the
// aggregation views: [10.005, 10.005, -5.00] accumulates to
// 10.01 → 20.01 → 15.01, never 15.00.

// MoneyScale is the number of decimal places for all monetary values.
const MoneyScale = 2

var halfCent = decimal.New(5, -(MoneyScale + 1))

// RoundMoney rounds a value to monetary precision. An exact half-cent
// resolves toward the odd cent, which is what reproduces the reference
// sequence above: 10.005 → 10.01 and 20.015 → 20.01.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	away := v.Round(MoneyScale)
	if !away.Sub(v).Abs().Equal(halfCent) {
		return away
	}
	toward := v.RoundDown(MoneyScale)
	if toward.Shift(MoneyScale).IntPart()%2 != 0 {
		return toward
	}
	return away
}

// AddMoney adds v to acc and rounds the result.
func AddMoney(acc, v decimal.Decimal) decimal.Decimal {
	return RoundMoney(acc.Add(v))
}

// SumMoney folds AddMoney over vs, in order, starting from zero.
func SumMoney(vs ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vs {
		total = AddMoney(total, v)
	}
	return total
}

// DivMoney divides total by n and rounds the result.
// n must be non-zero; callers guard the zero-periods case upstream.
func DivMoney(total decimal.Decimal, n int64) decimal.Decimal {
	return RoundMoney(total.Div(decimal.NewFromInt(n)))
}

// SignedAmount returns the transaction amount with the sign implied by
// its type: revenue contributes positively, expense negatively.
func SignedAmount(tx Transaction) decimal.Decimal {
	if tx.Type == TransactionExpense {
		return tx.Amount.Neg()
	}
	return tx.Amount
}

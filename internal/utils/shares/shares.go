package shares

import (
	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FromValues converts explicit monetary amounts into percentage shares of
// their total. If the total is zero the shares are split equally (100/n),
// which keeps the result defined instead of dividing by zero.
func FromValues(amounts []decimal.Decimal) []decimal.Decimal {
	if len(amounts) == 0 {
		return nil
	}

	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}

	percentages := make([]decimal.Decimal, len(amounts))
	if total.IsZero() {
		equal := hundred.Div(decimal.NewFromInt(int64(len(amounts))))
		for i := range percentages {
			percentages[i] = equal
		}
		return percentages
	}

	for i, a := range amounts {
		percentages[i] = a.Div(total).Mul(hundred)
	}
	return percentages
}

// ToValues converts percentage shares back into explicit amounts of the given
// total, rounded to 2 decimal places. Accumulated rounding error is not
// redistributed; callers compare with the balance tolerance.
func ToValues(percentages []decimal.Decimal, total decimal.Decimal) []decimal.Decimal {
	amounts := make([]decimal.Decimal, len(percentages))
	for i, p := range percentages {
		amounts[i] = p.Div(hundred).Mul(total).Round(2)
	}
	return amounts
}

// ApplyToOperations returns a copy of the operations with shares computed
// from their amounts.
func ApplyToOperations(ops []domain.AccountOperation) []domain.AccountOperation {
	amounts := make([]decimal.Decimal, len(ops))
	for i, op := range ops {
		amounts[i] = op.Amount
	}
	percentages := FromValues(amounts)

	out := make([]domain.AccountOperation, len(ops))
	for i, op := range ops {
		op.Share = &domain.Share{Percentage: percentages[i]}
		out[i] = op
	}
	return out
}

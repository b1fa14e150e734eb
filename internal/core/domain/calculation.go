package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppliedFee is one fee line of a calculation, resolved against its rule
// where possible.
type AppliedFee struct {
	FeeID            string          `json:"feeId"`
	FeeLabel         string          `json:"feeLabel"`
	Amount           decimal.Decimal `json:"amount"`
	Priority         int             `json:"priority"`
	IsDeductibleFrom bool            `json:"isDeductibleFrom"`
	CreditAccount    string          `json:"creditAccount"`
}

// FeeCalculationState is the display-ready summary derived from a successful
// calculation response. It is never persisted; the console renders it and
// throws it away.
type FeeCalculationState struct {
	OriginalAmount decimal.Decimal `json:"originalAmount"`
	Currency       string          `json:"currency"`
	SourceAccount  string          `json:"sourceAccount"`
	DestAccount    string          `json:"destinationAccount"`

	DeductibleFees    decimal.Decimal `json:"deductibleFees"`
	NonDeductibleFees decimal.Decimal `json:"nonDeductibleFees"`
	TotalFees         decimal.Decimal `json:"totalFees"`

	// AppliedFees is ordered by rule priority ascending.
	AppliedFees []AppliedFee `json:"appliedFees"`

	// SourcePaysAmount = original + non-deductible fees.
	// DestinationReceivesAmount = original - deductible fees.
	SourcePaysAmount          decimal.Decimal `json:"sourcePaysAmount"`
	DestinationReceivesAmount decimal.Decimal `json:"destinationReceivesAmount"`

	PackageID    string    `json:"packageId,omitempty"`
	PackageLabel string    `json:"packageLabel,omitempty"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

package domain

import "github.com/shopspring/decimal"

// ReferenceAmount selects which base a fee rule is computed against.
type ReferenceAmount string

const (
	ReferenceOriginalAmount  ReferenceAmount = "originalAmount"
	ReferenceAfterFeesAmount ReferenceAmount = "afterFeesAmount"
)

// ApplicationRule selects how a fee rule's calculations are applied.
type ApplicationRule string

const (
	ApplicationFlatFee         ApplicationRule = "flatFee"
	ApplicationPercentual      ApplicationRule = "percentual"
	ApplicationMaxBetweenTypes ApplicationRule = "maxBetweenTypes"
)

// FeeCalculations holds the flat and/or percentage components of a rule.
// maxBetweenTypes requires both to be present.
type FeeCalculations struct {
	FlatAmount *decimal.Decimal `json:"flatAmount,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
}

// FeeRule is one fee of a fee package.
//
// Invariants: Priority == 1 implies ReferenceAmount == originalAmount;
// Priority > 1 implies ReferenceAmount == afterFeesAmount; maxBetweenTypes
// requires both FlatAmount and Percentage.
type FeeRule struct {
	FeeID            string          `json:"feeId"`
	FeeLabel         string          `json:"feeLabel"`
	Priority         int             `json:"priority"`
	ReferenceAmount  ReferenceAmount `json:"referenceAmount"`
	ApplicationRule  ApplicationRule `json:"applicationRule"`
	Calculations     FeeCalculations `json:"calculations"`
	IsDeductibleFrom bool            `json:"isDeductibleFrom"`
	CreditAccount    string          `json:"creditAccount"`
}

// FeePackage is a named bundle of fee rules applicable to a segment.
type FeePackage struct {
	PackageID    string    `json:"packageId"`
	PackageLabel string    `json:"packageLabel"`
	SegmentID    string    `json:"segmentId"`
	Description  string    `json:"description,omitempty"`
	Rules        []FeeRule `json:"fees"`
}

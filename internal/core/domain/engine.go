package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EngineOutcomeKind tags the recognized fee engine response shapes. The wire
// JSON is decoded into exactly one of these at the adapter boundary; the
// pipeline switches on the tag instead of duck-typing field presence.
type EngineOutcomeKind string

const (
	OutcomeNoFees   EngineOutcomeKind = "NO_FEES"
	OutcomeSuccess  EngineOutcomeKind = "SUCCESS"
	OutcomeGratuity EngineOutcomeKind = "GRATUITY"
	OutcomeUnknown  EngineOutcomeKind = "UNKNOWN"
)

// EngineFee is one fee entry of a successful engine calculation.
type EngineFee struct {
	FeeID         string          `json:"feeId"`
	FeeLabel      string          `json:"feeLabel"`
	Amount        decimal.Decimal `json:"amount"`
	Priority      int             `json:"priority"`
	AppliedTo     string          `json:"appliedTo"` // "source" or "destination"
	CreditAccount string          `json:"creditAccount"`
}

// EngineOutcome is the tagged variant of a fee engine calculation response.
// Only the fields relevant to the Kind are populated.
type EngineOutcome struct {
	Kind EngineOutcomeKind

	// Message carries the engine's explanation for no-fee and gratuity
	// outcomes, and the raw diagnostic for unknown shapes.
	Message string

	Fees           []EngineFee
	TotalFees      decimal.Decimal
	OriginalAmount decimal.Decimal
	NetAmount      decimal.Decimal
	Sources        []AccountOperation
	Destinations   []AccountOperation
	PackageID      string
	PackageLabel   string
	CalculatedAt   time.Time
}

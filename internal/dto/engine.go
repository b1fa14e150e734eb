package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// EngineOperation is one account entry in the fee engine's wire format.
// Splits are expressed as shares, not absolute amounts.
type EngineOperation struct {
	AccountAlias    string           `json:"accountAlias"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	Share           *EngineShare     `json:"share,omitempty"`
	ChartOfAccounts string           `json:"chartOfAccounts,omitempty"`
	Description     string           `json:"description,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// EngineShare is the engine's percentage split representation.
type EngineShare struct {
	Percentage decimal.Decimal `json:"percentage"`
}

// EngineSource wraps the engine's source side.
type EngineSource struct {
	From []EngineOperation `json:"from"`
}

// EngineDistribute wraps the engine's destination side.
type EngineDistribute struct {
	To []EngineOperation `json:"to"`
}

// EngineSend is the engine's transaction "send" block.
type EngineSend struct {
	Asset      string           `json:"asset"`
	Value      decimal.Decimal  `json:"value"`
	Source     EngineSource     `json:"source"`
	Distribute EngineDistribute `json:"distribute"`
}

// EngineTransaction is the engine's transaction wire shape.
type EngineTransaction struct {
	Description              string         `json:"description,omitempty"`
	ChartOfAccountsGroupName string         `json:"chartOfAccountsGroupName,omitempty"`
	Send                     EngineSend     `json:"send"`
	Metadata                 map[string]any `json:"metadata,omitempty"`
}

// EngineRequest is the body POSTed to the fee engine's calculation endpoint.
type EngineRequest struct {
	LedgerID    string            `json:"ledgerId"`
	SegmentID   string            `json:"segmentId"`
	Transaction EngineTransaction `json:"transaction"`
}

// EngineFeeEntry is one fee of a successful engine calculation response.
type EngineFeeEntry struct {
	FeeID         string          `json:"feeId"`
	FeeLabel      string          `json:"feeLabel"`
	Amount        decimal.Decimal `json:"amount"`
	Priority      int             `json:"priority"`
	AppliedTo     string          `json:"appliedTo"`
	CreditAccount string          `json:"creditAccount"`
}

// RawEngineResponse is the undiscriminated engine calculation response body.
// FeesApplied is either an empty array (no fees) or the boolean true
// (success), so it stays raw until the adapter decodes the union into a
// domain.EngineOutcome.
type RawEngineResponse struct {
	FeesApplied    json.RawMessage    `json:"feesApplied"`
	Message        string             `json:"message,omitempty"`
	Gratuity       bool               `json:"gratuity,omitempty"`
	Fees           []EngineFeeEntry   `json:"fees,omitempty"`
	TotalFees      *decimal.Decimal   `json:"totalFees,omitempty"`
	NetAmount      *decimal.Decimal   `json:"netAmount,omitempty"`
	OriginalAmount *decimal.Decimal   `json:"originalAmount,omitempty"`
	PackageID      string             `json:"packageId,omitempty"`
	PackageLabel   string             `json:"packageLabel,omitempty"`
	CalculatedAt   *time.Time         `json:"calculatedAt,omitempty"`
	Transaction    *EngineTransaction `json:"transaction,omitempty"`
}

// EngineErrorBody is the engine's error response body, when it sends one.
type EngineErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

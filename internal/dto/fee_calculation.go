package dto

import (
	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/shopspring/decimal"
)

// OperationInput is one source or destination entry of an inbound
// calculation request.
type OperationInput struct {
	AccountAlias    string           `json:"accountAlias" binding:"required"`
	Amount          decimal.Decimal  `json:"amount"`
	Asset           string           `json:"asset,omitempty"`
	ChartOfAccounts string           `json:"chartOfAccounts"`
	Description     string           `json:"description,omitempty"`
	SharePercentage *decimal.Decimal `json:"sharePercentage,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// TransactionInput is the console's transaction shape as posted to the
// gateway.
type TransactionInput struct {
	Description          string           `json:"description"`
	ChartOfAccountsGroup string           `json:"chartOfAccountsGroupName"`
	Value                decimal.Decimal  `json:"value" binding:"required"`
	Asset                string           `json:"asset" binding:"required"`
	Sources              []OperationInput `json:"source" binding:"required,min=1,dive"`
	Destinations         []OperationInput `json:"destination" binding:"required,min=1,dive"`
	Metadata             map[string]any   `json:"metadata,omitempty"`
}

// CalculateFeesRequest is the inbound body for a fee calculation.
// SegmentID may alternatively arrive via transaction metadata.
type CalculateFeesRequest struct {
	SegmentID   string           `json:"segmentId,omitempty"`
	Transaction TransactionInput `json:"transaction" binding:"required"`
}

// ToDomain converts the inbound transaction into the domain representation.
// Operations arriving from the console are principal by definition; fee lines
// only ever originate from the engine.
func (r CalculateFeesRequest) ToDomain() domain.TransactionRequest {
	return domain.TransactionRequest{
		Description:          r.Transaction.Description,
		ChartOfAccountsGroup: r.Transaction.ChartOfAccountsGroup,
		Value:                r.Transaction.Value,
		Asset:                r.Transaction.Asset,
		Sources:              toDomainOperations(r.Transaction.Sources),
		Destinations:         toDomainOperations(r.Transaction.Destinations),
		Metadata:             r.Transaction.Metadata,
	}
}

func toDomainOperations(ops []OperationInput) []domain.AccountOperation {
	out := make([]domain.AccountOperation, len(ops))
	for i, op := range ops {
		var share *domain.Share
		if op.SharePercentage != nil {
			share = &domain.Share{Percentage: *op.SharePercentage}
		}
		out[i] = domain.AccountOperation{
			AccountAlias:    op.AccountAlias,
			Amount:          op.Amount,
			Asset:           op.Asset,
			ChartOfAccounts: op.ChartOfAccounts,
			Description:     op.Description,
			Kind:            domain.KindPrincipal,
			Share:           share,
			Metadata:        op.Metadata,
		}
	}
	return out
}

// CalculateFeesResponse is the console-format result of the fee pipeline.
type CalculateFeesResponse struct {
	Transaction domain.TransactionRequest `json:"transaction"`
	FeeRules    []domain.FeeRule          `json:"feeRules,omitempty"`

	// FeesApplied is false for the no-fee passthrough and for the
	// availability fallback; Message explains which.
	FeesApplied bool   `json:"feesApplied"`
	WithoutFees bool   `json:"withoutFees,omitempty"`
	Message     string `json:"message,omitempty"`

	State    *domain.FeeCalculationState `json:"feeState,omitempty"`
	Warnings []domain.ValidationIssue    `json:"warnings,omitempty"`
}

// ValidateRequestResponse is the result of the validate-only endpoint.
type ValidateRequestResponse struct {
	IsValid bool                     `json:"isValid"`
	Issues  []domain.ValidationIssue `json:"issues"`
}

// ServiceStatusResponse reports whether fee calculation is currently usable.
type ServiceStatusResponse struct {
	Enabled       bool   `json:"enabled"`
	Configured    bool   `json:"configured"`
	EngineHealthy bool   `json:"engineHealthy"`
	Available     bool   `json:"available"`
	Detail        string `json:"detail,omitempty"`
}

// ListFeePackagesResponse is a paginated page of fee packages.
type ListFeePackagesResponse struct {
	Packages  []domain.FeePackage `json:"packages"`
	NextToken *string             `json:"nextToken,omitempty"`
}

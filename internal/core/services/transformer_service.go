package services

import (
	"fmt"
	"log/slog"

	"github.com/ledgerconsole/fee_gateway/internal/apperrors"
	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/ledgerconsole/fee_gateway/internal/dto"
	"github.com/ledgerconsole/fee_gateway/internal/utils/shares"
	"github.com/shopspring/decimal"
)

// FormatTransformer maps between the console's transaction shape and the fee
// engine's wire shape. Both directions are pure aside from diagnostic logging
// on unexpected response shapes.
type FormatTransformer struct {
	logger *slog.Logger
}

// NewFormatTransformer creates a new FormatTransformer.
func NewFormatTransformer(logger *slog.Logger) *FormatTransformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FormatTransformer{logger: logger}
}

// ToEngineFormat converts a console transaction into the engine request.
// The engine expresses splits as percentage shares, so each side's explicit
// amounts are converted before sending. Fails with ErrMissingSegment when no
// segment ID is available from the parameter or the transaction metadata.
func (t *FormatTransformer) ToEngineFormat(txn domain.TransactionRequest, ledgerID, segmentID string) (dto.EngineRequest, error) {
	if segmentID == "" {
		segmentID = txn.SegmentIDFromMetadata()
	}
	if segmentID == "" {
		return dto.EngineRequest{}, apperrors.ErrMissingSegment
	}

	return dto.EngineRequest{
		LedgerID:  ledgerID,
		SegmentID: segmentID,
		Transaction: dto.EngineTransaction{
			Description:              txn.Description,
			ChartOfAccountsGroupName: txn.ChartOfAccountsGroup,
			Metadata:                 txn.Metadata,
			Send: dto.EngineSend{
				Asset:      txn.Asset,
				Value:      txn.Value,
				Source:     dto.EngineSource{From: toEngineOperations(txn.Sources)},
				Distribute: dto.EngineDistribute{To: toEngineOperations(txn.Destinations)},
			},
		},
	}, nil
}

func toEngineOperations(ops []domain.AccountOperation) []dto.EngineOperation {
	withShares := shares.ApplyToOperations(ops)
	out := make([]dto.EngineOperation, len(withShares))
	for i, op := range withShares {
		out[i] = dto.EngineOperation{
			AccountAlias:    op.AccountAlias,
			Share:           &dto.EngineShare{Percentage: op.Share.Percentage},
			ChartOfAccounts: op.ChartOfAccounts,
			Description:     op.Description,
			Metadata:        op.Metadata,
		}
	}
	return out
}

// ToConsoleFormat converts an engine outcome back into the console shape.
// Three shapes are recognized: no fees (passthrough with the engine's
// message), gratuity (same treatment), and success (fee rules reconstructed,
// explicit values recomputed for both sides). Anything else is surfaced as an
// unknown-format response rather than an error, so the caller can still fall
// back to a transaction without fees.
func (t *FormatTransformer) ToConsoleFormat(outcome domain.EngineOutcome, original domain.TransactionRequest) *dto.CalculateFeesResponse {
	switch outcome.Kind {
	case domain.OutcomeNoFees, domain.OutcomeGratuity:
		return &dto.CalculateFeesResponse{
			Transaction: original,
			FeesApplied: false,
			Message:     outcome.Message,
		}
	case domain.OutcomeSuccess:
		return t.successToConsoleFormat(outcome, original)
	default:
		t.logger.Error("unrecognized fee engine response shape",
			slog.String("kind", string(outcome.Kind)),
			slog.String("message", outcome.Message))
		return &dto.CalculateFeesResponse{
			Transaction: original,
			FeesApplied: false,
			WithoutFees: true,
			Message:     fmt.Sprintf("unrecognized fee engine response: %s", outcome.Message),
		}
	}
}

func (t *FormatTransformer) successToConsoleFormat(outcome domain.EngineOutcome, original domain.TransactionRequest) *dto.CalculateFeesResponse {
	rules := make([]domain.FeeRule, len(outcome.Fees))
	nonDeductible := decimal.Zero
	for i, fee := range outcome.Fees {
		deductible := fee.AppliedTo == "source"
		if !deductible {
			nonDeductible = nonDeductible.Add(fee.Amount)
		}

		reference := domain.ReferenceAfterFeesAmount
		if fee.Priority == 1 {
			reference = domain.ReferenceOriginalAmount
		}
		amount := fee.Amount
		rules[i] = domain.FeeRule{
			FeeID:            fee.FeeID,
			FeeLabel:         fee.FeeLabel,
			Priority:         fee.Priority,
			ReferenceAmount:  reference,
			ApplicationRule:  domain.ApplicationFlatFee,
			Calculations:     domain.FeeCalculations{FlatAmount: &amount},
			IsDeductibleFrom: deductible,
			CreditAccount:    fee.CreditAccount,
		}
	}

	// The payer covers the original amount plus any fees charged on top;
	// principal recipients split the net amount.
	sourceGross := outcome.OriginalAmount.Add(nonDeductible)
	txn := domain.TransactionRequest{
		Description:          original.Description,
		ChartOfAccountsGroup: original.ChartOfAccountsGroup,
		Value:                sourceGross,
		Asset:                original.Asset,
		Sources:              resolveAmounts(outcome.Sources, sourceGross),
		Destinations:         resolveAmounts(outcome.Destinations, outcome.NetAmount),
		Metadata:             original.Metadata,
	}

	return &dto.CalculateFeesResponse{
		Transaction: txn,
		FeeRules:    rules,
		FeesApplied: true,
	}
}

// resolveAmounts fills in explicit amounts for operations that only carry
// shares. Fee lines arrive with explicit amounts already set; principal
// shares apply to the given base total.
func resolveAmounts(ops []domain.AccountOperation, base decimal.Decimal) []domain.AccountOperation {
	out := make([]domain.AccountOperation, len(ops))
	for i, op := range ops {
		if op.Amount.IsZero() && op.Share != nil {
			op.Amount = op.Share.Percentage.Div(hundred).Mul(base).Round(2)
		}
		out[i] = op
	}
	return out
}

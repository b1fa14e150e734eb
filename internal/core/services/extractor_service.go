package services

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerconsole/fee_gateway/internal/apperrors"
	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FeeStateExtractor derives the display-ready fee summary from a successful
// calculation. It encodes the deductibility rule: non-deductible fees are
// added on top of what the payer sends, deductible fees are subtracted from
// what the recipient nets.
type FeeStateExtractor struct {
	logger *slog.Logger
}

// NewFeeStateExtractor creates a new FeeStateExtractor.
func NewFeeStateExtractor(logger *slog.Logger) *FeeStateExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeeStateExtractor{logger: logger}
}

// Extract builds a FeeCalculationState from a success outcome and the
// reconciled transaction. Non-success outcomes are rejected.
func (e *FeeStateExtractor) Extract(outcome domain.EngineOutcome, reconciled, original domain.TransactionRequest, rules []domain.FeeRule) (*domain.FeeCalculationState, error) {
	if outcome.Kind != domain.OutcomeSuccess {
		return nil, fmt.Errorf("%w: outcome kind %s", apperrors.ErrInvalidCalculationResponse, outcome.Kind)
	}

	originalAmount := outcome.OriginalAmount
	if originalAmount.IsZero() {
		originalAmount = original.Value
	}

	sourceAliases := make(map[string]bool, len(reconciled.Sources))
	for _, op := range reconciled.Sources {
		sourceAliases[domain.NormalizedAlias(op.AccountAlias)] = true
	}

	// A destination flagged as a fee, or routed back to a payer account, is
	// a fee line; everything else is a main recipient.
	known := original.KnownAccounts()
	var mainRecipients, feeOps []domain.AccountOperation
	for _, op := range reconciled.Destinations {
		isFee := op.Kind == domain.KindFee || sourceAliases[domain.NormalizedAlias(op.AccountAlias)]
		if !isFee {
			mainRecipients = append(mainRecipients, op)
			continue
		}
		if !isLegitimateFeeOperation(op, known) {
			e.logger.Warn("ignoring spurious fee operation in fee summary",
				slog.String("account_alias", op.AccountAlias))
			continue
		}
		feeOps = append(feeOps, op)
	}

	state := &domain.FeeCalculationState{
		OriginalAmount:    originalAmount,
		Currency:          original.Asset,
		DeductibleFees:    decimal.Zero,
		NonDeductibleFees: decimal.Zero,
		TotalFees:         decimal.Zero,
		PackageID:         outcome.PackageID,
		PackageLabel:      outcome.PackageLabel,
		CalculatedAt:      outcome.CalculatedAt,
	}
	if state.CalculatedAt.IsZero() {
		state.CalculatedAt = time.Now().UTC()
	}
	if len(reconciled.Sources) > 0 {
		state.SourceAccount = reconciled.Sources[0].AccountAlias
	}
	if len(mainRecipients) > 0 {
		state.DestAccount = mainRecipients[0].AccountAlias
	}

	for _, op := range feeOps {
		e.accumulateFee(state, op.AccountAlias, op.Amount, rules)
	}
	// Fee lines folded into an ordinary recipient during reconciliation stay
	// attributable through their merge markers.
	for _, op := range mainRecipients {
		if op.IsMerged && !op.MergedFeeAmount.IsZero() {
			e.accumulateFee(state, op.AccountAlias, op.MergedFeeAmount, rules)
		}
	}

	state.TotalFees = state.DeductibleFees.Add(state.NonDeductibleFees)
	state.SourcePaysAmount = originalAmount.Add(state.NonDeductibleFees)
	state.DestinationReceivesAmount = originalAmount.Sub(state.DeductibleFees)

	sort.SliceStable(state.AppliedFees, func(i, j int) bool {
		return state.AppliedFees[i].Priority < state.AppliedFees[j].Priority
	})

	return state, nil
}

// accumulateFee matches a fee line to its rule by credit account (tolerant of
// a leading '@' on either side) and buckets the amount by deductibility. An
// unmatched fee line gets a synthetic identity and is treated as charged on
// top of the principal.
func (e *FeeStateExtractor) accumulateFee(state *domain.FeeCalculationState, alias string, amount decimal.Decimal, rules []domain.FeeRule) {
	for _, rule := range rules {
		if !domain.SameAccount(rule.CreditAccount, alias) {
			continue
		}
		if rule.IsDeductibleFrom {
			state.DeductibleFees = state.DeductibleFees.Add(amount)
		} else {
			state.NonDeductibleFees = state.NonDeductibleFees.Add(amount)
		}
		state.AppliedFees = append(state.AppliedFees, domain.AppliedFee{
			FeeID:            rule.FeeID,
			FeeLabel:         rule.FeeLabel,
			Amount:           amount,
			Priority:         rule.Priority,
			IsDeductibleFrom: rule.IsDeductibleFrom,
			CreditAccount:    rule.CreditAccount,
		})
		return
	}

	e.logger.Warn("fee operation has no matching rule, using synthetic identity",
		slog.String("account_alias", alias),
		slog.String("amount", amount.String()))
	state.NonDeductibleFees = state.NonDeductibleFees.Add(amount)
	state.AppliedFees = append(state.AppliedFees, domain.AppliedFee{
		FeeID:            uuid.NewString(),
		FeeLabel:         fmt.Sprintf("Fee to %s", alias),
		Amount:           amount,
		Priority:         len(rules) + len(state.AppliedFees) + 1,
		IsDeductibleFrom: false,
		CreditAccount:    alias,
	})
}

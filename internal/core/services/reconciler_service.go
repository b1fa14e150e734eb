package services

import (
	"fmt"
	"log/slog"

	"github.com/ledgerconsole/fee_gateway/internal/apperrors"
	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ResponseReconciler merges and validates a fee engine response against the
// original request so the console never renders an inconsistent transaction.
// Fee engines are known to return duplicate source entries and to co-mingle
// fee lines with ordinary destinations; those quirks are healed here.
type ResponseReconciler struct {
	validator *RequestValidator
	logger    *slog.Logger
}

// NewResponseReconciler creates a new ResponseReconciler.
func NewResponseReconciler(validator *RequestValidator, logger *slog.Logger) *ResponseReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseReconciler{validator: validator, logger: logger}
}

// IsMultiParty reports whether the transaction carries genuine N:N structure
// that the merging reconciler would flatten: more than one source and more
// than one non-fee destination. Such transactions go through the
// structure-preserving variant instead.
func (r *ResponseReconciler) IsMultiParty(txn domain.TransactionRequest) bool {
	if len(txn.Sources) < 2 {
		return false
	}
	nonFee := 0
	for _, op := range txn.Destinations {
		if op.Kind != domain.KindFee {
			nonFee++
		}
	}
	return nonFee > 1
}

// Reconcile heals an engine-shaped transaction: duplicate sources are merged,
// illegitimate fee lines dropped, colliding fee lines folded into their
// ordinary destination entries, and source totals redistributed to keep the
// transaction balanced. The reconciled fee rules are re-validated; error
// findings abort, warnings are returned for the caller to log or surface.
func (r *ResponseReconciler) Reconcile(txn, original domain.TransactionRequest, rules []domain.FeeRule) (domain.TransactionRequest, []domain.ValidationIssue, error) {
	sources := r.mergeDuplicateSources(txn.Sources)

	feeOps, ordinary := partitionDestinations(txn.Destinations)
	validFees, dropped := r.filterFeeOperations(feeOps, original.KnownAccounts())

	destinations, merged := mergeFeeOperations(ordinary, validFees)

	adjusted := txn
	adjusted.Sources = sources
	adjusted.Destinations = destinations

	if dropped > 0 || merged {
		var err error
		adjusted.Sources, err = r.rebalanceSources(adjusted.Sources, domain.SumAmounts(destinations))
		if err != nil {
			return domain.TransactionRequest{}, nil, err
		}
	}

	warnings, err := r.validateReconciled(adjusted, rules)
	if err != nil {
		return domain.TransactionRequest{}, nil, err
	}
	return adjusted, warnings, nil
}

// ReconcilePreservingStructure is the multi-party variant: instead of merging
// it tags every operation with its original index, duplicate markers, and its
// operation kind, so N:N relationships survive to the console. Illegitimate
// fee lines are still dropped and the same balance and fee-rule validation
// applies.
func (r *ResponseReconciler) ReconcilePreservingStructure(txn, original domain.TransactionRequest, rules []domain.FeeRule) (domain.TransactionRequest, []domain.ValidationIssue, error) {
	sources := make([]domain.AccountOperation, len(txn.Sources))
	seen := make(map[string]bool, len(txn.Sources))
	for i, op := range txn.Sources {
		op.OriginalIndex = i
		alias := domain.NormalizedAlias(op.AccountAlias)
		if seen[alias] {
			op.IsDuplicate = true
			r.logger.Warn("duplicate source account preserved",
				slog.String("account_alias", op.AccountAlias),
				slog.Int("original_index", i))
		}
		seen[alias] = true
		sources[i] = op
	}

	known := original.KnownAccounts()
	destinations := make([]domain.AccountOperation, 0, len(txn.Destinations))
	dropped := 0
	for i, op := range txn.Destinations {
		op.OriginalIndex = i
		if op.Kind == domain.KindFee && !isLegitimateFeeOperation(op, known) {
			dropped++
			r.logger.Warn("dropping fee operation impersonating a transaction account",
				slog.String("account_alias", op.AccountAlias))
			continue
		}
		destinations = append(destinations, op)
	}

	adjusted := txn
	adjusted.Sources = sources
	adjusted.Destinations = destinations

	if dropped > 0 {
		var err error
		adjusted.Sources, err = r.rebalanceSources(adjusted.Sources, domain.SumAmounts(destinations))
		if err != nil {
			return domain.TransactionRequest{}, nil, err
		}
	}

	warnings, err := r.validateReconciled(adjusted, rules)
	if err != nil {
		return domain.TransactionRequest{}, nil, err
	}
	return adjusted, warnings, nil
}

// mergeDuplicateSources sums repeated source aliases into one entry.
// Duplicates are an engine quirk to be healed, not a hard failure.
func (r *ResponseReconciler) mergeDuplicateSources(sources []domain.AccountOperation) []domain.AccountOperation {
	out := make([]domain.AccountOperation, 0, len(sources))
	index := make(map[string]int, len(sources))
	for _, op := range sources {
		alias := domain.NormalizedAlias(op.AccountAlias)
		if at, seen := index[alias]; seen {
			out[at].Amount = out[at].Amount.Add(op.Amount)
			r.logger.Warn("merged duplicate source account from fee engine response",
				slog.String("account_alias", op.AccountAlias),
				slog.String("merged_amount", out[at].Amount.String()))
			continue
		}
		index[alias] = len(out)
		out = append(out, op)
	}
	return out
}

func partitionDestinations(destinations []domain.AccountOperation) (feeOps, ordinary []domain.AccountOperation) {
	for _, op := range destinations {
		if op.Kind == domain.KindFee {
			feeOps = append(feeOps, op)
		} else {
			ordinary = append(ordinary, op)
		}
	}
	return feeOps, ordinary
}

// isLegitimateFeeOperation accepts a fee line that either targets an account
// outside the transaction, or names one of its accounts while declaring the
// flow it originated from. A fee line reusing a transaction account with no
// attribution is the engine echoing a principal operation, not a fee.
func isLegitimateFeeOperation(op domain.AccountOperation, known map[string]bool) bool {
	if !known[domain.NormalizedAlias(op.AccountAlias)] {
		return true
	}
	if op.Metadata != nil {
		if src, ok := op.Metadata["source"].(string); ok && src != "" {
			return true
		}
	}
	return false
}

func (r *ResponseReconciler) filterFeeOperations(feeOps []domain.AccountOperation, known map[string]bool) ([]domain.AccountOperation, int) {
	valid := make([]domain.AccountOperation, 0, len(feeOps))
	dropped := 0
	for _, op := range feeOps {
		if !isLegitimateFeeOperation(op, known) {
			dropped++
			r.logger.Warn("dropping fee operation impersonating a transaction account",
				slog.String("account_alias", op.AccountAlias))
			continue
		}
		valid = append(valid, op)
	}
	return valid, dropped
}

// mergeFeeOperations folds fee lines that collide with an ordinary
// destination alias into that entry, keeping one line item per account. The
// folded fee amount stays visible through the merge markers.
func mergeFeeOperations(ordinary, feeOps []domain.AccountOperation) ([]domain.AccountOperation, bool) {
	out := make([]domain.AccountOperation, len(ordinary))
	copy(out, ordinary)

	index := make(map[string]int, len(out))
	for i, op := range out {
		index[domain.NormalizedAlias(op.AccountAlias)] = i
	}

	merged := false
	for _, fee := range feeOps {
		if at, collides := index[domain.NormalizedAlias(fee.AccountAlias)]; collides {
			out[at].Amount = out[at].Amount.Add(fee.Amount)
			out[at].IsMerged = true
			out[at].MergedFeeAmount = out[at].MergedFeeAmount.Add(fee.Amount)
			merged = true
			continue
		}
		out = append(out, fee)
	}
	return out, merged
}

// rebalanceSources recomputes the source side to match the new destination
// total. A single source is set directly; multiple sources are scaled by
// their prior share of the total. A negative result must never happen and is
// treated as a fatal computation error, not clamped.
func (r *ResponseReconciler) rebalanceSources(sources []domain.AccountOperation, newTotal decimal.Decimal) ([]domain.AccountOperation, error) {
	if len(sources) == 0 {
		return sources, nil
	}

	out := make([]domain.AccountOperation, len(sources))
	copy(out, sources)

	if len(out) == 1 {
		if newTotal.IsNegative() {
			return nil, fmt.Errorf("%w: source %s amount would become %s after redistribution",
				apperrors.ErrReconciliation, out[0].AccountAlias, newTotal)
		}
		out[0].Amount = newTotal
		return out, nil
	}

	oldTotal := domain.SumAmounts(out)
	if oldTotal.IsZero() {
		return nil, fmt.Errorf("%w: cannot redistribute onto sources totalling zero", apperrors.ErrReconciliation)
	}

	adjustmentRatio := newTotal.Div(oldTotal)
	for i := range out {
		adjusted := out[i].Amount.Mul(adjustmentRatio).Round(2)
		if adjusted.IsNegative() {
			return nil, fmt.Errorf("%w: source %s amount would become %s after redistribution",
				apperrors.ErrReconciliation, out[i].AccountAlias, adjusted)
		}
		out[i].Amount = adjusted
	}
	return out, nil
}

// validateReconciled runs the balance invariant and the fee-rule runtime
// checks on the reconciled sets. Error findings abort the whole calculation;
// warnings are returned to the caller.
func (r *ResponseReconciler) validateReconciled(txn domain.TransactionRequest, rules []domain.FeeRule) ([]domain.ValidationIssue, error) {
	if balance := r.validator.ValidateBalance(txn.Sources, txn.Destinations); !balance.IsValid() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrReconciliation, balance.Errors()[0].Message)
	}

	var warnings []domain.ValidationIssue
	if len(rules) > 0 {
		ruleResult := r.validator.ValidateFeeRules(rules)
		if !ruleResult.IsValid() {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, ruleResult.Errors()[0].Message)
		}
		warnings = ruleResult.Warnings()
		for _, w := range warnings {
			r.logger.Warn("fee rule validation warning",
				slog.String("code", w.Code),
				slog.String("field", w.Field),
				slog.String("message", w.Message))
		}
	}
	return warnings, nil
}

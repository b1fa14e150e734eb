package services

import (
	"fmt"

	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/shopspring/decimal"
)

var (
	hundred        = decimal.NewFromInt(100)
	shareTolerance = decimal.New(1, -2) // shares must sum to 100 +/- 0.01
)

// RequestValidator enforces the RFC business rules on calculation requests
// and fee rule packages. All entry points are pure; they collect issues
// rather than failing on the first finding.
type RequestValidator struct{}

// NewRequestValidator creates a new RequestValidator.
func NewRequestValidator() *RequestValidator {
	return &RequestValidator{}
}

// ValidateCalculationRequest checks a calculation request in rule order:
// required fields, the send block, per-account checks, asset consistency,
// distribution totals. It short-circuits only when the transaction itself is
// missing, since nothing else can be checked without it.
func (v *RequestValidator) ValidateCalculationRequest(segmentID, ledgerID string, txn *domain.TransactionRequest) domain.ValidationResult {
	var result domain.ValidationResult

	if segmentID == "" {
		result.AddError(domain.CodeMissingField, "segmentId", "segment ID is required")
	}
	if ledgerID == "" {
		result.AddError(domain.CodeMissingField, "ledgerId", "ledger ID is required")
	}
	if txn == nil {
		result.AddError(domain.CodeMissingField, "transaction", "transaction is required")
		return result
	}

	if txn.Asset == "" {
		result.AddError(domain.CodeMissingField, "transaction.asset", "transaction asset is required")
	}
	if txn.Value.LessThanOrEqual(decimal.Zero) {
		result.AddError(domain.CodeInvalidValue, "transaction.value", "transaction value must be a positive number")
	}

	v.validateOperations(&result, "transaction.source", txn.Sources, txn.Asset)
	v.validateOperations(&result, "transaction.destination", txn.Destinations, txn.Asset)

	v.validateDistribution(&result, "transaction.source", txn.Sources, txn.Value)
	v.validateDistribution(&result, "transaction.destination", txn.Destinations, txn.Value)

	return result
}

func (v *RequestValidator) validateOperations(result *domain.ValidationResult, side string, ops []domain.AccountOperation, txnAsset string) {
	for i, op := range ops {
		field := fmt.Sprintf("%s[%d]", side, i)

		if op.AccountAlias == "" {
			result.AddError(domain.CodeMissingField, field+".accountAlias", "account alias is required")
		}
		if op.Amount.IsZero() && op.Share == nil {
			result.AddError(domain.CodeMissingField, field+".amount", "account amount is required")
		}
		if op.Amount.IsNegative() {
			result.AddError(domain.CodeInvalidValue, field+".amount", "account amount must not be negative")
		}
		if op.ChartOfAccounts == "" {
			result.AddError(domain.CodeMissingField, field+".chartOfAccounts", "chart of accounts is required")
		}
		if op.Share != nil {
			p := op.Share.Percentage
			if p.IsNegative() || p.GreaterThan(hundred) {
				result.AddError(domain.CodeInvalidValue, field+".share.percentage",
					fmt.Sprintf("share percentage %s must be between 0 and 100", p))
			}
		}
		if op.Asset != "" && txnAsset != "" && op.Asset != txnAsset {
			result.AddError(domain.CodeAssetMismatch, field+".asset",
				fmt.Sprintf("operation asset %s does not match transaction asset %s", op.Asset, txnAsset))
		}
	}
}

// validateDistribution checks that any given shares sum to 100 and that
// explicit amounts sum to the transaction value, both within tolerance.
func (v *RequestValidator) validateDistribution(result *domain.ValidationResult, side string, ops []domain.AccountOperation, txnValue decimal.Decimal) {
	if len(ops) == 0 {
		return
	}

	hasShares := false
	shareSum := decimal.Zero
	for _, op := range ops {
		if op.Share != nil {
			hasShares = true
			shareSum = shareSum.Add(op.Share.Percentage)
		}
	}
	if hasShares && shareSum.Sub(hundred).Abs().GreaterThan(shareTolerance) {
		result.AddError(domain.CodeShareSumInvalid, side,
			fmt.Sprintf("shares sum to %s, expected 100", shareSum))
	}

	amountSum := domain.SumAmounts(ops)
	if !amountSum.IsZero() && !domain.WithinTolerance(amountSum, txnValue) {
		result.AddError(domain.CodeAmountSumMismatch, side,
			fmt.Sprintf("amounts sum to %s, expected %s", amountSum, txnValue))
	}
}

// ValidateFeeRules checks the structural invariants of a fee rule set:
// priority/reference-amount pairing, maxBetweenTypes completeness, and
// deductible-priority uniqueness (a warning, since two deductible fees may
// legitimately tie).
func (v *RequestValidator) ValidateFeeRules(rules []domain.FeeRule) domain.ValidationResult {
	var result domain.ValidationResult

	deductiblePriorities := make(map[int]string)
	for i, rule := range rules {
		field := fmt.Sprintf("fees[%d]", i)

		if rule.Priority < 1 {
			result.AddError(domain.CodeInvalidValue, field+".priority",
				fmt.Sprintf("fee %s priority must be a positive integer", rule.FeeID))
			continue
		}
		if rule.Priority == 1 && rule.ReferenceAmount != domain.ReferenceOriginalAmount {
			result.AddError(domain.CodePriorityOneReference, field+".referenceAmount",
				fmt.Sprintf("fee %s with priority 1 must reference originalAmount", rule.FeeID))
		}
		if rule.Priority > 1 && rule.ReferenceAmount != domain.ReferenceAfterFeesAmount {
			result.AddError(domain.CodePriorityReference, field+".referenceAmount",
				fmt.Sprintf("fee %s with priority %d must reference afterFeesAmount", rule.FeeID, rule.Priority))
		}
		if rule.ApplicationRule == domain.ApplicationMaxBetweenTypes &&
			(rule.Calculations.FlatAmount == nil || rule.Calculations.Percentage == nil) {
			result.AddError(domain.CodeMaxBetweenIncomplete, field+".calculations",
				fmt.Sprintf("fee %s uses maxBetweenTypes but is missing a flat amount or percentage", rule.FeeID))
		}

		if rule.IsDeductibleFrom {
			if other, seen := deductiblePriorities[rule.Priority]; seen {
				result.AddWarning(domain.CodeDuplicateFeePriority, field+".priority",
					fmt.Sprintf("deductible fees %s and %s share priority %d", other, rule.FeeID, rule.Priority))
			} else {
				deductiblePriorities[rule.Priority] = rule.FeeID
			}
		}
	}

	return result
}

// ValidateBalance checks the debit/credit balance invariant on a pair of
// operation sets: both sides must sum to the same total within tolerance.
func (v *RequestValidator) ValidateBalance(sources, destinations []domain.AccountOperation) domain.ValidationResult {
	var result domain.ValidationResult

	sourceTotal := domain.SumAmounts(sources)
	destTotal := domain.SumAmounts(destinations)
	if !domain.WithinTolerance(sourceTotal, destTotal) {
		result.AddError(domain.CodeUnbalancedTransaction, "transaction",
			fmt.Sprintf("source total %s does not match destination total %s", sourceTotal, destTotal))
	}

	return result
}

// CalculateMaxBetweenTypes resolves a maxBetweenTypes rule: the larger of the
// flat amount and the percentage applied to the reference amount. Ties
// resolve to the flat amount.
func CalculateMaxBetweenTypes(flat, percentage, referenceAmount decimal.Decimal) decimal.Decimal {
	percentual := percentage.Div(hundred).Mul(referenceAmount)
	if flat.GreaterThanOrEqual(percentual) {
		return flat
	}
	return percentual
}

package services_test

import (
	"testing"

	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/ledgerconsole/fee_gateway/internal/core/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func validRequest() domain.TransactionRequest {
	return domain.TransactionRequest{
		Description: "Invoice 42",
		Value:       dec("1000"),
		Asset:       "USD",
		Sources: []domain.AccountOperation{
			{AccountAlias: "@alice", Amount: dec("1000"), ChartOfAccounts: "cash", Kind: domain.KindPrincipal},
		},
		Destinations: []domain.AccountOperation{
			{AccountAlias: "@bob", Amount: dec("1000"), ChartOfAccounts: "revenue", Kind: domain.KindPrincipal},
		},
	}
}

func issueCodes(issues []domain.ValidationIssue) []string {
	codes := make([]string, len(issues))
	for i, issue := range issues {
		codes[i] = issue.Code
	}
	return codes
}

func TestValidateCalculationRequest_Valid(t *testing.T) {
	v := services.NewRequestValidator()
	txn := validRequest()

	result := v.ValidateCalculationRequest("seg-1", "ledger-1", &txn)

	assert.True(t, result.IsValid())
	assert.Empty(t, result.Issues)
}

func TestValidateCalculationRequest_MissingSegmentAndLedger(t *testing.T) {
	v := services.NewRequestValidator()
	txn := validRequest()

	result := v.ValidateCalculationRequest("", "", &txn)

	assert.False(t, result.IsValid())
	codes := issueCodes(result.Errors())
	assert.Equal(t, []string{domain.CodeMissingField, domain.CodeMissingField}, codes)
}

func TestValidateCalculationRequest_NilTransactionShortCircuits(t *testing.T) {
	v := services.NewRequestValidator()

	result := v.ValidateCalculationRequest("seg-1", "ledger-1", nil)

	require.Len(t, result.Errors(), 1)
	assert.Equal(t, "transaction", result.Errors()[0].Field)
}

func TestValidateCalculationRequest_NonPositiveValue(t *testing.T) {
	v := services.NewRequestValidator()
	txn := validRequest()
	txn.Value = decimal.Zero
	txn.Sources[0].Amount = decimal.Zero
	txn.Sources[0].Share = &domain.Share{Percentage: dec("100")}
	txn.Destinations[0].Amount = decimal.Zero
	txn.Destinations[0].Share = &domain.Share{Percentage: dec("100")}

	result := v.ValidateCalculationRequest("seg-1", "ledger-1", &txn)

	assert.False(t, result.IsValid())
	assert.Contains(t, issueCodes(result.Errors()), domain.CodeInvalidValue)
}

func TestValidateCalculationRequest_AssetMismatch(t *testing.T) {
	v := services.NewRequestValidator()
	txn := validRequest()
	txn.Destinations[0].Asset = "EUR"

	result := v.ValidateCalculationRequest("seg-1", "ledger-1", &txn)

	assert.False(t, result.IsValid())
	errs := result.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, domain.CodeAssetMismatch, errs[0].Code)
	assert.Equal(t, "transaction.destination[0].asset", errs[0].Field)
}

func TestValidateCalculationRequest_SharesMustSumToHundred(t *testing.T) {
	v := services.NewRequestValidator()
	txn := validRequest()
	txn.Destinations = []domain.AccountOperation{
		{AccountAlias: "@bob", ChartOfAccounts: "revenue", Share: &domain.Share{Percentage: dec("60")}},
		{AccountAlias: "@carol", ChartOfAccounts: "revenue", Share: &domain.Share{Percentage: dec("30")}},
	}

	result := v.ValidateCalculationRequest("seg-1", "ledger-1", &txn)

	assert.Contains(t, issueCodes(result.Errors()), domain.CodeShareSumInvalid)
}

func TestValidateCalculationRequest_SharesWithinTolerance(t *testing.T) {
	v := services.NewRequestValidator()
	txn := validRequest()
	// 33.33 * 3 = 99.99, inside the 0.01 tolerance
	third := &domain.Share{Percentage: dec("33.33")}
	txn.Destinations = []domain.AccountOperation{
		{AccountAlias: "@bob", ChartOfAccounts: "revenue", Share: third},
		{AccountAlias: "@carol", ChartOfAccounts: "revenue", Share: third},
		{AccountAlias: "@dave", ChartOfAccounts: "revenue", Share: third},
	}

	result := v.ValidateCalculationRequest("seg-1", "ledger-1", &txn)

	assert.True(t, result.IsValid(), "issues: %v", result.Issues)
}

func TestValidateCalculationRequest_AmountSumMismatch(t *testing.T) {
	v := services.NewRequestValidator()
	txn := validRequest()
	txn.Sources[0].Amount = dec("999")

	result := v.ValidateCalculationRequest("seg-1", "ledger-1", &txn)

	assert.False(t, result.IsValid())
	errs := result.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, domain.CodeAmountSumMismatch, errs[0].Code)
	assert.Equal(t, "transaction.source", errs[0].Field)
}

func TestValidateCalculationRequest_NegativeAmount(t *testing.T) {
	v := services.NewRequestValidator()
	txn := validRequest()
	txn.Sources[0].Amount = dec("-1000")

	result := v.ValidateCalculationRequest("seg-1", "ledger-1", &txn)

	assert.Contains(t, issueCodes(result.Errors()), domain.CodeInvalidValue)
}

func TestValidateFeeRules_PriorityOneMustReferenceOriginal(t *testing.T) {
	v := services.NewRequestValidator()
	rules := []domain.FeeRule{
		{FeeID: "fee-1", Priority: 1, ReferenceAmount: domain.ReferenceAfterFeesAmount, ApplicationRule: domain.ApplicationFlatFee},
	}

	result := v.ValidateFeeRules(rules)

	assert.False(t, result.IsValid())
	assert.Equal(t, domain.CodePriorityOneReference, result.Errors()[0].Code)
}

func TestValidateFeeRules_LaterPrioritiesMustReferenceAfterFees(t *testing.T) {
	v := services.NewRequestValidator()
	rules := []domain.FeeRule{
		{FeeID: "fee-1", Priority: 1, ReferenceAmount: domain.ReferenceOriginalAmount, ApplicationRule: domain.ApplicationFlatFee},
		{FeeID: "fee-2", Priority: 2, ReferenceAmount: domain.ReferenceOriginalAmount, ApplicationRule: domain.ApplicationFlatFee},
	}

	result := v.ValidateFeeRules(rules)

	assert.False(t, result.IsValid())
	assert.Equal(t, domain.CodePriorityReference, result.Errors()[0].Code)
}

func TestValidateFeeRules_MaxBetweenTypesRequiresBothComponents(t *testing.T) {
	v := services.NewRequestValidator()
	rules := []domain.FeeRule{
		{
			FeeID:           "fee-1",
			Priority:        1,
			ReferenceAmount: domain.ReferenceOriginalAmount,
			ApplicationRule: domain.ApplicationMaxBetweenTypes,
			Calculations:    domain.FeeCalculations{FlatAmount: decPtr("50")},
		},
	}

	result := v.ValidateFeeRules(rules)

	assert.False(t, result.IsValid())
	assert.Equal(t, domain.CodeMaxBetweenIncomplete, result.Errors()[0].Code)
}

func TestValidateFeeRules_DuplicateDeductiblePriorityIsWarning(t *testing.T) {
	v := services.NewRequestValidator()
	rules := []domain.FeeRule{
		{FeeID: "fee-1", Priority: 2, ReferenceAmount: domain.ReferenceAfterFeesAmount, ApplicationRule: domain.ApplicationFlatFee, IsDeductibleFrom: true},
		{FeeID: "fee-2", Priority: 2, ReferenceAmount: domain.ReferenceAfterFeesAmount, ApplicationRule: domain.ApplicationFlatFee, IsDeductibleFrom: true},
	}

	result := v.ValidateFeeRules(rules)

	assert.True(t, result.IsValid(), "duplicate deductible priority should not invalidate")
	require.Len(t, result.Warnings(), 1)
	assert.Equal(t, domain.CodeDuplicateFeePriority, result.Warnings()[0].Code)
}

func TestValidateFeeRules_NonPositivePriority(t *testing.T) {
	v := services.NewRequestValidator()
	rules := []domain.FeeRule{
		{FeeID: "fee-1", Priority: 0, ReferenceAmount: domain.ReferenceOriginalAmount, ApplicationRule: domain.ApplicationFlatFee},
	}

	result := v.ValidateFeeRules(rules)

	assert.False(t, result.IsValid())
	assert.Equal(t, domain.CodeInvalidValue, result.Errors()[0].Code)
}

func TestValidateBalance(t *testing.T) {
	v := services.NewRequestValidator()
	sources := []domain.AccountOperation{{AccountAlias: "@alice", Amount: dec("1000")}}
	destinations := []domain.AccountOperation{
		{AccountAlias: "@bob", Amount: dec("950")},
		{AccountAlias: "@fees", Amount: dec("50")},
	}

	assert.True(t, v.ValidateBalance(sources, destinations).IsValid())

	destinations[1].Amount = dec("49")
	result := v.ValidateBalance(sources, destinations)
	assert.False(t, result.IsValid())
	assert.Equal(t, domain.CodeUnbalancedTransaction, result.Errors()[0].Code)
}

func TestCalculateMaxBetweenTypes(t *testing.T) {
	tests := []struct {
		name      string
		flat      string
		percent   string
		reference string
		expected  string
	}{
		{"flat wins", "50", "1", "1000", "50"},
		{"percentage wins", "5", "10", "1000", "100"},
		{"tie resolves to flat", "10", "1", "1000", "10"},
		{"zero reference", "25", "3", "0", "25"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := services.CalculateMaxBetweenTypes(dec(tc.flat), dec(tc.percent), dec(tc.reference))
			assert.True(t, got.Equal(dec(tc.expected)), "got %s, want %s", got, tc.expected)
		})
	}
}

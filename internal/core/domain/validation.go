package domain

// Severity classifies a validation issue. Errors block processing;
// warnings are logged and carried through.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Stable validation issue codes. The console keys translations and UI
// treatment off these, so they must not change between releases.
const (
	CodeMissingField           = "MISSING_FIELD"
	CodeInvalidValue           = "INVALID_VALUE"
	CodeAssetMismatch          = "ASSET_MISMATCH"
	CodeShareSumInvalid        = "SHARE_SUM_INVALID"
	CodeAmountSumMismatch      = "AMOUNT_SUM_MISMATCH"
	CodeUnbalancedTransaction  = "UNBALANCED_TRANSACTION"
	CodePriorityOneReference   = "PRIORITY_ONE_REFERENCE"
	CodePriorityReference      = "PRIORITY_REFERENCE"
	CodeMaxBetweenIncomplete   = "MAX_BETWEEN_TYPES_INCOMPLETE"
	CodeDuplicateFeePriority   = "DUPLICATE_FEE_PRIORITY"
	CodeInvalidFeeOperation    = "INVALID_FEE_OPERATION"
	CodeNegativeRedistribution = "NEGATIVE_REDISTRIBUTION"
)

// ValidationIssue is one finding of the business rule validator.
type ValidationIssue struct {
	Code     string   `json:"code"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationResult aggregates the issues of one validation pass.
type ValidationResult struct {
	Issues []ValidationIssue `json:"issues"`
}

// IsValid reports whether no error-severity issue was found. Warnings do not
// invalidate the result.
func (r ValidationResult) IsValid() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns only the error-severity issues.
func (r ValidationResult) Errors() []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

// Warnings returns only the warning-severity issues.
func (r ValidationResult) Warnings() []ValidationIssue {
	var out []ValidationIssue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			out = append(out, issue)
		}
	}
	return out
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(code, field, message string) {
	r.Issues = append(r.Issues, ValidationIssue{Code: code, Field: field, Message: message, Severity: SeverityError})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(code, field, message string) {
	r.Issues = append(r.Issues, ValidationIssue{Code: code, Field: field, Message: message, Severity: SeverityWarning})
}

package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OperationKind discriminates principal money movements from fee lines.
// The fee engine marks fee operations with metadata flags; those flags are
// folded into this field at the adapter boundary so the rest of the pipeline
// never has to sniff metadata shapes.
type OperationKind string

const (
	KindPrincipal OperationKind = "PRINCIPAL"
	KindFee       OperationKind = "FEE"
)

// Share is a percentage-based representation of an account's portion of the
// transaction total, used by the fee engine instead of explicit amounts.
type Share struct {
	Percentage decimal.Decimal `json:"percentage"`
}

// AccountOperation is one source or destination entry of a transaction.
type AccountOperation struct {
	AccountAlias    string          `json:"accountAlias"`
	Amount          decimal.Decimal `json:"amount"`
	Asset           string          `json:"asset"`
	ChartOfAccounts string          `json:"chartOfAccounts"`
	Description     string          `json:"description,omitempty"`
	Kind            OperationKind   `json:"kind"`
	Share           *Share          `json:"share,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`

	// Reconciliation markers. OriginalIndex and IsDuplicate are set by the
	// structure-preserving reconciler so N:N relationships survive; IsMerged
	// and MergedFeeAmount track fee lines folded into an ordinary entry.
	OriginalIndex   int             `json:"originalIndex,omitempty"`
	IsDuplicate     bool            `json:"isDuplicate,omitempty"`
	IsMerged        bool            `json:"isMerged,omitempty"`
	MergedFeeAmount decimal.Decimal `json:"mergedFeeAmount,omitempty"`
}

// NormalizedAlias strips a leading '@' sigil so aliases compare consistently
// regardless of which side of the wire they came from.
func NormalizedAlias(alias string) string {
	return strings.TrimPrefix(alias, "@")
}

// SameAccount reports whether two aliases refer to the same account,
// tolerating a leading '@' on either side.
func SameAccount(a, b string) bool {
	return NormalizedAlias(a) == NormalizedAlias(b)
}

// TransactionRequest is the console's transaction representation entering the
// fee pipeline. Invariant: sum(source amounts) == sum(destination amounts) ==
// Value, within BalanceTolerance.
type TransactionRequest struct {
	Description          string             `json:"description"`
	ChartOfAccountsGroup string             `json:"chartOfAccountsGroupName"`
	Value                decimal.Decimal    `json:"value"`
	Asset                string             `json:"asset"`
	Sources              []AccountOperation `json:"source"`
	Destinations         []AccountOperation `json:"destination"`
	Metadata             map[string]any     `json:"metadata,omitempty"`
}

// SegmentIDFromMetadata returns the segment ID carried in the transaction
// metadata, if any.
func (t TransactionRequest) SegmentIDFromMetadata() string {
	if t.Metadata == nil {
		return ""
	}
	if s, ok := t.Metadata["segmentId"].(string); ok {
		return s
	}
	return ""
}

// KnownAccounts returns the set of normalized aliases appearing on either
// side of the request. Used to detect engine fee lines impersonating
// transaction accounts.
func (t TransactionRequest) KnownAccounts() map[string]bool {
	known := make(map[string]bool, len(t.Sources)+len(t.Destinations))
	for _, op := range t.Sources {
		known[NormalizedAlias(op.AccountAlias)] = true
	}
	for _, op := range t.Destinations {
		known[NormalizedAlias(op.AccountAlias)] = true
	}
	return known
}

// BalanceTolerance is the maximum acceptable absolute difference when
// comparing monetary totals. Carried over from the console's $0.01 tolerance;
// do not change without product sign-off.
var BalanceTolerance = decimal.New(1, -2)

// WithinTolerance reports whether two amounts are equal within BalanceTolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(BalanceTolerance)
}

// SumAmounts adds up the amounts of the given operations.
func SumAmounts(ops []AccountOperation) decimal.Decimal {
	total := decimal.Zero
	for _, op := range ops {
		total = total.Add(op.Amount)
	}
	return total
}

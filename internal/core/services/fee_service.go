package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ledgerconsole/fee_gateway/internal/apperrors"
	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	portssvc "github.com/ledgerconsole/fee_gateway/internal/core/ports/services"
	"github.com/ledgerconsole/fee_gateway/internal/dto"
	"github.com/ledgerconsole/fee_gateway/internal/platform/cache"
	"github.com/ledgerconsole/fee_gateway/internal/platform/config"
	"github.com/ledgerconsole/fee_gateway/internal/utils/pagination"
)

// ValidationFailedError carries the full validation result across the
// service boundary so the handler can surface every finding, not just the
// first. It unwraps to apperrors.ErrValidation.
type ValidationFailedError struct {
	Result domain.ValidationResult
}

func (e *ValidationFailedError) Error() string {
	errs := e.Result.Errors()
	messages := make([]string, len(errs))
	for i, issue := range errs {
		messages[i] = issue.Message
	}
	return "request validation failed: " + strings.Join(messages, "; ")
}

func (e *ValidationFailedError) Unwrap() error {
	return apperrors.ErrValidation
}

// feeService orchestrates the fee pipeline: validate, transform, call the
// engine through the resilience layer, reconcile, extract display state.
type feeService struct {
	cfg          *config.Config
	engine       portssvc.FeeEngineSvcFacade
	validator    *RequestValidator
	transformer  *FormatTransformer
	reconciler   *ResponseReconciler
	extractor    *FeeStateExtractor
	packageCache *cache.FeePackageCache
	logger       *slog.Logger
}

// NewFeeService creates the fee calculation service. The package cache is
// injected so tests and tenants get isolated instances.
func NewFeeService(cfg *config.Config, engine portssvc.FeeEngineSvcFacade, packageCache *cache.FeePackageCache, logger *slog.Logger) portssvc.FeeCalculationSvcFacade {
	if logger == nil {
		logger = slog.Default()
	}
	validator := NewRequestValidator()
	return &feeService{
		cfg:          cfg,
		engine:       engine,
		validator:    validator,
		transformer:  NewFormatTransformer(logger),
		reconciler:   NewResponseReconciler(validator, logger),
		extractor:    NewFeeStateExtractor(logger),
		packageCache: packageCache,
		logger:       logger,
	}
}

// Ensure feeService implements the facade.
var _ portssvc.FeeCalculationSvcFacade = (*feeService)(nil)

// CalculateFees runs the full pipeline. Engine failures degrade to a
// without-fees response: the product decision is to trade correctness-with-
// fees for availability-without-fees, so the transaction can still be
// created. Validation errors, configuration errors and reconciliation
// invariant violations abort.
func (s *feeService) CalculateFees(ctx context.Context, orgID, ledgerID string, req dto.CalculateFeesRequest) (*dto.CalculateFeesResponse, error) {
	if !s.cfg.FeesEnabled {
		return nil, fmt.Errorf("%w: fee calculation is disabled", apperrors.ErrFeeConfiguration)
	}

	txn := req.ToDomain()
	segmentID := req.SegmentID
	if segmentID == "" {
		segmentID = txn.SegmentIDFromMetadata()
	}

	if result := s.validator.ValidateCalculationRequest(segmentID, ledgerID, &txn); !result.IsValid() {
		return nil, &ValidationFailedError{Result: result}
	}

	engineReq, err := s.transformer.ToEngineFormat(txn, ledgerID, segmentID)
	if err != nil {
		return nil, err
	}

	outcome, err := s.engine.Calculate(ctx, orgID, engineReq)
	if err != nil {
		if errors.Is(err, apperrors.ErrFeeConfiguration) {
			return nil, err
		}
		s.logger.Warn("fee engine call failed, returning transaction without fees",
			slog.String("ledger_id", ledgerID),
			slog.String("error", err.Error()))
		return &dto.CalculateFeesResponse{
			Transaction: txn,
			FeesApplied: false,
			WithoutFees: true,
			Message:     "fee calculation unavailable, transaction returned without fees",
		}, nil
	}

	resp := s.transformer.ToConsoleFormat(outcome, txn)
	if outcome.Kind != domain.OutcomeSuccess {
		return resp, nil
	}

	reconciled, warnings, err := s.reconcile(resp.Transaction, txn, resp.FeeRules)
	if err != nil {
		return nil, err
	}
	resp.Transaction = reconciled
	resp.Warnings = warnings

	state, err := s.extractor.Extract(outcome, reconciled, txn, resp.FeeRules)
	if err != nil {
		return nil, err
	}
	resp.State = state

	return resp, nil
}

// reconcile picks the variant by a pure predicate over operation counts:
// genuine N:N transactions keep their structure, everything else is merged
// and healed.
func (s *feeService) reconcile(txn, original domain.TransactionRequest, rules []domain.FeeRule) (domain.TransactionRequest, []domain.ValidationIssue, error) {
	if s.reconciler.IsMultiParty(txn) {
		return s.reconciler.ReconcilePreservingStructure(txn, original, rules)
	}
	return s.reconciler.Reconcile(txn, original, rules)
}

// ValidateRequest runs the business rule validator only.
func (s *feeService) ValidateRequest(ctx context.Context, req dto.CalculateFeesRequest) domain.ValidationResult {
	txn := req.ToDomain()
	segmentID := req.SegmentID
	if segmentID == "" {
		segmentID = txn.SegmentIDFromMetadata()
	}
	// Ledger ID arrives via the URL on the calculate route; the validate
	// endpoint checks the body only.
	result := s.validator.ValidateCalculationRequest(segmentID, "-", &txn)
	return result
}

// ServiceStatus composes the three availability checks: feature flag, base
// URL configuration, and engine health.
func (s *feeService) ServiceStatus(ctx context.Context, orgID string) dto.ServiceStatusResponse {
	status := dto.ServiceStatusResponse{
		Enabled:    s.cfg.FeesEnabled,
		Configured: s.cfg.FeeEngineBaseURL != "",
	}

	switch {
	case !status.Enabled:
		status.Detail = "fee calculation is disabled"
	case !status.Configured:
		status.Detail = "fee engine base URL is not configured"
	default:
		if err := s.engine.Health(ctx); err != nil {
			status.Detail = fmt.Sprintf("fee engine health check failed: %s", err)
		} else {
			status.EngineHealthy = true
		}
	}

	status.Available = status.Enabled && status.Configured && status.EngineHealthy
	return status
}

// GetFeePackage returns the fee package, consulting the cache first. The
// cache key carries the organization so tenants never share entries.
func (s *feeService) GetFeePackage(ctx context.Context, orgID, packageID string) (*domain.FeePackage, error) {
	key := orgID + ":" + packageID
	if pkg := s.packageCache.Get(key); pkg != nil {
		s.logger.Debug("fee package cache hit", slog.String("package_id", packageID))
		return pkg, nil
	}

	pkg, err := s.engine.FetchPackage(ctx, orgID, packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, nil
	}

	s.packageCache.Set(key, pkg)
	return pkg, nil
}

// ListFeePackages pages through the engine's package listing. The engine
// endpoint is unpaginated, so pages are cut locally over a stable package ID
// ordering, with an opaque token marking the cut point.
func (s *feeService) ListFeePackages(ctx context.Context, orgID string, limit int, nextToken *string) (*dto.ListFeePackagesResponse, error) {
	packages, err := s.engine.ListPackages(ctx, orgID)
	if err != nil {
		return nil, err
	}

	sort.Slice(packages, func(i, j int) bool {
		return packages[i].PackageID < packages[j].PackageID
	})

	start := 0
	if nextToken != nil && *nextToken != "" {
		fields, err := pagination.DecodeMultiFieldToken(*nextToken)
		if err != nil || len(fields) != 1 {
			return nil, fmt.Errorf("%w: invalid pagination token", apperrors.ErrValidation)
		}
		afterID := fields[0]
		for i, pkg := range packages {
			if pkg.PackageID > afterID {
				start = i
				break
			}
			start = len(packages)
		}
	}

	if limit <= 0 {
		limit = 20
	}
	end := start + limit
	if end > len(packages) {
		end = len(packages)
	}

	resp := &dto.ListFeePackagesResponse{Packages: packages[start:end]}
	if end < len(packages) && end > start {
		token := pagination.EncodeMultiFieldToken(packages[end-1].PackageID)
		resp.NextToken = &token
	}
	return resp, nil
}

// ClearPackageCache empties the fee package cache.
func (s *feeService) ClearPackageCache(ctx context.Context) {
	s.packageCache.Clear()
	s.logger.Info("fee package cache cleared")
}

package services

import (
	"context"

	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/ledgerconsole/fee_gateway/internal/dto"
)

// FeeCalculationSvcFacade is the inbound port of the fee pipeline, consumed
// by the handler layer.
type FeeCalculationSvcFacade interface {
	// CalculateFees runs the full pipeline: validate, transform, call the
	// engine, reconcile, extract state. Engine failures degrade to a
	// without-fees response instead of erroring.
	CalculateFees(ctx context.Context, orgID, ledgerID string, req dto.CalculateFeesRequest) (*dto.CalculateFeesResponse, error)

	// ValidateRequest runs the business rule validator only.
	ValidateRequest(ctx context.Context, req dto.CalculateFeesRequest) domain.ValidationResult

	// ServiceStatus reports whether fee calculation is currently usable.
	ServiceStatus(ctx context.Context, orgID string) dto.ServiceStatusResponse

	// GetFeePackage returns the fee package details, consulting the cache
	// first. A nil package with nil error means the engine reported 404.
	GetFeePackage(ctx context.Context, orgID, packageID string) (*domain.FeePackage, error)

	// ListFeePackages returns one page of fee packages.
	ListFeePackages(ctx context.Context, orgID string, limit int, nextToken *string) (*dto.ListFeePackagesResponse, error)

	// ClearPackageCache empties the fee package cache.
	ClearPackageCache(ctx context.Context)
}

// FeeEngineSvcFacade is the outbound port to the external fee engine,
// implemented by the HTTP adapter.
type FeeEngineSvcFacade interface {
	// Calculate POSTs the engine request and decodes the response union
	// into a tagged outcome.
	Calculate(ctx context.Context, orgID string, req dto.EngineRequest) (domain.EngineOutcome, error)

	// FetchPackage GETs fee package details. Returns (nil, nil) on 404.
	FetchPackage(ctx context.Context, orgID, packageID string) (*domain.FeePackage, error)

	// ListPackages GETs all fee packages visible to the organization.
	ListPackages(ctx context.Context, orgID string) ([]domain.FeePackage, error)

	// Health probes the engine's health endpoint.
	Health(ctx context.Context) error
}

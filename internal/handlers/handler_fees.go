package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ledgerconsole/fee_gateway/internal/apperrors"
	portssvc "github.com/ledgerconsole/fee_gateway/internal/core/ports/services"
	"github.com/ledgerconsole/fee_gateway/internal/core/services"
	"github.com/ledgerconsole/fee_gateway/internal/dto"
	"github.com/ledgerconsole/fee_gateway/internal/middleware"
)

// feeHandler handles HTTP requests for the fee pipeline.
type feeHandler struct {
	feeService portssvc.FeeCalculationSvcFacade
}

// newFeeHandler creates a new feeHandler.
func newFeeHandler(feeService portssvc.FeeCalculationSvcFacade) *feeHandler {
	return &feeHandler{feeService: feeService}
}

// calculateFees runs the full fee pipeline for a transaction request and
// returns the reconciled transaction with its fee summary.
func (h *feeHandler) calculateFees(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	ledgerID := c.Param("ledgerID")

	req := dto.CalculateFeesRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Failed to bind JSON for calculateFees", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	orgID, ok := middleware.GetOrgIDFromContext(c.Request.Context())
	if !ok {
		logger.Error("Organization ID not found in context")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Organization ID is required"})
		return
	}

	logger = logger.With(slog.String("ledger_id", ledgerID), slog.String("organization_id", orgID))

	resp, err := h.feeService.CalculateFees(c.Request.Context(), orgID, ledgerID, req)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	if resp.WithoutFees {
		logger.Warn("Fee calculation degraded, transaction returned without fees")
	} else {
		logger.Info("Fee calculation completed", slog.Bool("fees_applied", resp.FeesApplied))
	}
	c.JSON(http.StatusOK, resp)
}

// validateRequest runs the business rule validator without calling the engine.
func (h *feeHandler) validateRequest(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	req := dto.CalculateFeesRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Failed to bind JSON for validateRequest", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	result := h.feeService.ValidateRequest(c.Request.Context(), req)
	c.JSON(http.StatusOK, dto.ValidateRequestResponse{
		IsValid: result.IsValid(),
		Issues:  result.Issues,
	})
}

// getFeePackage returns fee package details, served from cache when fresh.
func (h *feeHandler) getFeePackage(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	packageID := c.Param("packageID")

	orgID, _ := middleware.GetOrgIDFromContext(c.Request.Context())

	pkg, err := h.feeService.GetFeePackage(c.Request.Context(), orgID, packageID)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}
	if pkg == nil {
		logger.Warn("Fee package not found", slog.String("package_id", packageID))
		c.JSON(http.StatusNotFound, gin.H{"error": "Fee package not found"})
		return
	}

	c.JSON(http.StatusOK, pkg)
}

// listFeePackages returns one page of fee packages.
func (h *feeHandler) listFeePackages(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	orgID, _ := middleware.GetOrgIDFromContext(c.Request.Context())

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}
	var nextToken *string
	if raw := c.Query("nextToken"); raw != "" {
		nextToken = &raw
	}

	resp, err := h.feeService.ListFeePackages(c.Request.Context(), orgID, limit, nextToken)
	if err != nil {
		h.respondError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// clearPackageCache empties the fee package cache.
func (h *feeHandler) clearPackageCache(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	h.feeService.ClearPackageCache(c.Request.Context())
	logger.Info("Fee package cache cleared via API")
	c.Status(http.StatusNoContent)
}

// serviceStatus reports whether fee calculation is currently usable.
func (h *feeHandler) serviceStatus(c *gin.Context) {
	orgID, _ := middleware.GetOrgIDFromContext(c.Request.Context())
	status := h.feeService.ServiceStatus(c.Request.Context(), orgID)
	c.JSON(http.StatusOK, status)
}

// respondError maps pipeline errors onto HTTP statuses per the error
// taxonomy: validation and configuration problems are the caller's to fix,
// breaker-open maps to 503 so the console can degrade gracefully, engine
// statuses pass through, and reconciliation violations are internal.
func (h *feeHandler) respondError(c *gin.Context, logger *slog.Logger, err error) {
	var validationErr *services.ValidationFailedError
	if errors.As(err, &validationErr) {
		logger.Warn("Validation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Request validation failed",
			"issues": validationErr.Result.Issues,
		})
		return
	}

	var svcErr *apperrors.FeeServiceError
	switch {
	case errors.Is(err, apperrors.ErrMissingSegment):
		logger.Warn("Missing segment ID", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrFeeConfiguration):
		logger.Error("Fee configuration error", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrFeeServiceUnavailable):
		logger.Warn("Fee service unavailable", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Fee service is temporarily unavailable"})
	case errors.As(err, &svcErr):
		logger.Error("Fee engine error", slog.Int("status", svcErr.StatusCode), slog.String("error", err.Error()))
		status := svcErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrReconciliation):
		logger.Error("Fee reconciliation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		logger.Error("Fee calculation failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Fee calculation failed"})
	}
}

package feeengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ledgerconsole/fee_gateway/internal/apperrors"
	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	portssvc "github.com/ledgerconsole/fee_gateway/internal/core/ports/services"
	"github.com/ledgerconsole/fee_gateway/internal/dto"
	"github.com/ledgerconsole/fee_gateway/internal/platform/config"
	"github.com/sony/gobreaker"
)

// orgHeader identifies the calling organization on every engine request.
const orgHeader = "X-Organization-Id"

// Client talks to the external fee engine over HTTP. Every call runs inside
// a circuit breaker; transient failures are retried with exponential backoff
// inside the breaker so the breaker counts one failure per exhausted call,
// not per attempt.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	packageBaseURL string
	breaker        *gobreaker.CircuitBreaker

	maxAttempts    int
	initialBackoff time.Duration
	backoffFactor  int
	maxBackoff     time.Duration

	logger *slog.Logger
}

// Ensure Client implements the fee engine port.
var _ portssvc.FeeEngineSvcFacade = (*Client)(nil)

// NewClient creates a fee engine client from the application configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:    "fee-engine",
		Timeout: cfg.BreakerRecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A definitive 4xx is the engine answering, not failing: a 404
		// package lookup or a 422 on calculate must not accumulate towards
		// opening the breaker and taking down the whole integration.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var svcErr *apperrors.FeeServiceError
			return errors.As(err, &svcErr) && svcErr.StatusCode < 500
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &Client{
		httpClient:     &http.Client{Timeout: cfg.EngineRequestTimeout},
		baseURL:        cfg.FeeEngineBaseURL,
		packageBaseURL: cfg.FeePackageBaseURL,
		breaker:        gobreaker.NewCircuitBreaker(settings),
		maxAttempts:    cfg.RetryMaxAttempts,
		initialBackoff: cfg.RetryInitialBackoff,
		backoffFactor:  cfg.RetryBackoffFactor,
		maxBackoff:     cfg.RetryMaxBackoff,
		logger:         logger,
	}
}

// Calculate POSTs the engine request and decodes the response union into a
// tagged outcome.
func (c *Client) Calculate(ctx context.Context, orgID string, req dto.EngineRequest) (domain.EngineOutcome, error) {
	if c.baseURL == "" {
		return domain.EngineOutcome{}, fmt.Errorf("%w: fee engine base URL is not configured", apperrors.ErrFeeConfiguration)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.EngineOutcome{}, fmt.Errorf("failed to encode engine request: %w", err)
	}

	raw, err := c.execute(ctx, http.MethodPost, c.baseURL+"/api/fees/calculate", orgID, body)
	if err != nil {
		return domain.EngineOutcome{}, err
	}

	var engineResp dto.RawEngineResponse
	if err := json.Unmarshal(raw, &engineResp); err != nil {
		return domain.EngineOutcome{}, fmt.Errorf("failed to decode engine response: %w", err)
	}

	return c.decodeOutcome(engineResp), nil
}

// FetchPackage GETs fee package details. A 404 means the package does not
// exist and returns (nil, nil); any other non-OK status is an error.
func (c *Client) FetchPackage(ctx context.Context, orgID, packageID string) (*domain.FeePackage, error) {
	if c.packageBaseURL == "" {
		return nil, fmt.Errorf("%w: fee package base URL is not configured", apperrors.ErrFeeConfiguration)
	}

	raw, err := c.execute(ctx, http.MethodGet, c.packageBaseURL+"/api/fees/packages/"+packageID, orgID, nil)
	if err != nil {
		var svcErr *apperrors.FeeServiceError
		if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	var pkg domain.FeePackage
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return nil, fmt.Errorf("failed to decode fee package: %w", err)
	}
	return &pkg, nil
}

// ListPackages GETs all fee packages visible to the organization.
func (c *Client) ListPackages(ctx context.Context, orgID string) ([]domain.FeePackage, error) {
	if c.packageBaseURL == "" {
		return nil, fmt.Errorf("%w: fee package base URL is not configured", apperrors.ErrFeeConfiguration)
	}

	raw, err := c.execute(ctx, http.MethodGet, c.packageBaseURL+"/api/fees/packages", orgID, nil)
	if err != nil {
		return nil, err
	}

	var listing struct {
		Packages []domain.FeePackage `json:"packages"`
	}
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode fee package listing: %w", err)
	}
	return listing.Packages, nil
}

// Health probes the engine's health endpoint directly, outside the breaker,
// so the status check reflects the engine rather than the breaker state.
func (c *Client) Health(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: fee engine base URL is not configured", apperrors.ErrFeeConfiguration)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fee engine health check returned status %d", resp.StatusCode)
	}
	return nil
}

// execute runs one HTTP call through the circuit breaker with retries.
func (c *Client) execute(ctx context.Context, method, url, orgID string, body []byte) ([]byte, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(ctx, method, url, orgID, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("circuit breaker open, fee engine call rejected",
				slog.String("url", url))
			return nil, apperrors.ErrFeeServiceUnavailable
		}
		return nil, err
	}
	return result.([]byte), nil
}

// doWithRetry retries transport errors and 5xx responses with exponential
// backoff. 4xx responses are the engine's final word and are not retried.
func (c *Client) doWithRetry(ctx context.Context, method, url, orgID string, body []byte) ([]byte, error) {
	attempts := c.maxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = backoff * time.Duration(c.backoffFactor)
			if c.maxBackoff > 0 && backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
		}

		raw, retryable, err := c.doOnce(ctx, method, url, orgID, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Warn("fee engine call failed, retrying",
			slog.String("url", url),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, url, orgID string, body []byte) (raw []byte, retryable bool, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(orgHeader, orgID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return raw, false, nil
	}

	var errBody dto.EngineErrorBody
	_ = json.Unmarshal(raw, &errBody)
	svcErr := &apperrors.FeeServiceError{
		StatusCode: resp.StatusCode,
		Code:       errBody.Code,
		Details:    errBody.Message,
	}
	return nil, resp.StatusCode >= 500, svcErr
}

// decodeOutcome converts the raw response union into a tagged outcome. This
// is the single place the wire shapes are discriminated.
func (c *Client) decodeOutcome(resp dto.RawEngineResponse) domain.EngineOutcome {
	if resp.Gratuity {
		return domain.EngineOutcome{Kind: domain.OutcomeGratuity, Message: resp.Message}
	}

	if isEmptyArray(resp.FeesApplied) {
		return domain.EngineOutcome{Kind: domain.OutcomeNoFees, Message: resp.Message}
	}

	if isTrue(resp.FeesApplied) && len(resp.Fees) > 0 &&
		resp.OriginalAmount != nil && resp.NetAmount != nil {
		outcome := domain.EngineOutcome{
			Kind:           domain.OutcomeSuccess,
			Message:        resp.Message,
			Fees:           toDomainFees(resp.Fees),
			OriginalAmount: *resp.OriginalAmount,
			NetAmount:      *resp.NetAmount,
			PackageID:      resp.PackageID,
			PackageLabel:   resp.PackageLabel,
		}
		if resp.TotalFees != nil {
			outcome.TotalFees = *resp.TotalFees
		}
		if resp.CalculatedAt != nil {
			outcome.CalculatedAt = *resp.CalculatedAt
		}
		if resp.Transaction != nil {
			outcome.Sources = toDomainOperations(resp.Transaction.Send.Source.From)
			outcome.Destinations = toDomainOperations(resp.Transaction.Send.Distribute.To)
		}
		return outcome
	}

	c.logger.Error("fee engine response matched no known shape",
		slog.String("message", resp.Message),
		slog.Int("fee_entries", len(resp.Fees)))
	return domain.EngineOutcome{
		Kind:    domain.OutcomeUnknown,
		Message: resp.Message,
	}
}

func isEmptyArray(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return false
	}
	return len(arr) == 0
}

func isTrue(raw json.RawMessage) bool {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

func toDomainFees(entries []dto.EngineFeeEntry) []domain.EngineFee {
	out := make([]domain.EngineFee, len(entries))
	for i, e := range entries {
		out[i] = domain.EngineFee{
			FeeID:         e.FeeID,
			FeeLabel:      e.FeeLabel,
			Amount:        e.Amount,
			Priority:      e.Priority,
			AppliedTo:     e.AppliedTo,
			CreditAccount: e.CreditAccount,
		}
	}
	return out
}

// toDomainOperations folds the engine's metadata fee markers into the
// explicit operation kind so nothing downstream has to sniff metadata.
func toDomainOperations(ops []dto.EngineOperation) []domain.AccountOperation {
	out := make([]domain.AccountOperation, len(ops))
	for i, op := range ops {
		converted := domain.AccountOperation{
			AccountAlias:    op.AccountAlias,
			ChartOfAccounts: op.ChartOfAccounts,
			Description:     op.Description,
			Kind:            domain.KindPrincipal,
			Metadata:        op.Metadata,
		}
		if op.Amount != nil {
			converted.Amount = *op.Amount
		}
		if op.Share != nil {
			converted.Share = &domain.Share{Percentage: op.Share.Percentage}
		}
		if isFeeMetadata(op.Metadata) {
			converted.Kind = domain.KindFee
		}
		out[i] = converted
	}
	return out
}

func isFeeMetadata(metadata map[string]any) bool {
	if metadata == nil {
		return false
	}
	if isFee, ok := metadata["isFee"].(bool); ok && isFee {
		return true
	}
	if src, ok := metadata["source"].(string); ok && src != "" {
		return true
	}
	return false
}

package feeengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledgerconsole/fee_gateway/internal/apperrors"
	"github.com/ledgerconsole/fee_gateway/internal/core/domain"
	"github.com/ledgerconsole/fee_gateway/internal/dto"
	"github.com/ledgerconsole/fee_gateway/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	cfg := &config.Config{
		FeeEngineBaseURL:        baseURL,
		FeePackageBaseURL:       baseURL,
		EngineRequestTimeout:    5 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialBackoff:     time.Millisecond,
		RetryBackoffFactor:      2,
		RetryMaxBackoff:         5 * time.Millisecond,
		BreakerFailureThreshold: 3,
		BreakerRecoveryTimeout:  time.Minute,
	}
	return NewClient(cfg, nil)
}

func engineRequest() dto.EngineRequest {
	return dto.EngineRequest{LedgerID: "ledger-1", SegmentID: "seg-1"}
}

func TestCalculate_SuccessShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/fees/calculate", r.URL.Path)
		assert.Equal(t, "org-1", r.Header.Get("X-Organization-Id"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"feesApplied": true,
			"fees": [
				{"feeId": "fee-1", "feeLabel": "Platform fee", "amount": "50", "priority": 1, "appliedTo": "source", "creditAccount": "@platform-fees"}
			],
			"originalAmount": "1000",
			"netAmount": "950",
			"totalFees": "50",
			"packageId": "pkg-1",
			"transaction": {
				"send": {
					"asset": "USD",
					"value": "1000",
					"source": {"from": [{"accountAlias": "@alice", "share": {"percentage": "100"}}]},
					"distribute": {"to": [
						{"accountAlias": "@bob", "share": {"percentage": "100"}},
						{"accountAlias": "@platform-fees", "amount": "50", "metadata": {"isFee": true}}
					]}
				}
			}
		}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	outcome, err := c.Calculate(context.Background(), "org-1", engineRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, outcome.Kind)
	require.Len(t, outcome.Fees, 1)
	assert.Equal(t, "fee-1", outcome.Fees[0].FeeID)
	assert.True(t, outcome.OriginalAmount.Equal(outcome.NetAmount.Add(outcome.TotalFees)))
	assert.Equal(t, "pkg-1", outcome.PackageID)

	// The metadata fee marker is folded into the operation kind.
	require.Len(t, outcome.Destinations, 2)
	assert.Equal(t, domain.KindPrincipal, outcome.Destinations[0].Kind)
	assert.Equal(t, domain.KindFee, outcome.Destinations[1].Kind)
}

func TestCalculate_NoFeesShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"feesApplied": [], "message": "no fee package matched"}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	outcome, err := c.Calculate(context.Background(), "org-1", engineRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoFees, outcome.Kind)
	assert.Equal(t, "no fee package matched", outcome.Message)
}

func TestCalculate_GratuityShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"gratuity": true, "message": "gratuity period active"}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	outcome, err := c.Calculate(context.Background(), "org-1", engineRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeGratuity, outcome.Kind)
}

func TestCalculate_UnknownShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// feesApplied true but no fee entries: matches no known shape.
		_, _ = w.Write([]byte(`{"feesApplied": true, "message": "partial response"}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	outcome, err := c.Calculate(context.Background(), "org-1", engineRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnknown, outcome.Kind)
}

func TestCalculate_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"feesApplied": [], "message": "ok"}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	outcome, err := c.Calculate(context.Background(), "org-1", engineRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNoFees, outcome.Kind)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCalculate_ClientErrorsAreFinal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code": "INVALID_SEGMENT", "message": "segment does not exist"}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	_, err := c.Calculate(context.Background(), "org-1", engineRequest())

	require.Error(t, err)
	var svcErr *apperrors.FeeServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusUnprocessableEntity, svcErr.StatusCode)
	assert.Equal(t, "INVALID_SEGMENT", svcErr.Code)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestCalculate_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := testClient(server.URL)

	// Threshold is 3: each exhausted call counts one breaker failure.
	for i := 0; i < 3; i++ {
		_, err := c.Calculate(context.Background(), "org-1", engineRequest())
		require.Error(t, err)
	}

	_, err := c.Calculate(context.Background(), "org-1", engineRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFeeServiceUnavailable)
}

func TestCalculate_ClientErrorsDoNotOpenBreaker(t *testing.T) {
	badRequest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code": "INVALID_SEGMENT"}`))
	}))
	defer badRequest.Close()

	c := testClient(badRequest.URL)

	// Well past the threshold of 3: the engine is answering, just saying no.
	for i := 0; i < 5; i++ {
		_, err := c.Calculate(context.Background(), "org-1", engineRequest())
		require.Error(t, err)
		var svcErr *apperrors.FeeServiceError
		require.ErrorAs(t, err, &svcErr, "call %d must still reach the engine", i+1)
		assert.Equal(t, http.StatusUnprocessableEntity, svcErr.StatusCode)
	}
}

func TestCalculate_UnconfiguredBaseURL(t *testing.T) {
	c := testClient("")

	_, err := c.Calculate(context.Background(), "org-1", engineRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrFeeConfiguration)
}

func TestFetchPackage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/fees/packages/pkg-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(domain.FeePackage{
			PackageID:    "pkg-1",
			PackageLabel: "Standard",
			SegmentID:    "seg-1",
			Rules: []domain.FeeRule{
				{FeeID: "fee-1", Priority: 1, ReferenceAmount: domain.ReferenceOriginalAmount},
			},
		})
	}))
	defer server.Close()

	c := testClient(server.URL)
	pkg, err := c.FetchPackage(context.Background(), "org-1", "pkg-1")

	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "pkg-1", pkg.PackageID)
	require.Len(t, pkg.Rules, 1)
}

func TestFetchPackage_NotFoundIsNilNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(server.URL)
	pkg, err := c.FetchPackage(context.Background(), "org-1", "missing")

	require.NoError(t, err)
	assert.Nil(t, pkg)
}

func TestFetchPackage_RepeatedNotFoundDoesNotOpenBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := testClient(server.URL)

	// Threshold is 3: a run of routine not-found lookups must never trip
	// the breaker and black-hole the calculate path.
	for i := 0; i < 5; i++ {
		pkg, err := c.FetchPackage(context.Background(), "org-1", "missing")
		require.NoError(t, err, "lookup %d", i+1)
		assert.Nil(t, pkg)
	}

	pkg, err := c.FetchPackage(context.Background(), "org-1", "missing")
	require.NoError(t, err, "breaker must still be closed after repeated 404s")
	assert.Nil(t, pkg)
}

func TestListPackages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/fees/packages", r.URL.Path)
		_, _ = w.Write([]byte(`{"packages": [{"packageId": "pkg-1"}, {"packageId": "pkg-2"}]}`))
	}))
	defer server.Close()

	c := testClient(server.URL)
	packages, err := c.ListPackages(context.Background(), "org-1")

	require.NoError(t, err)
	require.Len(t, packages, 2)
}

func TestHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	c := testClient(healthy.URL)
	assert.NoError(t, c.Health(context.Background()))

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	c = testClient(unhealthy.URL)
	assert.Error(t, c.Health(context.Background()))
}

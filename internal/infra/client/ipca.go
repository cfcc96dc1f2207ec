// Package client holds HTTP adapters for external services outside the
// Supabase backend.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

// IPCAClient restates historical amounts to current values using an
// external IPCA correction API. Lookups are single-shot: a failed
// correction degrades the caller's margin to nil rather than being
// retried, so stale index data never masquerades as a real number.
type IPCAClient struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewIPCAClient creates an IPCA correction client.
func NewIPCAClient(httpClient *http.Client, baseURL string, timeout time.Duration, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *IPCAClient {
	return &IPCAClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		timeout:    timeout,
		cb:         cb,
		logger:     logger,
	}
}

// ipcaResponse is the correction API's answer.
type ipcaResponse struct {
	CorrectedValue   decimal.Decimal `json:"corrected_value"`
	CorrectionFactor decimal.Decimal `json:"correction_factor"`
	ReferenceMonth   string          `json:"reference_month"`
}

// Correct restates principal from referenceDate to current values.
// A date outside the index's coverage, a timeout, or an open circuit
// all come back as *domain.ErrCorrectionUnavailable so callers can
// degrade instead of failing the whole request.
func (c *IPCAClient) Correct(ctx context.Context, principal decimal.Decimal, referenceDate time.Time) (*domain.Correction, error) {
	ctx, span := tracer.Start(ctx, "IPCA.Correct")
	defer span.End()

	refDate := referenceDate.Format("2006-01-02")
	span.SetAttributes(
		attribute.String("correction.reference_date", refDate),
		attribute.String("correction.principal", principal.String()),
	)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.cb.Execute(func() (any, error) {
		return c.fetchCorrection(ctx, principal, refDate)
	})
	if err != nil {
		var unavailable *domain.ErrCorrectionUnavailable
		if errors.As(err, &unavailable) {
			return nil, unavailable
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.ErrCorrectionUnavailable{ReferenceDate: refDate, Reason: "index service circuit open"}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &domain.ErrCorrectionUnavailable{ReferenceDate: refDate, Reason: "index lookup timed out"}
		}
		c.logger.Warn("ipca: correction lookup failed",
			zap.String("reference_date", refDate),
			zap.Error(err),
		)
		return nil, &domain.ErrExternalService{Service: "ipca", Err: err}
	}

	return result.(*domain.Correction), nil
}

func (c *IPCAClient) fetchCorrection(ctx context.Context, principal decimal.Decimal, refDate string) (*domain.Correction, error) {
	q := url.Values{}
	q.Set("value", principal.StringFixed(2))
	q.Set("from", refDate)
	reqURL := fmt.Sprintf("%s/api/ipca/correction?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		// The reference month is outside the published index series.
		return nil, &domain.ErrCorrectionUnavailable{ReferenceDate: refDate, Reason: "reference month not covered by index"}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("ipca: non-2xx response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("ipca service returned status %d", resp.StatusCode)
	}

	var out ipcaResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode correction: %w", err)
	}
	if out.CorrectionFactor.IsZero() {
		return nil, &domain.ErrCorrectionUnavailable{ReferenceDate: refDate, Reason: "index service returned empty factor"}
	}

	return &domain.Correction{
		CorrectedValue:   domain.RoundMoney(out.CorrectedValue),
		CorrectionFactor: out.CorrectionFactor,
		ReferenceMonth:   out.ReferenceMonth,
	}, nil
}

// Package supabase provides a client for the Supabase PostgREST
// backend holding the property catalog, the transaction ledger, the
// marco zero history, and the reconciliation adjustments.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	bulkhead       *resilience.Bulkhead
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 1
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		bulkhead:       resilience.NewBulkhead(maxConc),
		cfg:            cfg,
		logger:         logger,
	}
}

// doRequest executes an authenticated request to Supabase PostgREST.
// Concurrency against the backend is bounded by the bulkhead.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// --- Property catalog (implements port.PropertyStore) ---

// supabaseProperty maps the properties table columns to our domain.
type supabaseProperty struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Status           string          `json:"status"`
	AcquisitionValue decimal.Decimal `json:"acquisition_value"`
	AcquisitionCosts decimal.Decimal `json:"acquisition_costs"`
	PurchaseDate     string          `json:"purchase_date"`
}

func (r supabaseProperty) toDomain() domain.Property {
	return domain.Property{
		ID:               r.ID,
		Name:             r.Name,
		Status:           r.Status,
		AcquisitionValue: r.AcquisitionValue,
		AcquisitionCosts: r.AcquisitionCosts,
		PurchaseDate:     parseDate(r.PurchaseDate),
	}
}

// ListProperties fetches the full property catalog.
func (c *Client) ListProperties(ctx context.Context) ([]domain.Property, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProperties")
	defer span.End()

	var properties []domain.Property

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, http.MethodGet, "properties?order=name.asc")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				properties = []domain.Property{}
				return nil
			}

			var rows []supabaseProperty
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode properties: %w", err)
			}
			properties = make([]domain.Property, 0, len(rows))
			for _, r := range rows {
				properties = append(properties, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/properties", Err: err}
	}

	return properties, nil
}

// GetProperty fetches a single property by id.
func (c *Client) GetProperty(ctx context.Context, id string) (*domain.Property, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProperty")
	defer span.End()
	span.SetAttributes(attribute.String("property.id", id))

	var property *domain.Property

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("properties?id=eq.%s&limit=1", id)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				return &domain.ErrNotFound{Resource: "property", ID: id}
			}

			var rows []supabaseProperty
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode property: %w", err)
			}
			if len(rows) == 0 {
				return &domain.ErrNotFound{Resource: "property", ID: id}
			}
			p := rows[0].toDomain()
			property = &p
			return nil
		})
	})

	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &domain.ErrExternalService{Service: "supabase/properties", Err: err}
	}

	return property, nil
}

// --- Transactions (implements port.TransactionStore) ---

// supabaseTransaction maps the transactions table columns.
type supabaseTransaction struct {
	ID          string          `json:"id"`
	PropertyID  string          `json:"property_id"`
	Type        string          `json:"type"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Status      string          `json:"status"`
	Description string          `json:"description"`
}

// ListTransactions fetches transactions dated within [from, to].
func (c *Client) ListTransactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("from", from.Format("2006-01-02")),
		attribute.String("to", to.Format("2006-01-02")),
	)

	var transactions []domain.Transaction

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("transactions?date=gte.%s&date=lte.%s&order=date.asc",
				from.Format("2006-01-02"), to.Format("2006-01-02"))
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				transactions = []domain.Transaction{}
				return nil
			}

			var rows []supabaseTransaction
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode transactions: %w", err)
			}
			transactions = make([]domain.Transaction, 0, len(rows))
			for _, r := range rows {
				transactions = append(transactions, domain.Transaction{
					ID:          r.ID,
					PropertyID:  r.PropertyID,
					Type:        r.Type,
					Category:    r.Category,
					Amount:      r.Amount,
					Date:        parseDate(r.Date),
					Status:      r.Status,
					Description: r.Description,
				})
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	return transactions, nil
}

// UpdateAccountBalances is the write-through side effect of baseline
// activation: the declared balances are pushed to the account_balances
// table. Single-shot, no retry.
func (c *Client) UpdateAccountBalances(ctx context.Context, balances []domain.AccountBalance) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateAccountBalances")
	defer span.End()

	for _, b := range balances {
		err := c.doPatch(ctx, fmt.Sprintf("account_balances?account_id=eq.%s", b.AccountID), map[string]any{
			"balance":    b.Balance,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return &domain.ErrExternalService{Service: "supabase/account_balances", Err: err}
		}
	}
	return nil
}

// parseDate handles both RFC3339 timestamps and bare dates, the two
// formats PostgREST emits depending on the column type.
func parseDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02", s)
	}
	return t
}

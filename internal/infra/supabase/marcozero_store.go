package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
)

// ============================================
// Marco zero store (implements port.MarcoZeroStore)
// ============================================

// supabaseMarcoZero maps the marco_zero table. account_balances is a
// jsonb column.
type supabaseMarcoZero struct {
	ID              string                  `json:"id"`
	MarcoDate       string                  `json:"marco_date"`
	AccountBalances []domain.AccountBalance `json:"account_balances"`
	TotalBalance    decimal.Decimal         `json:"total_balance"`
	Notes           string                  `json:"notes"`
	IsActive        bool                    `json:"is_active"`
	CreatedAt       string                  `json:"created_at"`
}

func (r supabaseMarcoZero) toDomain() domain.MarcoZero {
	return domain.MarcoZero{
		ID:              r.ID,
		MarcoDate:       parseDate(r.MarcoDate),
		AccountBalances: r.AccountBalances,
		TotalBalance:    r.TotalBalance,
		Notes:           r.Notes,
		IsActive:        r.IsActive,
		CreatedAt:       parseDate(r.CreatedAt),
	}
}

// GetActive returns the single active baseline, or nil when none has
// been declared yet.
func (c *Client) GetActive(ctx context.Context) (*domain.MarcoZero, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetActiveMarcoZero")
	defer span.End()

	var baseline *domain.MarcoZero

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, "GET", "marco_zero?is_active=eq.true&limit=1")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				baseline = nil
				return nil
			}

			var rows []supabaseMarcoZero
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode marco zero: %w", err)
			}
			if len(rows) == 0 {
				baseline = nil
				return nil
			}
			mz := rows[0].toDomain()
			baseline = &mz
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/marco_zero", Err: err}
	}

	return baseline, nil
}

// ListHistory returns all baselines ever declared, newest first.
func (c *Client) ListHistory(ctx context.Context) ([]domain.MarcoZero, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListMarcoZeroHistory")
	defer span.End()

	var history []domain.MarcoZero

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, "GET", "marco_zero?order=created_at.desc")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				history = []domain.MarcoZero{}
				return nil
			}

			var rows []supabaseMarcoZero
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode marco zero history: %w", err)
			}
			history = make([]domain.MarcoZero, 0, len(rows))
			for _, r := range rows {
				history = append(history, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/marco_zero", Err: err}
	}

	return history, nil
}

// Activate swaps the active baseline via the activate_marco_zero
// stored procedure, which deactivates the previous one and inserts the
// new row in a single SQL transaction. Single-shot, no retry.
func (c *Client) Activate(ctx context.Context, baseline *domain.MarcoZero) (*domain.MarcoZero, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ActivateMarcoZero")
	defer span.End()

	payload := map[string]any{
		"p_id":               baseline.ID,
		"p_marco_date":       baseline.MarcoDate.Format("2006-01-02"),
		"p_account_balances": baseline.AccountBalances,
		"p_total_balance":    baseline.TotalBalance,
		"p_notes":            baseline.Notes,
	}

	result, err := c.cb.Execute(func() (any, error) {
		return c.doRPC(ctx, "activate_marco_zero", payload)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/marco_zero", Err: err}
	}

	body, _ := result.([]byte)
	if len(body) == 0 {
		// Function returned void; echo back what we sent.
		activated := *baseline
		activated.IsActive = true
		activated.CreatedAt = time.Now().UTC()
		return &activated, nil
	}

	var row supabaseMarcoZero
	if err := json.Unmarshal(body, &row); err != nil {
		// Some PostgREST versions wrap set-returning functions in an array.
		var rows []supabaseMarcoZero
		if err2 := json.Unmarshal(body, &rows); err2 != nil || len(rows) == 0 {
			return nil, &domain.ErrExternalService{
				Service: "supabase/marco_zero",
				Err:     fmt.Errorf("failed to decode activation result: %w", err),
			}
		}
		row = rows[0]
	}
	mz := row.toDomain()
	return &mz, nil
}

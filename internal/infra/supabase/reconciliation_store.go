package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================
// Reconciliation store (implements port.ReconciliationStore)
// ============================================

// supabaseAdjustment maps the reconciliation_adjustments table.
type supabaseAdjustment struct {
	ID             string          `json:"id"`
	AdjustmentDate string          `json:"adjustment_date"`
	Amount         decimal.Decimal `json:"amount"`
	Type           string          `json:"type"`
	Description    string          `json:"description"`
	AccountID      string          `json:"account_id"`
	MarcoZeroID    string          `json:"marco_zero_id"`
	CreatedAt      string          `json:"created_at"`
}

func (r supabaseAdjustment) toDomain() domain.Adjustment {
	return domain.Adjustment{
		ID:             r.ID,
		AdjustmentDate: parseDate(r.AdjustmentDate),
		Amount:         r.Amount,
		Type:           r.Type,
		Description:    r.Description,
		AccountID:      r.AccountID,
		MarcoZeroID:    r.MarcoZeroID,
		CreatedAt:      parseDate(r.CreatedAt),
	}
}

// InsertAdjustment persists a new adjustment. Single-shot, no retry.
func (c *Client) InsertAdjustment(ctx context.Context, adj *domain.Adjustment) (*domain.Adjustment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertAdjustment")
	defer span.End()
	span.SetAttributes(attribute.String("adjustment.type", adj.Type))

	payload := map[string]any{
		"id":              adj.ID,
		"adjustment_date": adj.AdjustmentDate.Format("2006-01-02"),
		"amount":          adj.Amount,
		"type":            adj.Type,
		"description":     adj.Description,
	}
	if adj.AccountID != "" {
		payload["account_id"] = adj.AccountID
	}
	if adj.MarcoZeroID != "" {
		payload["marco_zero_id"] = adj.MarcoZeroID
	}

	result, err := c.cb.Execute(func() (any, error) {
		return c.doPost(ctx, "reconciliation_adjustments", payload)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/reconciliation", Err: err}
	}

	body, _ := result.([]byte)
	var rows []supabaseAdjustment
	if err := json.Unmarshal(body, &rows); err != nil || len(rows) == 0 {
		// Representation missing; trust the write and echo the input.
		return adj, nil
	}
	created := rows[0].toDomain()
	return &created, nil
}

// ListAdjustments returns all adjustments ordered by adjustment date.
func (c *Client) ListAdjustments(ctx context.Context) ([]domain.Adjustment, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListAdjustments")
	defer span.End()

	var adjustments []domain.Adjustment

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doRequest(ctx, "GET", "reconciliation_adjustments?order=adjustment_date.asc,created_at.asc")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				adjustments = []domain.Adjustment{}
				return nil
			}

			var rows []supabaseAdjustment
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode adjustments: %w", err)
			}
			adjustments = make([]domain.Adjustment, 0, len(rows))
			for _, r := range rows {
				adjustments = append(adjustments, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/reconciliation", Err: err}
	}

	return adjustments, nil
}

// DeleteAdjustment removes an adjustment by id. The representation of
// the deleted rows tells a hit from a miss: an empty array means the
// id never existed.
func (c *Client) DeleteAdjustment(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteAdjustment")
	defer span.End()
	span.SetAttributes(attribute.String("adjustment.id", id))

	result, err := c.cb.Execute(func() (any, error) {
		return c.doDelete(ctx, fmt.Sprintf("reconciliation_adjustments?id=eq.%s", id))
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/reconciliation", Err: err}
	}

	body, _ := result.([]byte)
	if len(body) == 0 || string(body) == "[]" {
		return &domain.ErrNotFound{Resource: "adjustment", ID: id}
	}
	return nil
}

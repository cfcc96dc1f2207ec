package service

import (
	"context"
	"strings"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// minDescriptionLen guards against uninformative adjustment entries.
const minDescriptionLen = 10

// ReconciliationService manages the manual adjustment ledger. There is
// no update-in-place: a correction is a delete followed by a new entry.
type ReconciliationService struct {
	store  port.ReconciliationStore
	logger *zap.Logger
}

// NewReconciliationService creates the reconciliation ledger service.
func NewReconciliationService(store port.ReconciliationStore, logger *zap.Logger) *ReconciliationService {
	return &ReconciliationService{store: store, logger: logger}
}

// Create validates and inserts a new adjustment. asOf bounds the
// adjustment date: entries dated in the future are rejected.
func (s *ReconciliationService) Create(ctx context.Context, req *domain.CreateAdjustmentRequest, asOf time.Time) (*domain.Adjustment, error) {
	ctx, span := svcTracer.Start(ctx, "ReconciliationService.Create")
	defer span.End()

	adjDate, err := time.Parse("2006-01-02", req.AdjustmentDate)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "adjustmentDate", Message: "expected YYYY-MM-DD"}
	}
	today := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	if adjDate.After(today) {
		return nil, &domain.ErrValidation{Field: "adjustmentDate", Message: "must not be in the future"}
	}
	if req.Amount.IsZero() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be non-zero"}
	}
	if strings.TrimSpace(req.Type) == "" {
		return nil, &domain.ErrValidation{Field: "type", Message: "required"}
	}
	desc := strings.TrimSpace(req.Description)
	if len([]rune(desc)) < minDescriptionLen {
		return nil, &domain.ErrValidation{Field: "description", Message: "must be at least 10 characters"}
	}

	adj := &domain.Adjustment{
		ID:             uuid.NewString(),
		AdjustmentDate: adjDate,
		Amount:         domain.RoundMoney(req.Amount),
		Type:           req.Type,
		Description:    desc,
		AccountID:      req.AccountID,
		MarcoZeroID:    req.MarcoZeroID,
		CreatedAt:      time.Now().UTC(),
	}

	created, err := s.store.InsertAdjustment(ctx, adj)
	if err != nil {
		return nil, err
	}
	s.logger.Info("reconciliation adjustment created",
		zap.String("adjustment_id", created.ID),
		zap.String("type", created.Type),
		zap.String("amount", created.Amount.String()),
	)
	return created, nil
}

// List returns all adjustments, independent of any baseline. Baseline
// linkage is informational: the aggregation engine applies every
// adjustment from its date forward.
func (s *ReconciliationService) List(ctx context.Context) ([]domain.Adjustment, error) {
	ctx, span := svcTracer.Start(ctx, "ReconciliationService.List")
	defer span.End()

	return s.store.ListAdjustments(ctx)
}

// Delete removes an adjustment. Deleting an unknown id is ErrNotFound,
// not a silent success.
func (s *ReconciliationService) Delete(ctx context.Context, id string) error {
	ctx, span := svcTracer.Start(ctx, "ReconciliationService.Delete")
	defer span.End()

	if err := s.store.DeleteAdjustment(ctx, id); err != nil {
		return err
	}
	s.logger.Info("reconciliation adjustment deleted", zap.String("adjustment_id", id))
	return nil
}

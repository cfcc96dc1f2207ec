package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockReconciliationStore struct {
	adjustments []domain.Adjustment
	err         error
}

func (m *mockReconciliationStore) InsertAdjustment(_ context.Context, adj *domain.Adjustment) (*domain.Adjustment, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.adjustments = append(m.adjustments, *adj)
	return adj, nil
}

func (m *mockReconciliationStore) ListAdjustments(_ context.Context) ([]domain.Adjustment, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.adjustments, nil
}

func (m *mockReconciliationStore) DeleteAdjustment(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	for i, adj := range m.adjustments {
		if adj.ID == id {
			m.adjustments = append(m.adjustments[:i], m.adjustments[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "adjustment", ID: id}
}

var asOf = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func validAdjustmentRequest() *domain.CreateAdjustmentRequest {
	return &domain.CreateAdjustmentRequest{
		AdjustmentDate: "2025-03-10",
		Amount:         dec("-15.905"),
		Type:           "bank_fee",
		Description:    "tarifa de manutenção de conta",
	}
}

// --- Tests ---

func TestCreateAdjustment_Success(t *testing.T) {
	store := &mockReconciliationStore{}
	svc := service.NewReconciliationService(store, zap.NewNop())

	created, err := svc.Create(context.Background(), validAdjustmentRequest(), asOf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if created.ID == "" {
		t.Error("expected a generated id")
	}
	if !created.Amount.Equal(dec("-15.91")) {
		t.Errorf("amount should be rounded to cents, got %s", created.Amount.String())
	}
}

func TestCreateAdjustment_CustomTypeAccepted(t *testing.T) {
	svc := service.NewReconciliationService(&mockReconciliationStore{}, zap.NewNop())

	req := validAdjustmentRequest()
	req.Type = "estorno_condominio"
	if _, err := svc.Create(context.Background(), req, asOf); err != nil {
		t.Fatalf("custom type should be accepted, got %v", err)
	}
}

func TestCreateAdjustment_Validation(t *testing.T) {
	svc := service.NewReconciliationService(&mockReconciliationStore{}, zap.NewNop())

	cases := []struct {
		name   string
		mutate func(*domain.CreateAdjustmentRequest)
	}{
		{"future date", func(r *domain.CreateAdjustmentRequest) { r.AdjustmentDate = "2025-03-16" }},
		{"bad date format", func(r *domain.CreateAdjustmentRequest) { r.AdjustmentDate = "10/03/2025" }},
		{"zero amount", func(r *domain.CreateAdjustmentRequest) { r.Amount = dec("0") }},
		{"empty type", func(r *domain.CreateAdjustmentRequest) { r.Type = "  " }},
		{"short description", func(r *domain.CreateAdjustmentRequest) { r.Description = "tarifa" }},
		{"whitespace-padded short description", func(r *domain.CreateAdjustmentRequest) { r.Description = "   tarifa    " }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validAdjustmentRequest()
			tc.mutate(req)
			_, err := svc.Create(context.Background(), req, asOf)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateAdjustment_SameDayAllowed(t *testing.T) {
	svc := service.NewReconciliationService(&mockReconciliationStore{}, zap.NewNop())

	req := validAdjustmentRequest()
	req.AdjustmentDate = "2025-03-15" // same day as asOf
	if _, err := svc.Create(context.Background(), req, asOf); err != nil {
		t.Fatalf("same-day adjustment should be accepted, got %v", err)
	}
}

func TestDeleteAdjustment_NotFound(t *testing.T) {
	svc := service.NewReconciliationService(&mockReconciliationStore{}, zap.NewNop())

	err := svc.Delete(context.Background(), "missing-id")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestDeleteAdjustment_Success(t *testing.T) {
	store := &mockReconciliationStore{}
	svc := service.NewReconciliationService(store, zap.NewNop())

	created, err := svc.Create(context.Background(), validAdjustmentRequest(), asOf)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	remaining, _ := svc.List(context.Background())
	if len(remaining) != 0 {
		t.Errorf("expected empty ledger, got %d entries", len(remaining))
	}
}

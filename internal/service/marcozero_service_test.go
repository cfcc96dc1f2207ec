package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/observability"
	"github.com/imovelgestor/imovel-gestor-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

// mockMarcoZeroStore replicates the store's swap semantics in memory:
// activating a baseline deactivates the previous one.
type mockMarcoZeroStore struct {
	history []domain.MarcoZero
	err     error
}

func (m *mockMarcoZeroStore) GetActive(_ context.Context) (*domain.MarcoZero, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.history {
		if m.history[i].IsActive {
			mz := m.history[i]
			return &mz, nil
		}
	}
	return nil, nil
}

func (m *mockMarcoZeroStore) ListHistory(_ context.Context) ([]domain.MarcoZero, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.history, nil
}

func (m *mockMarcoZeroStore) Activate(_ context.Context, baseline *domain.MarcoZero) (*domain.MarcoZero, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.history {
		m.history[i].IsActive = false
	}
	m.history = append(m.history, *baseline)
	return baseline, nil
}

type mockTransactionStore struct {
	transactions []domain.Transaction
	updateErr    error
	updated      [][]domain.AccountBalance
	err          error
}

func (m *mockTransactionStore) ListTransactions(_ context.Context, _, _ time.Time) ([]domain.Transaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.transactions, nil
}

func (m *mockTransactionStore) UpdateAccountBalances(_ context.Context, balances []domain.AccountBalance) error {
	m.updated = append(m.updated, balances)
	return m.updateErr
}

func newMarcoZeroService(store *mockMarcoZeroStore, txStore *mockTransactionStore) *service.MarcoZeroService {
	return service.NewMarcoZeroService(store, txStore, observability.NewMetrics(), zap.NewNop())
}

// --- Tests ---

func TestSetBaseline_TotalIsRoundedSum(t *testing.T) {
	store := &mockMarcoZeroStore{}
	svc := newMarcoZeroService(store, &mockTransactionStore{})

	created, err := svc.SetBaseline(context.Background(), &domain.SetMarcoZeroRequest{
		MarcoDate: "2025-02-01",
		AccountBalances: []domain.AccountBalance{
			{AccountID: "acc-1", AccountName: "Conta Corrente", Balance: dec("10.005")},
			{AccountID: "acc-2", AccountName: "Poupança", Balance: dec("10.005")},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !created.TotalBalance.Equal(dec("20.01")) {
		t.Errorf("total: expected 20.01, got %s", created.TotalBalance.String())
	}
	if !created.IsActive {
		t.Error("new baseline should be active")
	}
}

func TestSetBaseline_SingleActiveInvariant(t *testing.T) {
	store := &mockMarcoZeroStore{}
	svc := newMarcoZeroService(store, &mockTransactionStore{})

	for i, date := range []string{"2025-01-01", "2025-02-01", "2025-03-01"} {
		_, err := svc.SetBaseline(context.Background(), &domain.SetMarcoZeroRequest{
			MarcoDate: date,
			AccountBalances: []domain.AccountBalance{
				{AccountID: "acc-1", Balance: dec("1000.00")},
			},
		})
		if err != nil {
			t.Fatalf("activation %d: %v", i, err)
		}

		active := 0
		for _, mz := range store.history {
			if mz.IsActive {
				active++
			}
		}
		if active != 1 {
			t.Fatalf("after activation %d: expected exactly 1 active baseline, got %d", i, active)
		}
	}
	if len(store.history) != 3 {
		t.Errorf("superseded baselines must be kept, expected 3, got %d", len(store.history))
	}
}

func TestSetBaseline_DropsZeroBalances(t *testing.T) {
	store := &mockMarcoZeroStore{}
	svc := newMarcoZeroService(store, &mockTransactionStore{})

	created, err := svc.SetBaseline(context.Background(), &domain.SetMarcoZeroRequest{
		MarcoDate: "2025-02-01",
		AccountBalances: []domain.AccountBalance{
			{AccountID: "acc-1", Balance: dec("500.00")},
			{AccountID: "acc-2", Balance: dec("0")},
		},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(created.AccountBalances) != 1 {
		t.Errorf("zero balances should be dropped, got %d accounts", len(created.AccountBalances))
	}
}

func TestSetBaseline_RejectsAllZero(t *testing.T) {
	svc := newMarcoZeroService(&mockMarcoZeroStore{}, &mockTransactionStore{})

	_, err := svc.SetBaseline(context.Background(), &domain.SetMarcoZeroRequest{
		MarcoDate: "2025-02-01",
		AccountBalances: []domain.AccountBalance{
			{AccountID: "acc-1", Balance: dec("0")},
		},
	})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetBaseline_RejectsBadDate(t *testing.T) {
	svc := newMarcoZeroService(&mockMarcoZeroStore{}, &mockTransactionStore{})

	_, err := svc.SetBaseline(context.Background(), &domain.SetMarcoZeroRequest{
		MarcoDate: "01/02/2025",
		AccountBalances: []domain.AccountBalance{
			{AccountID: "acc-1", Balance: dec("100.00")},
		},
	})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetBaseline_WriteThroughFailureDoesNotRollBack(t *testing.T) {
	store := &mockMarcoZeroStore{}
	txStore := &mockTransactionStore{updateErr: errors.New("balances table unavailable")}
	metrics := observability.NewMetrics()
	svc := service.NewMarcoZeroService(store, txStore, metrics, zap.NewNop())

	created, err := svc.SetBaseline(context.Background(), &domain.SetMarcoZeroRequest{
		MarcoDate: "2025-02-01",
		AccountBalances: []domain.AccountBalance{
			{AccountID: "acc-1", Balance: dec("1000.00")},
		},
	})
	if err != nil {
		t.Fatalf("activation must stand despite write-through failure, got %v", err)
	}
	if created == nil || !created.IsActive {
		t.Fatal("expected an active baseline")
	}
	if len(txStore.updated) != 1 {
		t.Errorf("expected one write-through attempt, got %d", len(txStore.updated))
	}
	if got := counterValue(t, metrics, "gestor_external_errors_total"); got != 1 {
		t.Errorf("expected 1 external error counted, got %v", got)
	}
}

// counterValue reads the current total of a counter family from the
// service's private registry.
func counterValue(t *testing.T, m *observability.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

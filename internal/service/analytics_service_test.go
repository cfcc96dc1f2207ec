package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/cache"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/observability"
	"github.com/imovelgestor/imovel-gestor-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Mocks ---

type mockPropertyStore struct {
	properties []domain.Property
	err        error
}

func (m *mockPropertyStore) ListProperties(_ context.Context) ([]domain.Property, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.properties, nil
}

func (m *mockPropertyStore) GetProperty(_ context.Context, id string) (*domain.Property, error) {
	for _, p := range m.properties {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "property", ID: id}
}

// mockCorrector applies a fixed factor, fails for ids in unavailable,
// and counts lookups per reference date.
type mockCorrector struct {
	mu          sync.Mutex
	factor      decimal.Decimal
	unavailable map[string]bool // keyed by reference date "2006-01-02"
	calls       int
}

func (m *mockCorrector) Correct(_ context.Context, principal decimal.Decimal, referenceDate time.Time) (*domain.Correction, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	ref := referenceDate.Format("2006-01-02")
	if m.unavailable[ref] {
		return nil, &domain.ErrCorrectionUnavailable{ReferenceDate: ref, Reason: "reference month not covered by index"}
	}
	return &domain.Correction{
		CorrectedValue:   domain.RoundMoney(principal.Mul(m.factor)),
		CorrectionFactor: m.factor,
		ReferenceMonth:   domain.PeriodOf(referenceDate).String(),
	}, nil
}

func (m *mockCorrector) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newAnalyticsService(
	props *mockPropertyStore,
	txs *mockTransactionStore,
	mz *mockMarcoZeroStore,
	recon *mockReconciliationStore,
	corrector *mockCorrector,
) *service.AnalyticsService {
	return service.NewAnalyticsService(
		props, txs, mz, recon, corrector,
		cache.New[*domain.Correction](5*time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func sampleProperties() []domain.Property {
	return []domain.Property{
		{
			ID: "p1", Name: "Apartamento Centro", Status: "ativo",
			AcquisitionValue: dec("100000.00"), AcquisitionCosts: dec("10000.00"),
			PurchaseDate: day(2020, 6, 1),
		},
		{
			ID: "p2", Name: "Casa Jardim", Status: "ativo",
			AcquisitionValue: dec("200000.00"), AcquisitionCosts: dec("0"),
			PurchaseDate: day(1990, 1, 1),
		},
	}
}

// --- Tests ---

func TestPivotWithIPCA_UnavailableCorrectionDegradesMargin(t *testing.T) {
	txs := &mockTransactionStore{transactions: []domain.Transaction{
		{ID: "tx-1", PropertyID: "p1", Type: domain.TransactionRevenue, Amount: dec("1100.00"), Date: day(2025, 1, 5), Status: domain.StatusConfirmed},
		{ID: "tx-2", PropertyID: "p2", Type: domain.TransactionRevenue, Amount: dec("2000.00"), Date: day(2025, 1, 6), Status: domain.StatusConfirmed},
	}}
	// p2's purchase predates the index series.
	corrector := &mockCorrector{factor: dec("1.10"), unavailable: map[string]bool{"1990-01-01": true}}
	svc := newAnalyticsService(&mockPropertyStore{properties: sampleProperties()}, txs, &mockMarcoZeroStore{}, &mockReconciliationStore{}, corrector)

	pivot, err := svc.PivotWithIPCA(context.Background(), mustParsePeriods(t, "01/2025"), allFilter)
	if err != nil {
		t.Fatalf("unavailable correction must not fail the view, got %v", err)
	}
	if len(pivot.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(pivot.Rows))
	}
	for _, row := range pivot.Rows {
		switch row.PropertyID {
		case "p1":
			// 110000 * 1.10 = 121000; 1100/121000 = 0.91%
			if row.MarginPct == nil || !row.MarginPct.Equal(dec("0.91")) {
				t.Errorf("p1 margin: expected 0.91, got %v", row.MarginPct)
			}
		case "p2":
			if row.MarginPct != nil {
				t.Errorf("p2 margin should be nil, got %s", row.MarginPct.String())
			}
			if row.CorrectedCost != nil {
				t.Error("p2 corrected cost should be nil")
			}
		}
	}
}

func TestPivotWithIPCA_CorrectionsAreCached(t *testing.T) {
	txs := &mockTransactionStore{}
	corrector := &mockCorrector{factor: dec("1.10")}
	svc := newAnalyticsService(&mockPropertyStore{properties: sampleProperties()}, txs, &mockMarcoZeroStore{}, &mockReconciliationStore{}, corrector)

	periods := mustParsePeriods(t, "01/2025")
	if _, err := svc.PivotWithIPCA(context.Background(), periods, allFilter); err != nil {
		t.Fatalf("first call: %v", err)
	}
	first := corrector.callCount()
	if _, err := svc.PivotWithIPCA(context.Background(), periods, allFilter); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if corrector.callCount() != first {
		t.Errorf("second call should hit the cache, lookups went %d -> %d", first, corrector.callCount())
	}
}

func TestSingleMonthDetailed_CurrentMonth(t *testing.T) {
	asOf := day(2025, 3, 15)
	txs := &mockTransactionStore{transactions: []domain.Transaction{
		{ID: "tx-1", PropertyID: "p1", Type: domain.TransactionRevenue, Amount: dec("1000.00"), Date: day(2025, 3, 5), Status: domain.StatusConfirmed},
		{ID: "tx-2", PropertyID: "p1", Type: domain.TransactionRevenue, Amount: dec("500.00"), Date: day(2025, 3, 20), Status: domain.StatusPending},
	}}
	corrector := &mockCorrector{factor: dec("1.10")}
	svc := newAnalyticsService(&mockPropertyStore{properties: sampleProperties()}, txs, &mockMarcoZeroStore{}, &mockReconciliationStore{}, corrector)

	detail, table, err := svc.SingleMonthDetailed(context.Background(), domain.Period{Month: time.March, Year: 2025}, allFilter, asOf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if detail == nil || table != nil {
		t.Fatal("current month should return the detailed layout")
	}
	if !detail.TotalPending.Equal(dec("500.00")) {
		t.Errorf("total pending: expected 500.00, got %s", detail.TotalPending.String())
	}
}

func TestSingleMonthDetailed_PastMonthFallsBackToPivot(t *testing.T) {
	asOf := day(2025, 3, 15)
	txs := &mockTransactionStore{transactions: []domain.Transaction{
		{ID: "tx-1", PropertyID: "p1", Type: domain.TransactionRevenue, Amount: dec("1000.00"), Date: day(2025, 2, 5), Status: domain.StatusConfirmed},
	}}
	corrector := &mockCorrector{factor: dec("1.10")}
	svc := newAnalyticsService(&mockPropertyStore{properties: sampleProperties()}, txs, &mockMarcoZeroStore{}, &mockReconciliationStore{}, corrector)

	detail, table, err := svc.SingleMonthDetailed(context.Background(), domain.Period{Month: time.February, Year: 2025}, allFilter, asOf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if detail != nil || table == nil {
		t.Fatal("past month should return the generic pivot layout")
	}
	if !table.GrandTotal.Equal(dec("1000.00")) {
		t.Errorf("grand total: expected 1000.00, got %s", table.GrandTotal.String())
	}
	if corrector.callCount() != 0 {
		t.Errorf("generic pivot needs no corrections, got %d lookups", corrector.callCount())
	}
}

func TestCashFlow_SeededByBaselineAndAdjustments(t *testing.T) {
	mz := &mockMarcoZeroStore{history: []domain.MarcoZero{{
		ID: "mz-1", MarcoDate: day(2025, 2, 1), TotalBalance: dec("1000.00"), IsActive: true,
	}}}
	txs := &mockTransactionStore{transactions: []domain.Transaction{
		{ID: "tx-feb", PropertyID: "p1", Type: domain.TransactionRevenue, Amount: dec("50.00"), Date: day(2025, 2, 10)},
	}}
	recon := &mockReconciliationStore{adjustments: []domain.Adjustment{
		{ID: "adj-1", AdjustmentDate: day(2025, 2, 15), Amount: dec("-10.00"), Type: "bank_fee", Description: "tarifa de manutenção"},
	}}
	corrector := &mockCorrector{factor: dec("1.10")}
	svc := newAnalyticsService(&mockPropertyStore{properties: sampleProperties()}, txs, mz, recon, corrector)

	stmt, err := svc.CashFlow(context.Background(), mustParsePeriods(t, "02/2025"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(stmt.Entries) != 3 {
		t.Fatalf("expected baseline + tx + adjustment, got %d entries", len(stmt.Entries))
	}
	if !stmt.ClosingBalance.Equal(dec("1040.00")) {
		t.Errorf("closing balance: expected 1040.00, got %s", stmt.ClosingBalance.String())
	}
}

func TestTransactionsByPeriods_ZeroPeriods(t *testing.T) {
	svc := newAnalyticsService(&mockPropertyStore{}, &mockTransactionStore{}, &mockMarcoZeroStore{}, &mockReconciliationStore{}, &mockCorrector{factor: dec("1.10")})

	groups, err := svc.TransactionsByPeriods(context.Background(), nil, allFilter)
	if err != nil {
		t.Fatalf("zero periods must not be an error, got %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected empty result, got %d groups", len(groups))
	}
}

func mustParsePeriods(t *testing.T, keys ...string) []domain.Period {
	t.Helper()
	out := make([]domain.Period, 0, len(keys))
	for _, k := range keys {
		p, err := domain.ParsePeriod(k)
		if err != nil {
			t.Fatalf("ParsePeriod(%q): %v", k, err)
		}
		out = append(out, p)
	}
	return out
}

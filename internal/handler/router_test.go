package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/config"
	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/handler"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/cache"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/observability"
	"github.com/imovelgestor/imovel-gestor-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- Port stubs ---

type stubStores struct {
	properties  []domain.Property
	txs         []domain.Transaction
	baseline    *domain.MarcoZero
	adjustments []domain.Adjustment
}

func (s *stubStores) ListProperties(_ context.Context) ([]domain.Property, error) {
	return s.properties, nil
}

func (s *stubStores) GetProperty(_ context.Context, id string) (*domain.Property, error) {
	for _, p := range s.properties {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "property", ID: id}
}

func (s *stubStores) ListTransactions(_ context.Context, _, _ time.Time) ([]domain.Transaction, error) {
	return s.txs, nil
}

func (s *stubStores) UpdateAccountBalances(_ context.Context, _ []domain.AccountBalance) error {
	return nil
}

func (s *stubStores) GetActive(_ context.Context) (*domain.MarcoZero, error) {
	return s.baseline, nil
}

func (s *stubStores) ListHistory(_ context.Context) ([]domain.MarcoZero, error) {
	if s.baseline == nil {
		return []domain.MarcoZero{}, nil
	}
	return []domain.MarcoZero{*s.baseline}, nil
}

func (s *stubStores) Activate(_ context.Context, baseline *domain.MarcoZero) (*domain.MarcoZero, error) {
	s.baseline = baseline
	return baseline, nil
}

func (s *stubStores) InsertAdjustment(_ context.Context, adj *domain.Adjustment) (*domain.Adjustment, error) {
	s.adjustments = append(s.adjustments, *adj)
	return adj, nil
}

func (s *stubStores) ListAdjustments(_ context.Context) ([]domain.Adjustment, error) {
	return s.adjustments, nil
}

func (s *stubStores) DeleteAdjustment(_ context.Context, id string) error {
	for i, adj := range s.adjustments {
		if adj.ID == id {
			s.adjustments = append(s.adjustments[:i], s.adjustments[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "adjustment", ID: id}
}

type stubCorrector struct{}

func (stubCorrector) Correct(_ context.Context, principal decimal.Decimal, referenceDate time.Time) (*domain.Correction, error) {
	factor := decimal.RequireFromString("1.10")
	return &domain.Correction{
		CorrectedValue:   domain.RoundMoney(principal.Mul(factor)),
		CorrectionFactor: factor,
		ReferenceMonth:   domain.PeriodOf(referenceDate).String(),
	}, nil
}

func newTestRouter(stores *stubStores) http.Handler {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	cfg := &config.Config{
		CORSAllowedOrigins: []string{"*"},
	}

	return handler.NewRouter(handler.Deps{
		MarcoZero:      service.NewMarcoZeroService(stores, stores, metrics, logger),
		Reconciliation: service.NewReconciliationService(stores, logger),
		Analytics: service.NewAnalyticsService(
			stores, stores, stores, stores, stubCorrector{},
			cache.New[*domain.Correction](time.Minute),
			metrics, logger,
		),
		Properties: stores,
		Metrics:    metrics,
		Config:     cfg,
		Logger:     logger,
	})
}

func doRequest(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStores{}), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var health domain.HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy, got %q", health.Status)
	}
	if len(health.Services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(health.Services))
	}
	for _, s := range health.Services {
		if s.UptimePercent == 0 {
			t.Errorf("service %s reports no uptime", s.Name)
		}
	}
}

func TestReadyz(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStores{}), http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStores{}), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSetMarcoZero(t *testing.T) {
	stores := &stubStores{}
	router := newTestRouter(stores)

	body := `{"marcoDate":"2025-02-01","accountBalances":[{"account_id":"acc-1","account_name":"Conta Corrente","balance":"1000.00"}],"notes":"saldo inicial"}`
	rec := doRequest(t, router, http.MethodPost, "/api/marco-zero", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created domain.MarcoZero
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !created.TotalBalance.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("total: expected 1000.00, got %s", created.TotalBalance.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/api/marco-zero/active", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestSetMarcoZero_ValidationError(t *testing.T) {
	body := `{"marcoDate":"2025-02-01","accountBalances":[]}`
	rec := doRequest(t, newTestRouter(&stubStores{}), http.MethodPost, "/api/marco-zero", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCreateAndDeleteAdjustment(t *testing.T) {
	stores := &stubStores{}
	router := newTestRouter(stores)

	body := `{"adjustmentDate":"2025-03-01","amount":"-15.90","type":"bank_fee","description":"tarifa de manutenção"}`
	rec := doRequest(t, router, http.MethodPost, "/api/reconciliation", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created domain.Adjustment
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/reconciliation/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("delete: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/reconciliation/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestPivot_MalformedMonth(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStores{}), http.MethodGet, "/api/analytics/pivot?months=2025-01", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPivot_MissingMonths(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStores{}), http.MethodGet, "/api/analytics/pivot", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPivotWithIPCA(t *testing.T) {
	stores := &stubStores{
		properties: []domain.Property{{
			ID: "p1", Name: "Apartamento Centro",
			AcquisitionValue: decimal.RequireFromString("100000.00"),
			PurchaseDate:     time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		}},
		txs: []domain.Transaction{{
			ID: "tx-1", PropertyID: "p1", Type: domain.TransactionRevenue,
			Category: "aluguel", Amount: decimal.RequireFromString("1100.00"),
			Date: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), Status: domain.StatusConfirmed,
		}},
	}
	rec := doRequest(t, newTestRouter(stores), http.MethodGet, "/api/analytics/pivot-with-ipca?months=01/2025", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var pivot domain.IPCAPivot
	if err := json.Unmarshal(rec.Body.Bytes(), &pivot); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(pivot.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(pivot.Rows))
	}
	// 1100 / (100000 * 1.10) * 100 = 1.00
	if pivot.Rows[0].MarginPct == nil || !pivot.Rows[0].MarginPct.Equal(decimal.RequireFromString("1.00")) {
		t.Errorf("margin: expected 1.00, got %v", pivot.Rows[0].MarginPct)
	}
}

func TestSingleMonthDetailed_PastMonthLayout(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStores{}), http.MethodGet, "/api/analytics/single-month-detailed?months=01/2020", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Layout string `json:"layout"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Layout != "pivot" {
		t.Errorf("past month should use the pivot layout, got %q", resp.Layout)
	}
}

func TestSingleMonthDetailed_RejectsMultipleMonths(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubStores{}), http.MethodGet, "/api/analytics/single-month-detailed?months=01/2025,02/2025", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestListProperties(t *testing.T) {
	stores := &stubStores{properties: []domain.Property{{ID: "p1", Name: "Apartamento Centro"}}}
	rec := doRequest(t, newTestRouter(stores), http.MethodGet, "/api/properties", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, newTestRouter(stores), http.MethodGet, "/api/properties/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	stores := &stubStores{}
	cfg := &config.Config{
		CORSAllowedOrigins: []string{"*"},
		AuthRequired:       true,
		JWTSecret:          "test-secret",
	}
	router := handler.NewRouter(handler.Deps{
		MarcoZero:      service.NewMarcoZeroService(stores, stores, metrics, logger),
		Reconciliation: service.NewReconciliationService(stores, logger),
		Analytics: service.NewAnalyticsService(
			stores, stores, stores, stores, stubCorrector{},
			cache.New[*domain.Correction](time.Minute),
			metrics, logger,
		),
		Properties: stores,
		Metrics:    metrics,
		Config:     cfg,
		Logger:     logger,
	})

	rec := doRequest(t, router, http.MethodGet, "/api/properties", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	// Health endpoints stay public.
	rec = doRequest(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("healthz should not require auth, got %d", rec.Code)
	}
}

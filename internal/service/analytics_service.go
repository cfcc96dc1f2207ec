package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/cache"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/observability"
	"github.com/imovelgestor/imovel-gestor-go/internal/port"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxCorrectionFanout bounds concurrent index lookups per request.
const maxCorrectionFanout = 4

// AnalyticsService orchestrates the aggregation views: it fetches
// transactions, properties, the active baseline and the adjustment
// ledger, runs the pure aggregation engine over them, and folds in
// monetary corrections where margins are requested.
type AnalyticsService struct {
	properties     port.PropertyStore
	transactions   port.TransactionStore
	marcoZero      port.MarcoZeroStore
	reconciliation port.ReconciliationStore
	corrector      port.IndexCorrector
	corrections    *cache.InMemory[*domain.Correction]
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewAnalyticsService creates the aggregation service.
func NewAnalyticsService(
	properties port.PropertyStore,
	transactions port.TransactionStore,
	marcoZero port.MarcoZeroStore,
	reconciliation port.ReconciliationStore,
	corrector port.IndexCorrector,
	corrections *cache.InMemory[*domain.Correction],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		properties:     properties,
		transactions:   transactions,
		marcoZero:      marcoZero,
		reconciliation: reconciliation,
		corrector:      corrector,
		corrections:    corrections,
		metrics:        metrics,
		logger:         logger,
	}
}

// periodRange returns the inclusive date range covering the requested
// periods: first day of the earliest month to last day of the latest.
func periodRange(periods []domain.Period) (time.Time, time.Time) {
	if len(periods) == 0 {
		return time.Time{}, time.Time{}
	}
	sorted := make([]domain.Period, len(periods))
	copy(sorted, periods)
	domain.SortPeriods(sorted)
	first, last := sorted[0], sorted[len(sorted)-1]
	from := time.Date(first.Year, first.Month, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(last.Year, last.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0).Add(-time.Nanosecond)
	return from, to
}

// fetchBase loads transactions and the property catalog concurrently.
func (s *AnalyticsService) fetchBase(ctx context.Context, from, to time.Time) ([]domain.Transaction, []domain.Property, error) {
	var (
		txs   []domain.Transaction
		props []domain.Property
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.transactions.ListTransactions(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		props, err = s.properties.ListProperties(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return txs, props, nil
}

func propertyNames(props []domain.Property) map[string]string {
	names := make(map[string]string, len(props))
	for _, p := range props {
		names[p.ID] = p.Name
	}
	return names
}

// correct resolves one property's corrected acquisition cost through
// the TTL cache. Unavailable corrections degrade to nil; transport
// errors are logged and likewise degrade, never failing the whole view.
func (s *AnalyticsService) correct(ctx context.Context, p domain.Property) *domain.Correction {
	principal := p.AcquisitionTotal()
	if principal.IsZero() || p.PurchaseDate.IsZero() {
		return nil
	}
	key := fmt.Sprintf("%s|%s|%s", p.ID, principal.String(), p.PurchaseDate.Format("2006-01-02"))
	if corr, ok := s.corrections.Get(key); ok {
		s.metrics.IncrCacheHit("ipca")
		return corr
	}
	s.metrics.IncrCacheMiss("ipca")

	corr, err := s.corrector.Correct(ctx, principal, p.PurchaseDate)
	if err != nil {
		var unavailable *domain.ErrCorrectionUnavailable
		if errors.As(err, &unavailable) {
			s.metrics.IncrCorrection("unavailable")
			s.logger.Debug("ipca correction unavailable",
				zap.String("property_id", p.ID),
				zap.String("reference_date", unavailable.ReferenceDate),
			)
		} else {
			s.metrics.IncrCorrection("error")
			s.metrics.IncrExternalError("ipca")
			s.logger.Warn("ipca correction failed",
				zap.String("property_id", p.ID),
				zap.Error(err),
			)
		}
		return nil
	}
	s.metrics.IncrCorrection("ok")
	s.corrections.Set(key, corr)
	return corr
}

// correctAll resolves corrections for every property in parallel,
// bounded by maxCorrectionFanout. Properties whose correction is
// unavailable are simply absent from the result map.
func (s *AnalyticsService) correctAll(ctx context.Context, props []domain.Property) map[string]*domain.Correction {
	var mu sync.Mutex
	out := make(map[string]*domain.Correction, len(props))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxCorrectionFanout)
	for _, p := range props {
		p := p
		g.Go(func() error {
			if corr := s.correct(gctx, p); corr != nil {
				mu.Lock()
				out[p.ID] = corr
				mu.Unlock()
			}
			return nil
		})
	}
	// Workers never return errors: a failed correction degrades to nil.
	_ = g.Wait()
	return out
}

// TransactionsByPeriods returns the raw filtered transactions grouped
// by period, feeding the frontend pivot. Zero periods yield an empty
// result set, not an error.
func (s *AnalyticsService) TransactionsByPeriods(ctx context.Context, periods []domain.Period, filter PivotFilter) ([]domain.PeriodTransactions, error) {
	ctx, span := svcTracer.Start(ctx, "AnalyticsService.TransactionsByPeriods")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("transactions_by_periods", time.Since(start)) }()

	if len(periods) == 0 {
		return []domain.PeriodTransactions{}, nil
	}
	from, to := periodRange(periods)
	txs, err := s.transactions.ListTransactions(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return GroupTransactionsByPeriod(txs, periods, filter), nil
}

// Pivot builds the generic multi-period pivot table.
func (s *AnalyticsService) Pivot(ctx context.Context, periods []domain.Period, filter PivotFilter) (*domain.PivotTable, error) {
	ctx, span := svcTracer.Start(ctx, "AnalyticsService.Pivot")
	defer span.End()

	if len(periods) == 0 {
		empty := BuildPivot(nil, nil, nil, filter)
		return &empty, nil
	}
	from, to := periodRange(periods)
	txs, props, err := s.fetchBase(ctx, from, to)
	if err != nil {
		return nil, err
	}
	table := BuildPivot(txs, propertyNames(props), periods, filter)
	return &table, nil
}

// PivotWithIPCA builds the per-property revenue/expense/margin view
// with IPCA-corrected acquisition costs.
func (s *AnalyticsService) PivotWithIPCA(ctx context.Context, periods []domain.Period, filter PivotFilter) (*domain.IPCAPivot, error) {
	ctx, span := svcTracer.Start(ctx, "AnalyticsService.PivotWithIPCA")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("pivot_with_ipca", time.Since(start)) }()

	if len(periods) == 0 {
		empty := BuildIPCAPivot(nil, nil, nil, filter, nil)
		return &empty, nil
	}
	from, to := periodRange(periods)
	txs, props, err := s.fetchBase(ctx, from, to)
	if err != nil {
		return nil, err
	}
	corrections := s.correctAll(ctx, props)
	pivot := BuildIPCAPivot(txs, propertyNames(props), periods, filter, corrections)
	return &pivot, nil
}

// SingleMonthDetailed serves GET /api/analytics/single-month-detailed.
// Only when the requested month equals the calendar month of asOf does
// the bespoke real/pending/total layout apply; a single past month
// returns the generic pivot layout instead. Exactly one of the returned
// views is non-nil.
func (s *AnalyticsService) SingleMonthDetailed(ctx context.Context, period domain.Period, filter PivotFilter, asOf time.Time) (*domain.MonthDetail, *domain.PivotTable, error) {
	ctx, span := svcTracer.Start(ctx, "AnalyticsService.SingleMonthDetailed")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("single_month_detailed", time.Since(start)) }()

	periods := []domain.Period{period}
	if !IsCurrentMonth(periods, asOf) {
		table, err := s.Pivot(ctx, periods, filter)
		return nil, table, err
	}

	from, to := periodRange(periods)
	txs, props, err := s.fetchBase(ctx, from, to)
	if err != nil {
		return nil, nil, err
	}
	corrections := s.correctAll(ctx, props)
	detail := BuildMonthDetail(txs, propertyNames(props), period, filter, corrections)
	return &detail, nil, nil
}

// CashFlow computes the running-balance statement over the requested
// periods, seeded by the active baseline and folding in the adjustment
// ledger.
func (s *AnalyticsService) CashFlow(ctx context.Context, periods []domain.Period) (*domain.CashFlowStatement, error) {
	ctx, span := svcTracer.Start(ctx, "AnalyticsService.CashFlow")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("cash_flow", time.Since(start)) }()

	if len(periods) == 0 {
		return &domain.CashFlowStatement{Entries: []domain.CashFlowEntry{}}, nil
	}
	from, to := periodRange(periods)

	baseline, err := s.marcoZero.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	// The balance accumulates from the marco date even when it
	// precedes the requested range.
	txFrom := from
	if baseline != nil && baseline.MarcoDate.Before(from) {
		txFrom = baseline.MarcoDate
	}

	var (
		txs         []domain.Transaction
		adjustments []domain.Adjustment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.transactions.ListTransactions(gctx, txFrom, to)
		return err
	})
	g.Go(func() error {
		var err error
		adjustments, err = s.reconciliation.ListAdjustments(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stmt := BuildCashFlow(txs, baseline, adjustments, from, to)
	return &stmt, nil
}

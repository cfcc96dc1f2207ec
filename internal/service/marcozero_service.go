package service

import (
	"context"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/observability"
	"github.com/imovelgestor/imovel-gestor-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var svcTracer = otel.Tracer("service")

// MarcoZeroService owns the single active baseline. Activating a new
// baseline atomically supersedes the previous active one; baselines are
// never deleted.
type MarcoZeroService struct {
	store   port.MarcoZeroStore
	txStore port.TransactionStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewMarcoZeroService creates the baseline manager.
func NewMarcoZeroService(store port.MarcoZeroStore, txStore port.TransactionStore, metrics *observability.Metrics, logger *zap.Logger) *MarcoZeroService {
	return &MarcoZeroService{store: store, txStore: txStore, metrics: metrics, logger: logger}
}

// GetActive returns the current baseline, or nil if one was never set.
func (s *MarcoZeroService) GetActive(ctx context.Context) (*domain.MarcoZero, error) {
	ctx, span := svcTracer.Start(ctx, "MarcoZeroService.GetActive")
	defer span.End()

	return s.store.GetActive(ctx)
}

// GetHistory returns all baselines, active and superseded, newest first.
func (s *MarcoZeroService) GetHistory(ctx context.Context) ([]domain.MarcoZero, error) {
	ctx, span := svcTracer.Start(ctx, "MarcoZeroService.GetHistory")
	defer span.End()

	return s.store.ListHistory(ctx)
}

// SetBaseline validates and activates a new baseline. The store applies
// the deactivate-previous + insert-new swap in a single transaction, so
// a concurrent reader never sees zero or two active baselines. The
// balance write-through to the transaction store is best effort:
// failure is logged, activation stands.
func (s *MarcoZeroService) SetBaseline(ctx context.Context, req *domain.SetMarcoZeroRequest) (*domain.MarcoZero, error) {
	ctx, span := svcTracer.Start(ctx, "MarcoZeroService.SetBaseline")
	defer span.End()

	marcoDate, err := time.Parse("2006-01-02", req.MarcoDate)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "marcoDate", Message: "expected YYYY-MM-DD"}
	}
	balances := make([]domain.AccountBalance, 0, len(req.AccountBalances))
	for _, b := range req.AccountBalances {
		if b.Balance.IsZero() {
			continue
		}
		balances = append(balances, b)
	}
	if len(balances) == 0 {
		return nil, &domain.ErrValidation{Field: "accountBalances", Message: "at least one non-zero account balance is required"}
	}

	total := decimal.Zero
	for _, b := range balances {
		total = domain.AddMoney(total, b.Balance)
	}

	baseline := &domain.MarcoZero{
		ID:              uuid.NewString(),
		MarcoDate:       marcoDate,
		AccountBalances: balances,
		TotalBalance:    total,
		Notes:           req.Notes,
		IsActive:        true,
		CreatedAt:       time.Now().UTC(),
	}

	created, err := s.store.Activate(ctx, baseline)
	if err != nil {
		s.metrics.IncrExternalError("supabase")
		return nil, err
	}
	s.metrics.IncrBaselineActivation()
	s.logger.Info("marco zero activated",
		zap.String("marco_zero_id", created.ID),
		zap.String("marco_date", created.MarcoDate.Format("2006-01-02")),
		zap.String("total_balance", created.TotalBalance.String()),
		zap.Int("accounts", len(created.AccountBalances)),
	)

	if err := s.txStore.UpdateAccountBalances(ctx, balances); err != nil {
		s.metrics.IncrExternalError("supabase")
		s.logger.Warn("marco zero: account balance write-through failed",
			zap.String("marco_zero_id", created.ID),
			zap.Error(err),
		)
	}
	return created, nil
}

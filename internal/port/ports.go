// Package port defines the interfaces between the service layer and
// the infrastructure adapters. Services depend on these, never on the
// concrete store or client implementations.
package port

import (
	"context"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"

	"github.com/shopspring/decimal"
)

// PropertyStore reads the property catalog. The catalog's CRUD surface
// lives outside this core; only reads are needed here.
type PropertyStore interface {
	ListProperties(ctx context.Context) ([]domain.Property, error)
	GetProperty(ctx context.Context, id string) (*domain.Property, error)
}

// TransactionStore reads booked transactions. Append-only from this
// core's perspective; UpdateAccountBalances is the one write-through
// side effect of baseline activation.
type TransactionStore interface {
	// ListTransactions returns transactions dated within [from, to],
	// inclusive, across all properties.
	ListTransactions(ctx context.Context, from, to time.Time) ([]domain.Transaction, error)
	UpdateAccountBalances(ctx context.Context, balances []domain.AccountBalance) error
}

// MarcoZeroStore persists baselines. Activate must apply the
// deactivate-previous + insert-new swap atomically so that a concurrent
// reader never observes zero or two active baselines.
type MarcoZeroStore interface {
	GetActive(ctx context.Context) (*domain.MarcoZero, error)
	ListHistory(ctx context.Context) ([]domain.MarcoZero, error)
	Activate(ctx context.Context, baseline *domain.MarcoZero) (*domain.MarcoZero, error)
}

// ReconciliationStore persists manual adjustments. There is no
// update-in-place: corrections are delete + recreate.
type ReconciliationStore interface {
	InsertAdjustment(ctx context.Context, adj *domain.Adjustment) (*domain.Adjustment, error)
	ListAdjustments(ctx context.Context) ([]domain.Adjustment, error)
	DeleteAdjustment(ctx context.Context, id string) error
}

// IndexCorrector restates a historical principal to current values via
// an external inflation-index lookup. Failure to resolve the reference
// date is *domain.ErrCorrectionUnavailable, never a zero result.
type IndexCorrector interface {
	Correct(ctx context.Context, principal decimal.Decimal, referenceDate time.Time) (*domain.Correction, error)
}

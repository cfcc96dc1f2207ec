// Package domain defines the core business entities for the rental
// property bookkeeping service. These models are independent of the
// backing store and represent the canonical data structures used
// throughout the application.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Property catalog
// ============================================================

// Property represents a rental property. The catalog itself is owned by
// an external CRUD surface; this core reads properties by id only.
type Property struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // ativo, vendido, em_reforma

	// Acquisition figures feed the IPCA-corrected margin computation.
	AcquisitionValue decimal.Decimal `json:"acquisition_value"`
	AcquisitionCosts decimal.Decimal `json:"acquisition_costs"` // ITBI, escritura, reforma inicial
	PurchaseDate     time.Time       `json:"purchase_date"`
}

// AcquisitionTotal is the principal used for monetary correction:
// purchase value plus acquisition costs, at monetary precision.
func (p Property) AcquisitionTotal() decimal.Decimal {
	return AddMoney(p.AcquisitionValue, p.AcquisitionCosts)
}

// ============================================================
// Transactions
// ============================================================

// Transaction types. Amount always carries a non-negative magnitude;
// the sign of a transaction's contribution is implied by its type.
const (
	TransactionRevenue = "revenue"
	TransactionExpense = "expense"
)

// Transaction statuses. Pending transactions are booked but not yet
// settled; the single-current-month view splits on this.
const (
	StatusConfirmed = "confirmado"
	StatusPending   = "pendente"
)

// Transaction represents a single dated, typed, categorized entry
// against a property. The transaction store is append-only from this
// core's perspective.
type Transaction struct {
	ID          string          `json:"id"`
	PropertyID  string          `json:"property_id"`
	Type        string          `json:"type"` // revenue, expense
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"` // non-negative magnitude
	Date        time.Time       `json:"date"`
	Status      string          `json:"status"` // confirmado, pendente
	Description string          `json:"description,omitempty"`
}

// ============================================================
// Marco Zero (baseline)
// ============================================================

// AccountBalance is one account's balance inside a baseline snapshot.
type AccountBalance struct {
	AccountID   string          `json:"account_id"`
	AccountName string          `json:"account_name"`
	Balance     decimal.Decimal `json:"balance"`
}

// MarcoZero is a declared point-in-time snapshot of account balances
// that anchors all subsequent cash-flow computation. At most one
// baseline is active at any time; setting a new one supersedes the
// previous active baseline, it is never deleted.
type MarcoZero struct {
	ID              string           `json:"id"`
	MarcoDate       time.Time        `json:"marco_date"`
	AccountBalances []AccountBalance `json:"account_balances"`
	TotalBalance    decimal.Decimal  `json:"total_balance"` // rounded sum, persisted redundantly
	Notes           string           `json:"notes,omitempty"`
	IsActive        bool             `json:"is_active"`
	CreatedAt       time.Time        `json:"created_at"`
}

// SetMarcoZeroRequest is the payload for POST /api/marco-zero.
type SetMarcoZeroRequest struct {
	MarcoDate       string           `json:"marcoDate"` // YYYY-MM-DD
	AccountBalances []AccountBalance `json:"accountBalances"`
	Notes           string           `json:"notes,omitempty"`
}

// ============================================================
// Reconciliation adjustments
// ============================================================

// Predefined adjustment tags. Free-form tags are also accepted; the
// only restriction on custom values is that they are non-empty.
const (
	AdjustmentBankFee    = "bank_fee"
	AdjustmentInterest   = "interest"
	AdjustmentCorrection = "correction"
	AdjustmentTransfer   = "transfer"
	AdjustmentBalance    = "balance_adjustment"
)

// Adjustment is a manually entered correction (bank fee, transfer,
// balance fix) applied on top of cash-flow calculations. It does not
// define balances by itself, and applies from its date forward
// regardless of any baseline linkage.
type Adjustment struct {
	ID             string          `json:"id"`
	AdjustmentDate time.Time       `json:"adjustment_date"`
	Amount         decimal.Decimal `json:"amount"` // signed; sign encodes direction
	Type           string          `json:"type"`
	Description    string          `json:"description"`
	AccountID      string          `json:"account_id,omitempty"`
	MarcoZeroID    string          `json:"marco_zero_id,omitempty"` // informational only
	CreatedAt      time.Time       `json:"created_at"`
}

// CreateAdjustmentRequest is the payload for POST /api/reconciliation.
type CreateAdjustmentRequest struct {
	AdjustmentDate string          `json:"adjustmentDate"` // YYYY-MM-DD
	Amount         decimal.Decimal `json:"amount"`
	Type           string          `json:"type"`
	Description    string          `json:"description"`
	AccountID      string          `json:"accountId,omitempty"`
	MarcoZeroID    string          `json:"marcoZeroId,omitempty"`
}

// ============================================================
// Aggregation views (derived, never persisted)
// ============================================================

// PivotRow is one property's aggregated figures across the requested
// set of periods. MonthlyData is keyed by the "MM/YYYY" period key.
type PivotRow struct {
	PropertyID     string                     `json:"property_id"`
	PropertyName   string                     `json:"property_name"`
	MonthlyData    map[string]decimal.Decimal `json:"monthly_data"`
	Total          decimal.Decimal            `json:"total"`
	MonthlyAverage decimal.Decimal            `json:"monthly_average"`
}

// PivotTable is the full multi-period pivot: one row per property with
// matching data, column totals per period, and grand totals.
type PivotTable struct {
	Periods        []string                   `json:"periods"` // chronological "MM/YYYY" keys
	Rows           []PivotRow                 `json:"rows"`
	ColumnTotals   map[string]decimal.Decimal `json:"column_totals"`
	GrandTotal     decimal.Decimal            `json:"grand_total"`
	MonthlyAverage decimal.Decimal            `json:"monthly_average"`
}

// MonthDetailRow is the bespoke single-current-month row: the month's
// net result split into settled vs pending, plus the IPCA-corrected
// acquisition margin. MarginPct is nil when the corrected cost is zero
// or the correction is unavailable ("–" in the dashboard).
type MonthDetailRow struct {
	PropertyID    string           `json:"property_id"`
	PropertyName  string           `json:"property_name"`
	RealAmount    decimal.Decimal  `json:"real_amount"`
	PendingAmount decimal.Decimal  `json:"pending_amount"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	CorrectedCost *decimal.Decimal `json:"corrected_acquisition_cost,omitempty"`
	MarginPct     *decimal.Decimal `json:"margin_pct,omitempty"`
}

// MonthDetail is the single-current-month view. The grand margin is a
// weighted average (sum of totals over sum of corrected costs), not an
// unweighted mean of per-property percentages.
type MonthDetail struct {
	Period       string           `json:"period"`
	Rows         []MonthDetailRow `json:"rows"`
	TotalReal    decimal.Decimal  `json:"total_real"`
	TotalPending decimal.Decimal  `json:"total_pending"`
	GrandTotal   decimal.Decimal  `json:"grand_total"`
	MarginPct    *decimal.Decimal `json:"margin_pct,omitempty"`
}

// PropertyIPCARow is one property's figures in the IPCA pivot view:
// revenue, expenses and net across the requested periods, with the
// margin over the inflation-corrected acquisition cost.
type PropertyIPCARow struct {
	PropertyID    string           `json:"property_id"`
	PropertyName  string           `json:"property_name"`
	Revenue       decimal.Decimal  `json:"revenue"`
	Expenses      decimal.Decimal  `json:"expenses"`
	Net           decimal.Decimal  `json:"net"`
	CorrectedCost *decimal.Decimal `json:"corrected_acquisition_cost,omitempty"`
	MarginPct     *decimal.Decimal `json:"margin_pct,omitempty"`
}

// IPCAPivot is the response of GET /api/analytics/pivot-with-ipca.
type IPCAPivot struct {
	Periods       []string          `json:"periods"`
	Rows          []PropertyIPCARow `json:"rows"`
	TotalRevenue  decimal.Decimal   `json:"total_revenue"`
	TotalExpenses decimal.Decimal   `json:"total_expenses"`
	TotalNet      decimal.Decimal   `json:"total_net"`
	MarginPct     *decimal.Decimal  `json:"margin_pct,omitempty"`
}

// PeriodTransactions groups the raw filtered transactions of one
// period, feeding the frontend pivot.
type PeriodTransactions struct {
	Period       string        `json:"period"`
	Transactions []Transaction `json:"transactions"`
}

// ============================================================
// Cash flow
// ============================================================

// Cash-flow entry kinds, in tie-break order for same-day events.
const (
	CashFlowBaseline    = "baseline"
	CashFlowTransaction = "transaction"
	CashFlowAdjustment  = "adjustment"
)

// CashFlowEntry is one event in the running-balance statement.
type CashFlowEntry struct {
	Date        time.Time       `json:"date"`
	Kind        string          `json:"kind"`
	RefID       string          `json:"ref_id"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"` // signed contribution
	Balance     decimal.Decimal `json:"balance"`
}

// CashFlowStatement is the running-balance view: seeded by the active
// baseline's total balance at its marco date, transactions strictly
// before the marco date excluded, adjustments folded in at their date.
type CashFlowStatement struct {
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Entries        []CashFlowEntry `json:"entries"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}

// ============================================================
// Monetary correction
// ============================================================

// Correction is the result of an index lookup: a historical principal
// restated to the reference month.
type Correction struct {
	CorrectedValue   decimal.Decimal `json:"corrected_value"`
	CorrectionFactor decimal.Decimal `json:"correction_factor"`
	ReferenceMonth   string          `json:"reference_month"` // "MM/YYYY"
}

// ============================================================
// Generic API response wrappers
// ============================================================

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	LatencyMs     int64   `json:"latencyMs"`
	UptimePercent float64 `json:"uptimePercent"`
	LastChecked   string  `json:"lastChecked"`
}

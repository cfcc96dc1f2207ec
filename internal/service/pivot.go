package service

import (
	"sort"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// The aggregation engine is a set of pure functions over already
// fetched data. The reference date (asOf) and the active baseline are
// explicit parameters, never ambient state, so every view is
// deterministic and testable without clock mocking.

// newCollator returns a pt-BR collator for property name ordering.
// Collators carry internal buffers and are not safe for concurrent
// use, so each sort gets its own.
func newCollator() *collate.Collator {
	return collate.New(language.BrazilianPortuguese)
}

// ============================================================
// Multi-period pivot
// ============================================================

// BuildPivot aggregates the filtered transactions into the per-property
// / per-period pivot. propertyNames maps property id to display name.
//
// Rows exist only for properties with at least one matching transaction;
// there is no zero-fill row. Requesting zero periods yields an empty
// table, not an error. Every accumulation step rounds to monetary
// precision, and all iteration that feeds output order is over sorted
// slices, so identical inputs produce bit-identical tables.
func BuildPivot(txs []domain.Transaction, propertyNames map[string]string, periods []domain.Period, filter PivotFilter) domain.PivotTable {
	sorted := make([]domain.Period, len(periods))
	copy(sorted, periods)
	domain.SortPeriods(sorted)

	keys := make([]string, len(sorted))
	requested := make(map[string]bool, len(sorted))
	for i, p := range sorted {
		keys[i] = p.String()
		requested[p.String()] = true
	}

	table := domain.PivotTable{
		Periods:      keys,
		Rows:         []domain.PivotRow{},
		ColumnTotals: make(map[string]decimal.Decimal, len(keys)),
	}
	if len(sorted) == 0 {
		return table
	}

	rowsByProperty := make(map[string]*domain.PivotRow)
	for _, tx := range txs {
		key := domain.PeriodOf(tx.Date).String()
		if !requested[key] {
			continue
		}
		if !filter.Match(tx) {
			continue
		}
		row, ok := rowsByProperty[tx.PropertyID]
		if !ok {
			name := propertyNames[tx.PropertyID]
			if name == "" {
				name = tx.PropertyID
			}
			row = &domain.PivotRow{
				PropertyID:   tx.PropertyID,
				PropertyName: name,
				MonthlyData:  make(map[string]decimal.Decimal, len(keys)),
			}
			rowsByProperty[tx.PropertyID] = row
		}
		row.MonthlyData[key] = domain.AddMoney(row.MonthlyData[key], domain.SignedAmount(tx))
	}

	rows := make([]domain.PivotRow, 0, len(rowsByProperty))
	for _, row := range rowsByProperty {
		total := decimal.Zero
		for _, key := range keys {
			if v, ok := row.MonthlyData[key]; ok {
				total = domain.AddMoney(total, v)
			}
		}
		row.Total = total
		row.MonthlyAverage = domain.DivMoney(total, int64(len(keys)))
		rows = append(rows, *row)
	}
	SortRows(rows, SortState{})
	table.Rows = rows

	for _, key := range keys {
		colTotal := decimal.Zero
		for _, row := range rows {
			if v, ok := row.MonthlyData[key]; ok {
				colTotal = domain.AddMoney(colTotal, v)
			}
		}
		table.ColumnTotals[key] = colTotal
	}
	grand := decimal.Zero
	for _, row := range rows {
		grand = domain.AddMoney(grand, row.Total)
	}
	table.GrandTotal = grand
	table.MonthlyAverage = domain.DivMoney(grand, int64(len(keys)))
	return table
}

// ============================================================
// Row sorting
// ============================================================

// Sort keys understood by SortRows. Any other value is treated as a
// period column key ("MM/YYYY").
const (
	SortByProperty = "property"
	SortByTotal    = "total"
	SortByAverage  = "average"
)

// SortState is the active sort of a pivot view. The zero value means
// no explicit sort: rows order by property name, ascending.
type SortState struct {
	Key  string `json:"key"`
	Desc bool   `json:"desc"`
}

// ToggleSort applies a sort-key click: re-invoking the active key flips
// the direction, a new key starts ascending.
func ToggleSort(state SortState, key string) SortState {
	if state.Key == key {
		state.Desc = !state.Desc
		return state
	}
	return SortState{Key: key}
}

// SortRows sorts pivot rows in place according to the sort state.
// Property names compare with pt-BR collation; numeric keys compare by
// value with a name tie-break so the order stays stable.
func SortRows(rows []domain.PivotRow, state SortState) {
	coll := newCollator()
	byName := func(a, b domain.PivotRow) int {
		if c := coll.CompareString(a.PropertyName, b.PropertyName); c != 0 {
			return c
		}
		return coll.CompareString(a.PropertyID, b.PropertyID)
	}

	var value func(r domain.PivotRow) decimal.Decimal
	switch state.Key {
	case "", SortByProperty:
		sort.SliceStable(rows, func(i, j int) bool {
			c := byName(rows[i], rows[j])
			if state.Desc {
				return c > 0
			}
			return c < 0
		})
		return
	case SortByTotal:
		value = func(r domain.PivotRow) decimal.Decimal { return r.Total }
	case SortByAverage:
		value = func(r domain.PivotRow) decimal.Decimal { return r.MonthlyAverage }
	default: // a period column
		key := state.Key
		value = func(r domain.PivotRow) decimal.Decimal { return r.MonthlyData[key] }
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := value(rows[i]).Cmp(value(rows[j]))
		if c == 0 {
			c = byName(rows[i], rows[j])
		}
		if state.Desc {
			return c > 0
		}
		return c < 0
	})
}

// ============================================================
// Single-current-month detail
// ============================================================

// IsCurrentMonth reports whether the single requested period equals the
// calendar month of asOf. Only then does the bespoke real/pending/total
// layout apply; a single *past* month keeps the generic pivot layout.
func IsCurrentMonth(periods []domain.Period, asOf time.Time) bool {
	return len(periods) == 1 && periods[0] == domain.PeriodOf(asOf)
}

// BuildMonthDetail computes the current-month three-way split per
// property plus the margin over the IPCA-corrected acquisition cost.
// corrections maps property id to its correction result; a missing or
// zero-valued corrected cost leaves that property's margin nil.
//
// The grand margin is weighted: sum of month totals over sum of
// corrected costs, restricted to properties with a non-zero corrected
// cost. An unweighted mean of percentages would overweight small
// properties.
func BuildMonthDetail(txs []domain.Transaction, propertyNames map[string]string, period domain.Period, filter PivotFilter, corrections map[string]*domain.Correction) domain.MonthDetail {
	detail := domain.MonthDetail{Period: period.String(), Rows: []domain.MonthDetailRow{}}

	rowsByProperty := make(map[string]*domain.MonthDetailRow)
	for _, tx := range txs {
		if !period.Contains(tx.Date) || !filter.Match(tx) {
			continue
		}
		row, ok := rowsByProperty[tx.PropertyID]
		if !ok {
			name := propertyNames[tx.PropertyID]
			if name == "" {
				name = tx.PropertyID
			}
			row = &domain.MonthDetailRow{PropertyID: tx.PropertyID, PropertyName: name}
			rowsByProperty[tx.PropertyID] = row
		}
		if tx.Status == domain.StatusPending {
			row.PendingAmount = domain.AddMoney(row.PendingAmount, domain.SignedAmount(tx))
		} else {
			row.RealAmount = domain.AddMoney(row.RealAmount, domain.SignedAmount(tx))
		}
	}

	rows := make([]domain.MonthDetailRow, 0, len(rowsByProperty))
	for _, row := range rowsByProperty {
		row.TotalAmount = domain.AddMoney(row.RealAmount, row.PendingAmount)
		if corr := corrections[row.PropertyID]; corr != nil && !corr.CorrectedValue.IsZero() {
			cost := corr.CorrectedValue
			row.CorrectedCost = &cost
			margin := marginPct(row.TotalAmount, cost)
			row.MarginPct = &margin
		}
		rows = append(rows, *row)
	}
	coll := newCollator()
	sort.SliceStable(rows, func(i, j int) bool {
		return coll.CompareString(rows[i].PropertyName, rows[j].PropertyName) < 0
	})
	detail.Rows = rows

	weightedTotal := decimal.Zero
	weightedCost := decimal.Zero
	for _, row := range rows {
		detail.TotalReal = domain.AddMoney(detail.TotalReal, row.RealAmount)
		detail.TotalPending = domain.AddMoney(detail.TotalPending, row.PendingAmount)
		detail.GrandTotal = domain.AddMoney(detail.GrandTotal, row.TotalAmount)
		if row.CorrectedCost != nil {
			weightedTotal = domain.AddMoney(weightedTotal, row.TotalAmount)
			weightedCost = domain.AddMoney(weightedCost, *row.CorrectedCost)
		}
	}
	if !weightedCost.IsZero() {
		margin := marginPct(weightedTotal, weightedCost)
		detail.MarginPct = &margin
	}
	return detail
}

func marginPct(total, cost decimal.Decimal) decimal.Decimal {
	return domain.RoundMoney(total.Div(cost).Mul(decimal.NewFromInt(100)))
}

// ============================================================
// IPCA pivot
// ============================================================

// BuildIPCAPivot aggregates revenue/expense/net per property across the
// requested periods and derives the margin over the corrected
// acquisition cost. Expenses carry their positive magnitude; Net is
// revenue minus expenses, accumulated with per-step rounding.
func BuildIPCAPivot(txs []domain.Transaction, propertyNames map[string]string, periods []domain.Period, filter PivotFilter, corrections map[string]*domain.Correction) domain.IPCAPivot {
	sorted := make([]domain.Period, len(periods))
	copy(sorted, periods)
	domain.SortPeriods(sorted)

	pivot := domain.IPCAPivot{Rows: []domain.PropertyIPCARow{}}
	requested := make(map[string]bool, len(sorted))
	for _, p := range sorted {
		pivot.Periods = append(pivot.Periods, p.String())
		requested[p.String()] = true
	}
	if len(sorted) == 0 {
		pivot.Periods = []string{}
		return pivot
	}

	rowsByProperty := make(map[string]*domain.PropertyIPCARow)
	for _, tx := range txs {
		if !requested[domain.PeriodOf(tx.Date).String()] || !filter.Match(tx) {
			continue
		}
		row, ok := rowsByProperty[tx.PropertyID]
		if !ok {
			name := propertyNames[tx.PropertyID]
			if name == "" {
				name = tx.PropertyID
			}
			row = &domain.PropertyIPCARow{PropertyID: tx.PropertyID, PropertyName: name}
			rowsByProperty[tx.PropertyID] = row
		}
		if tx.Type == domain.TransactionExpense {
			row.Expenses = domain.AddMoney(row.Expenses, tx.Amount)
		} else {
			row.Revenue = domain.AddMoney(row.Revenue, tx.Amount)
		}
	}

	rows := make([]domain.PropertyIPCARow, 0, len(rowsByProperty))
	for _, row := range rowsByProperty {
		row.Net = domain.AddMoney(row.Revenue, row.Expenses.Neg())
		if corr := corrections[row.PropertyID]; corr != nil && !corr.CorrectedValue.IsZero() {
			cost := corr.CorrectedValue
			row.CorrectedCost = &cost
			margin := marginPct(row.Net, cost)
			row.MarginPct = &margin
		}
		rows = append(rows, *row)
	}
	coll := newCollator()
	sort.SliceStable(rows, func(i, j int) bool {
		return coll.CompareString(rows[i].PropertyName, rows[j].PropertyName) < 0
	})
	pivot.Rows = rows

	weightedNet := decimal.Zero
	weightedCost := decimal.Zero
	for _, row := range rows {
		pivot.TotalRevenue = domain.AddMoney(pivot.TotalRevenue, row.Revenue)
		pivot.TotalExpenses = domain.AddMoney(pivot.TotalExpenses, row.Expenses)
		pivot.TotalNet = domain.AddMoney(pivot.TotalNet, row.Net)
		if row.CorrectedCost != nil {
			weightedNet = domain.AddMoney(weightedNet, row.Net)
			weightedCost = domain.AddMoney(weightedCost, *row.CorrectedCost)
		}
	}
	if !weightedCost.IsZero() {
		margin := marginPct(weightedNet, weightedCost)
		pivot.MarginPct = &margin
	}
	return pivot
}

// ============================================================
// Raw transactions grouped by period
// ============================================================

// GroupTransactionsByPeriod returns the filtered transactions of each
// requested period, periods in chronological order, transactions in
// date order with an id tie-break.
func GroupTransactionsByPeriod(txs []domain.Transaction, periods []domain.Period, filter PivotFilter) []domain.PeriodTransactions {
	sorted := make([]domain.Period, len(periods))
	copy(sorted, periods)
	domain.SortPeriods(sorted)

	out := make([]domain.PeriodTransactions, 0, len(sorted))
	for _, p := range sorted {
		group := domain.PeriodTransactions{Period: p.String(), Transactions: []domain.Transaction{}}
		for _, tx := range txs {
			if p.Contains(tx.Date) && filter.Match(tx) {
				group.Transactions = append(group.Transactions, tx)
			}
		}
		sort.SliceStable(group.Transactions, func(i, j int) bool {
			a, b := group.Transactions[i], group.Transactions[j]
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.ID < b.ID
		})
		out = append(out, group)
	}
	return out
}

// ============================================================
// Cash flow
// ============================================================

// BuildCashFlow computes the running-balance statement. Transactions
// dated strictly before the active baseline's marco date are excluded
// (already captured in the baseline snapshot); the baseline's total
// balance seeds the balance at the marco date. Adjustments fold in at
// their adjustment date regardless of baseline linkage. Events on the
// same day order baseline, then transactions, then adjustments, with an
// id tie-break.
//
// Entries dated before from still move the balance; they surface only
// through OpeningBalance. A nil baseline means the balance starts from
// zero and no transaction is excluded.
func BuildCashFlow(txs []domain.Transaction, baseline *domain.MarcoZero, adjustments []domain.Adjustment, from, to time.Time) domain.CashFlowStatement {
	kindRank := map[string]int{
		domain.CashFlowBaseline:    0,
		domain.CashFlowTransaction: 1,
		domain.CashFlowAdjustment:  2,
	}

	var events []domain.CashFlowEntry
	if baseline != nil {
		events = append(events, domain.CashFlowEntry{
			Date:        baseline.MarcoDate,
			Kind:        domain.CashFlowBaseline,
			RefID:       baseline.ID,
			Description: "marco zero",
			Amount:      baseline.TotalBalance,
		})
	}
	for _, tx := range txs {
		if baseline != nil && tx.Date.Before(baseline.MarcoDate) {
			continue
		}
		if tx.Date.After(to) {
			continue
		}
		events = append(events, domain.CashFlowEntry{
			Date:        tx.Date,
			Kind:        domain.CashFlowTransaction,
			RefID:       tx.ID,
			Description: tx.Description,
			Amount:      domain.SignedAmount(tx),
		})
	}
	for _, adj := range adjustments {
		if adj.AdjustmentDate.After(to) {
			continue
		}
		events = append(events, domain.CashFlowEntry{
			Date:        adj.AdjustmentDate,
			Kind:        domain.CashFlowAdjustment,
			RefID:       adj.ID,
			Description: adj.Description,
			Amount:      adj.Amount,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if kindRank[a.Kind] != kindRank[b.Kind] {
			return kindRank[a.Kind] < kindRank[b.Kind]
		}
		return a.RefID < b.RefID
	})

	stmt := domain.CashFlowStatement{Entries: []domain.CashFlowEntry{}}
	balance := decimal.Zero
	for _, ev := range events {
		balance = domain.AddMoney(balance, ev.Amount)
		ev.Balance = balance
		if ev.Date.Before(from) {
			stmt.OpeningBalance = balance
			continue
		}
		stmt.Entries = append(stmt.Entries, ev)
	}
	stmt.ClosingBalance = balance
	return stmt
}

package service

import (
	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
)

// ============================================================
// Transaction type filter
// ============================================================

// TypeFilter is the revenue/expense selection of an aggregation
// request. It is never empty: toggling off the last selected type
// auto-selects the complementary one.
type TypeFilter struct {
	revenue bool
	expense bool
}

// NewTypeFilter builds a filter from the requested type names. An empty
// request selects both types (the default).
func NewTypeFilter(types []string) TypeFilter {
	f := TypeFilter{}
	for _, t := range types {
		switch t {
		case domain.TransactionRevenue:
			f.revenue = true
		case domain.TransactionExpense:
			f.expense = true
		}
	}
	if !f.revenue && !f.expense {
		f.revenue = true
		f.expense = true
	}
	return f
}

// Toggle flips one type's selection. Removing the last selected type
// auto-selects the other, keeping the filter non-empty.
func (f TypeFilter) Toggle(txType string) TypeFilter {
	switch txType {
	case domain.TransactionRevenue:
		f.revenue = !f.revenue
		if !f.revenue && !f.expense {
			f.expense = true
		}
	case domain.TransactionExpense:
		f.expense = !f.expense
		if !f.revenue && !f.expense {
			f.revenue = true
		}
	}
	return f
}

// Allows reports whether the type passes the filter.
func (f TypeFilter) Allows(txType string) bool {
	switch txType {
	case domain.TransactionRevenue:
		return f.revenue
	case domain.TransactionExpense:
		return f.expense
	}
	return false
}

// Selected returns the selected type names, revenue first.
func (f TypeFilter) Selected() []string {
	var out []string
	if f.revenue {
		out = append(out, domain.TransactionRevenue)
	}
	if f.expense {
		out = append(out, domain.TransactionExpense)
	}
	return out
}

// ============================================================
// Category filter with composite unions
// ============================================================

// compositeCategories maps a composite filter tag to the raw categories
// it stands for. Unions are resolved once at filter construction, never
// inside the aggregation loop.
var compositeCategories = map[string][]string{
	"aluguel_total": {"aluguel", "aluguel_airbnb", "aluguel_temporada"},
	"taxas_total":   {"condominio", "iptu", "taxa_administracao"},
}

// ExpandCategories resolves composite tags into the flat set of raw
// categories. Unknown tags pass through as themselves.
func ExpandCategories(tags []string) map[string]bool {
	out := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if raw, ok := compositeCategories[tag]; ok {
			for _, c := range raw {
				out[c] = true
			}
			continue
		}
		out[tag] = true
	}
	return out
}

// ============================================================
// Pivot filter
// ============================================================

// PivotFilter narrows the transaction set feeding an aggregation:
// optional property ids, the (never empty) type selection, and an
// optional category set. Empty PropertyIDs/Categories mean "all".
type PivotFilter struct {
	PropertyIDs map[string]bool
	Types       TypeFilter
	Categories  map[string]bool
}

// NewPivotFilter builds a filter from raw request parameters.
func NewPivotFilter(propertyIDs, types, categories []string) PivotFilter {
	f := PivotFilter{Types: NewTypeFilter(types)}
	if len(propertyIDs) > 0 {
		f.PropertyIDs = make(map[string]bool, len(propertyIDs))
		for _, id := range propertyIDs {
			f.PropertyIDs[id] = true
		}
	}
	if len(categories) > 0 {
		f.Categories = ExpandCategories(categories)
	}
	return f
}

// Match reports whether the transaction passes all filter dimensions.
func (f PivotFilter) Match(tx domain.Transaction) bool {
	if f.PropertyIDs != nil && !f.PropertyIDs[tx.PropertyID] {
		return false
	}
	if !f.Types.Allows(tx.Type) {
		return false
	}
	if f.Categories != nil && !f.Categories[tx.Category] {
		return false
	}
	return true
}

package handler

import (
	"net/http"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Analytics
// ============================================================

// pivotFilterFromQuery builds the filter from the propertyIds,
// transactionTypes and categories query parameters.
func pivotFilterFromQuery(r *http.Request) service.PivotFilter {
	return service.NewPivotFilter(
		parseCSVParam(r, "propertyIds"),
		parseCSVParam(r, "transactionTypes"),
		parseCSVParam(r, "categories"),
	)
}

func transactionsByPeriodsHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/analytics/transactions-by-periods")
		defer span.End()

		periods, err := parsePeriodsParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		grouped, err := svc.TransactionsByPeriods(ctx, periods, pivotFilterFromQuery(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, grouped)
	}
}

func pivotHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/analytics/pivot")
		defer span.End()

		periods, err := parsePeriodsParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		table, err := svc.Pivot(ctx, periods, pivotFilterFromQuery(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, table)
	}
}

func pivotWithIPCAHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/analytics/pivot-with-ipca")
		defer span.End()

		periods, err := parsePeriodsParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		pivot, err := svc.PivotWithIPCA(ctx, periods, pivotFilterFromQuery(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, pivot)
	}
}

// singleMonthResponse discriminates the two layouts the single-month
// view can take: the bespoke detailed breakdown for the current month,
// the generic pivot for any past month.
type singleMonthResponse struct {
	Layout      string              `json:"layout"` // "detailed" or "pivot"
	MonthDetail *domain.MonthDetail `json:"month_detail,omitempty"`
	Pivot       *domain.PivotTable  `json:"pivot,omitempty"`
}

func singleMonthDetailedHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/analytics/single-month-detailed")
		defer span.End()

		periods, err := parsePeriodsParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if len(periods) != 1 {
			writeError(w, http.StatusBadRequest, "exactly one month is required")
			return
		}

		detail, table, err := svc.SingleMonthDetailed(ctx, periods[0], pivotFilterFromQuery(r), time.Now().UTC())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp := singleMonthResponse{}
		if detail != nil {
			resp.Layout = "detailed"
			resp.MonthDetail = detail
		} else {
			resp.Layout = "pivot"
			resp.Pivot = table
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cashFlowHandler(svc *service.AnalyticsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/analytics/cash-flow")
		defer span.End()

		periods, err := parsePeriodsParam(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		statement, err := svc.CashFlow(ctx, periods)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, statement)
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Reconciliation adjustments
// ============================================================

func createAdjustmentHandler(svc *service.ReconciliationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/reconciliation")
		defer span.End()

		var req domain.CreateAdjustmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		adj, err := svc.Create(ctx, &req, time.Now().UTC())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, adj)
	}
}

func listAdjustmentsHandler(svc *service.ReconciliationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/reconciliation")
		defer span.End()

		adjustments, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, adjustments)
	}
}

func deleteAdjustmentHandler(svc *service.ReconciliationService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/reconciliation/{adjustmentId}")
		defer span.End()

		adjustmentID := chi.URLParam(r, "adjustmentId")
		if err := svc.Delete(ctx, adjustmentID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("adjustment deleted",
			zap.String("adjustment_id", adjustmentID),
			zap.String("user_id", UserIDFromContext(ctx)),
		)
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "adjustment deleted"})
	}
}

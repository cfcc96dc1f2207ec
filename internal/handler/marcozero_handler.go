package handler

import (
	"encoding/json"
	"net/http"

	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Marco Zero
// ============================================================

func getActiveMarcoZeroHandler(svc *service.MarcoZeroService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/marco-zero/active")
		defer span.End()

		baseline, err := svc.GetActive(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if baseline == nil {
			// No baseline declared yet; an explicit null keeps the
			// frontend's "not configured" state trivial.
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, baseline)
	}
}

func marcoZeroHistoryHandler(svc *service.MarcoZeroService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/marco-zero/history")
		defer span.End()

		history, err := svc.GetHistory(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}

func setMarcoZeroHandler(svc *service.MarcoZeroService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/marco-zero")
		defer span.End()

		var req domain.SetMarcoZeroRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		baseline, err := svc.SetBaseline(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		logger.Info("baseline declared",
			zap.String("marco_zero_id", baseline.ID),
			zap.String("user_id", UserIDFromContext(ctx)),
		)
		writeJSON(w, http.StatusCreated, baseline)
	}
}

package handler

import (
	"net/http"

	"github.com/imovelgestor/imovel-gestor-go/internal/port"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Property catalog (read-only proxy)
// ============================================================

func listPropertiesHandler(store port.PropertyStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/properties")
		defer span.End()

		properties, err := store.ListProperties(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, properties)
	}
}

func getPropertyHandler(store port.PropertyStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/properties/{propertyId}")
		defer span.End()

		property, err := store.GetProperty(ctx, chi.URLParam(r, "propertyId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, property)
	}
}

package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/auth"
	"github.com/datagrade-io/datagrade-engine/pkg/services"
)

// DatasetsHandler serves dataset reads.
type DatasetsHandler struct {
	auditService services.AuditService
	logger       *zap.Logger
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(auditService services.AuditService, logger *zap.Logger) *DatasetsHandler {
	return &DatasetsHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// RegisterRoutes registers the dataset routes on the given mux.
func (h *DatasetsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/datasets/{id}", authMiddleware.RequireAuth(h.Get))
}

// Get handles GET /api/datasets/{id}
func (h *DatasetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		if werr := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	dataset, err := h.auditService.GetDataset(r.Context(), datasetID, userID)
	if err != nil {
		writeAuditError(w, h.logger, datasetID, err, "get")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: dataset}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

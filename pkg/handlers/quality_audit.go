package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/apperrors"
	"github.com/datagrade-io/datagrade-engine/pkg/auth"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
	"github.com/datagrade-io/datagrade-engine/pkg/services"
)

// AuditStatusResponse for GET /api/datasets/{id}/quality-audit/status
type AuditStatusResponse struct {
	DatasetID   uuid.UUID            `json:"dataset_id"`
	Status      models.QualityStatus `json:"status"`
	RequestedAt *time.Time           `json:"requested_at,omitempty"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Error       *models.AuditError   `json:"error,omitempty"`
}

// AuditReportResponse for GET /api/datasets/{id}/quality-audit/report
type AuditReportResponse struct {
	DatasetID   uuid.UUID            `json:"dataset_id"`
	Status      models.QualityStatus `json:"status"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Report      *models.FinalReport  `json:"report"`
}

// QualityAuditHandler handles the quality audit HTTP surface.
type QualityAuditHandler struct {
	auditService services.AuditService
	logger       *zap.Logger
}

// NewQualityAuditHandler creates a new quality audit handler.
func NewQualityAuditHandler(auditService services.AuditService, logger *zap.Logger) *QualityAuditHandler {
	return &QualityAuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// RegisterRoutes registers the audit handler's routes on the given mux.
func (h *QualityAuditHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/datasets/{id}/quality-audit"

	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(h.Initiate))
	mux.HandleFunc("DELETE "+base, authMiddleware.RequireAuth(h.Reset))
	mux.HandleFunc("GET "+base+"/status", authMiddleware.RequireAuth(h.Status))
	mux.HandleFunc("GET "+base+"/report", authMiddleware.RequireAuth(h.Report))
}

// Initiate handles POST /api/datasets/{id}/quality-audit
// Returns 202 once the dataset is claimed and the worker task is enqueued.
func (h *QualityAuditHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := h.auditService.Initiate(r.Context(), datasetID, userID); err != nil {
		h.writeAuditError(w, datasetID, err, "initiate")
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, ApiResponse{
		Success: true,
		Data: AuditStatusResponse{
			DatasetID: datasetID,
			Status:    models.QualityStatusProcessing,
		},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Status handles GET /api/datasets/{id}/quality-audit/status
func (h *QualityAuditHandler) Status(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	dataset, err := h.auditService.GetDataset(r.Context(), datasetID, userID)
	if err != nil {
		h.writeAuditError(w, datasetID, err, "status")
		return
	}

	response := AuditStatusResponse{
		DatasetID:   dataset.ID,
		Status:      dataset.QualityStatus,
		RequestedAt: dataset.QualityAuditRequestedAt,
		CompletedAt: dataset.QualityAuditCompletedAt,
	}
	if dataset.QualityReport != nil {
		response.Error = dataset.QualityReport.Error
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Report handles GET /api/datasets/{id}/quality-audit/report
// Responds 202 while an audit is processing and 404 when no report exists.
func (h *QualityAuditHandler) Report(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	dataset, err := h.auditService.GetDataset(r.Context(), datasetID, userID)
	if err != nil {
		h.writeAuditError(w, datasetID, err, "report")
		return
	}

	if dataset.QualityStatus == models.QualityStatusProcessing {
		if err := WriteJSON(w, http.StatusAccepted, ApiResponse{
			Success: true,
			Message: "Audit in progress",
			Data: AuditStatusResponse{
				DatasetID:   dataset.ID,
				Status:      dataset.QualityStatus,
				RequestedAt: dataset.QualityAuditRequestedAt,
			},
		}); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
		return
	}

	if dataset.QualityReport == nil || dataset.QualityReport.Report == nil {
		h.writeError(w, http.StatusNotFound, "report_not_found", "No audit report exists for this dataset")
		return
	}

	response := AuditReportResponse{
		DatasetID:   dataset.ID,
		Status:      dataset.QualityStatus,
		CompletedAt: dataset.QualityAuditCompletedAt,
		Report:      dataset.QualityReport.Report,
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Reset handles DELETE /api/datasets/{id}/quality-audit
func (h *QualityAuditHandler) Reset(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	userID, err := auth.RequireUserIDFromContext(r.Context())
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if err := h.auditService.Reset(r.Context(), datasetID, userID); err != nil {
		h.writeAuditError(w, datasetID, err, "reset")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data:    map[string]string{"status": string(models.QualityStatusNotRun)},
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *QualityAuditHandler) writeAuditError(w http.ResponseWriter, datasetID uuid.UUID, err error, op string) {
	writeAuditError(w, h.logger, datasetID, err, op)
}

func (h *QualityAuditHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	if err := ErrorResponse(w, status, code, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeAuditError maps audit service errors onto the HTTP error vocabulary.
// Shared by every handler that calls into the audit service.
func writeAuditError(w http.ResponseWriter, logger *zap.Logger, datasetID uuid.UUID, err error, op string) {
	writeErr := func(status int, code, message string) {
		if werr := ErrorResponse(w, status, code, message); werr != nil {
			logger.Error("Failed to write error response", zap.Error(werr))
		}
	}

	var precondition *apperrors.PreconditionError
	switch {
	case errors.As(err, &precondition):
		if werr := ErrorResponseDetails(w, http.StatusBadRequest, precondition.Code, precondition.Message, precondition.Columns); werr != nil {
			logger.Error("Failed to write error response", zap.Error(werr))
		}
	case errors.Is(err, apperrors.ErrNotFound):
		writeErr(http.StatusNotFound, "dataset_not_found", "Dataset not found")
	case errors.Is(err, apperrors.ErrForbidden):
		writeErr(http.StatusForbidden, "forbidden", "Not permitted to access this dataset")
	case errors.Is(err, apperrors.ErrAuditInProgress):
		writeErr(http.StatusConflict, "AUDIT_IN_PROGRESS", "An audit is already running for this dataset")
	case errors.Is(err, apperrors.ErrAuditComplete):
		writeErr(http.StatusConflict, "AUDIT_ALREADY_COMPLETE", "Audit already complete; reset before re-running")
	case errors.Is(err, apperrors.ErrResetWhileRunning):
		writeErr(http.StatusConflict, "AUDIT_IN_PROGRESS", "Cannot reset while an audit is running")
	default:
		logger.Error("Quality audit operation failed",
			zap.String("dataset_id", datasetID.String()),
			zap.String("operation", op),
			zap.Error(err))
		writeErr(http.StatusInternalServerError, "internal_error", err.Error())
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/apperrors"
	"github.com/datagrade-io/datagrade-engine/pkg/services"
)

// AuditTaskHandler receives queued audit task deliveries on the internal
// route. Delivery is at-least-once; this endpoint always acknowledges with
// 200 so the queue never redelivers a task whose outcome is already recorded
// in the dataset row. Returning non-2xx here would retry runs that fail
// deterministically.
type AuditTaskHandler struct {
	worker services.AuditWorker
	logger *zap.Logger
}

// NewAuditTaskHandler creates the internal task delivery handler.
func NewAuditTaskHandler(worker services.AuditWorker, logger *zap.Logger) *AuditTaskHandler {
	return &AuditTaskHandler{
		worker: worker,
		logger: logger,
	}
}

// RegisterRoutes registers the internal task route on the given mux.
func (h *AuditTaskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+services.AuditWorkerPath, h.HandleTask)
}

// HandleTask handles POST deliveries from the task queue.
func (h *AuditTaskHandler) HandleTask(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With(
		zap.String("task_id", r.Header.Get("X-Task-ID")),
		zap.String("delivery_attempt", r.Header.Get("X-Delivery-Attempt")))

	var payload services.AuditTaskPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Error("Rejecting undecodable audit task payload", zap.Error(err))
		h.ack(w, "invalid_payload")
		return
	}

	err := h.worker.ProcessTask(r.Context(), payload)
	switch {
	case err == nil:
		h.ack(w, "processed")
	case errors.Is(err, apperrors.ErrStaleTask):
		h.ack(w, "stale")
	case errors.Is(err, apperrors.ErrInvalidPayload):
		log.Error("Rejecting invalid audit task payload", zap.Error(err))
		h.ack(w, "invalid_payload")
	default:
		// The worker already recorded the failure on the dataset.
		log.Warn("Audit task processing failed",
			zap.String("dataset_id", payload.DatasetID.String()),
			zap.Error(err))
		h.ack(w, "failed")
	}
}

func (h *AuditTaskHandler) ack(w http.ResponseWriter, outcome string) {
	if err := WriteJSON(w, http.StatusOK, map[string]string{"outcome": outcome}); err != nil {
		h.logger.Error("Failed to write task acknowledgement", zap.Error(err))
	}
}

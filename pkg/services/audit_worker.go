package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/apperrors"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
	"github.com/datagrade-io/datagrade-engine/pkg/prompts"
	"github.com/datagrade-io/datagrade-engine/pkg/repositories"
)

// AuditWorker runs the audit pipeline for a delivered task. Delivery is
// at-least-once, so ProcessTask must tolerate duplicates and stale tasks.
type AuditWorker interface {
	ProcessTask(ctx context.Context, payload AuditTaskPayload) error
}

type auditWorker struct {
	datasets       repositories.DatasetRepository
	analyzer       StatisticalAnalyzer
	interpretation InterpretationStage
	synthesis      SynthesisStage
	finalizer      StatusFinalizer
	logger         *zap.Logger
}

// NewAuditWorker creates the worker that executes the pipeline stages.
func NewAuditWorker(
	datasets repositories.DatasetRepository,
	analyzer StatisticalAnalyzer,
	interpretation InterpretationStage,
	synthesis SynthesisStage,
	finalizer StatusFinalizer,
	logger *zap.Logger,
) AuditWorker {
	return &auditWorker{
		datasets:       datasets,
		analyzer:       analyzer,
		interpretation: interpretation,
		synthesis:      synthesis,
		finalizer:      finalizer,
		logger:         logger.Named("audit-worker"),
	}
}

// ProcessTask runs the full pipeline: statistical analysis, interpretation,
// synthesis, finalization. Returning an error here means the run failed and
// the failure has been (or could not be) recorded; the transport layer still
// acknowledges the task so the queue does not redeliver a doomed run.
func (w *auditWorker) ProcessTask(ctx context.Context, payload AuditTaskPayload) error {
	if payload.DatasetID == uuid.Nil {
		return fmt.Errorf("%w: missing datasetId", apperrors.ErrInvalidPayload)
	}
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing userId", apperrors.ErrInvalidPayload)
	}

	log := w.logger.With(zap.String("dataset_id", payload.DatasetID.String()))

	dataset, err := w.datasets.Get(ctx, payload.DatasetID)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	// A reset or a duplicate delivery after completion leaves the dataset in
	// a status other than processing. The task is stale; do nothing.
	if dataset.QualityStatus != models.QualityStatusProcessing {
		log.Info("skipping stale audit task",
			zap.String("status", string(dataset.QualityStatus)))
		return fmt.Errorf("%w: dataset status is %s", apperrors.ErrStaleTask, dataset.QualityStatus)
	}

	started := time.Now()
	log.Info("quality audit started")

	report, err := w.runPipeline(ctx, dataset)
	if err != nil {
		w.recordFailure(ctx, log, payload.DatasetID, err)
		return err
	}

	status, err := w.finalizer.Finalize(ctx, payload.DatasetID, report)
	if err != nil {
		w.recordFailure(ctx, log, payload.DatasetID, err)
		return err
	}

	log.Info("quality audit completed",
		zap.String("status", string(status)),
		zap.Int("quality_score", report.QualityScore.Int()),
		zap.Duration("elapsed", time.Since(started)))

	return nil
}

func (w *auditWorker) runPipeline(ctx context.Context, dataset *models.Dataset) (*models.FinalReport, error) {
	programmatic, err := w.analyzer.Analyze(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("statistical analysis: %w", err)
	}

	programmaticJSON, err := json.Marshal(programmatic)
	if err != nil {
		return nil, fmt.Errorf("encode programmatic report: %w", err)
	}

	dctx := buildDatasetContext(dataset)

	interpretation, err := w.interpretation.Interpret(ctx, dctx, string(programmaticJSON))
	if err != nil {
		return nil, err
	}

	report, err := w.synthesis.Synthesize(ctx, dctx, string(programmaticJSON), interpretation)
	if err != nil {
		return nil, err
	}

	return report, nil
}

// recordFailure persists the error status and envelope. The guarded update is
// a no-op when the dataset has already left processing, for example because a
// duplicate delivery finished the run first.
func (w *auditWorker) recordFailure(ctx context.Context, log *zap.Logger, datasetID uuid.UUID, cause error) {
	report := &models.QualityReport{
		Error: &models.AuditError{
			Message:   cause.Error(),
			Timestamp: time.Now(),
		},
	}

	// The pipeline may have failed because the delivery context was canceled
	// (client timeout, server drain). The failure write must still land or the
	// dataset is stuck in processing, so detach it from the request context.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	updated, err := w.datasets.CompleteAudit(writeCtx, datasetID, models.QualityStatusError, time.Now(), report)
	if err != nil {
		log.Error("failed to record audit failure", zap.Error(err), zap.NamedError("cause", cause))
		return
	}
	if !updated {
		log.Warn("audit failure not recorded; dataset no longer processing", zap.NamedError("cause", cause))
		return
	}

	log.Warn("quality audit failed", zap.Error(cause))
}

func buildDatasetContext(dataset *models.Dataset) prompts.DatasetContext {
	columns := make([]prompts.ColumnNote, 0, len(dataset.SchemaInfo))
	for _, col := range dataset.SchemaInfo {
		columns = append(columns, prompts.ColumnNote{
			Name:        col.Name,
			DataType:    col.DataType,
			Description: dataset.ColumnDescriptions[col.Name],
		})
	}

	return prompts.DatasetContext{
		ID:           dataset.ID.String(),
		Name:         dataset.Name,
		Description:  dataset.Description,
		FileType:     dataset.FileType,
		Columns:      columns,
		ContextNotes: dataset.ContextNotes,
	}
}

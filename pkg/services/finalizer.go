package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/models"
	"github.com/datagrade-io/datagrade-engine/pkg/repositories"
)

// Quality score thresholds for the coarse status.
const (
	scoreOKThreshold      = 80
	scoreWarningThreshold = 50
)

// DetermineStatus maps a final report's quality score to the coarse status.
// A missing report or a zero score means the audit could not establish
// quality and is reported as error.
func DetermineStatus(report *models.FinalReport) models.QualityStatus {
	if report == nil || report.QualityScore == 0 {
		return models.QualityStatusError
	}
	score := report.QualityScore.Int()
	switch {
	case score >= scoreOKThreshold:
		return models.QualityStatusOK
	case score >= scoreWarningThreshold:
		return models.QualityStatusWarning
	default:
		return models.QualityStatusError
	}
}

// StatusFinalizer persists a completed audit: status, completion time and
// report are written in one statement so readers never observe a report
// without its matching terminal status.
type StatusFinalizer interface {
	Finalize(ctx context.Context, datasetID uuid.UUID, report *models.FinalReport) (models.QualityStatus, error)
}

type statusFinalizer struct {
	datasets repositories.DatasetRepository
	logger   *zap.Logger
}

// NewStatusFinalizer creates a finalizer persisting through the repository.
func NewStatusFinalizer(datasets repositories.DatasetRepository, logger *zap.Logger) StatusFinalizer {
	return &statusFinalizer{
		datasets: datasets,
		logger:   logger.Named("finalizer"),
	}
}

// Finalize writes the terminal status and report.
func (f *statusFinalizer) Finalize(ctx context.Context, datasetID uuid.UUID, report *models.FinalReport) (models.QualityStatus, error) {
	status := DetermineStatus(report)
	completedAt := time.Now()

	updated, err := f.datasets.CompleteAudit(ctx, datasetID, status, completedAt, &models.QualityReport{Report: report})
	if err != nil {
		return "", fmt.Errorf("persist audit result: %w", err)
	}
	if !updated {
		return "", fmt.Errorf("dataset %s left processing before the result could be written", datasetID)
	}

	f.logger.Info("audit finalized",
		zap.String("dataset_id", datasetID.String()),
		zap.String("status", string(status)),
		zap.Int("quality_score", report.QualityScore.Int()))

	return status, nil
}

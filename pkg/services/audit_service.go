package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/apperrors"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
	"github.com/datagrade-io/datagrade-engine/pkg/repositories"
	"github.com/datagrade-io/datagrade-engine/pkg/taskqueue"
)

// AuditWorkerPath is the internal endpoint queued audit tasks are delivered
// to.
const AuditWorkerPath = "/internal/tasks/quality-audit"

// AuditTaskPayload is the body of a queued audit task.
type AuditTaskPayload struct {
	DatasetID uuid.UUID `json:"datasetId"`
	UserID    uuid.UUID `json:"userId"`
}

// AuditService coordinates quality audits: it validates preconditions,
// owns the not_run -> processing transition, and enqueues the audit task.
type AuditService interface {
	// Initiate starts an audit for the dataset on behalf of the requester.
	Initiate(ctx context.Context, datasetID, requesterID uuid.UUID) error

	// Reset clears all audit state back to not_run. Not permitted while an
	// audit is processing.
	Reset(ctx context.Context, datasetID, requesterID uuid.UUID) error

	// GetDataset returns the dataset after the same authorization check the
	// mutating operations apply.
	GetDataset(ctx context.Context, datasetID, requesterID uuid.UUID) (*models.Dataset, error)
}

type auditService struct {
	datasets  repositories.DatasetRepository
	teams     repositories.TeamRepository
	queue     taskqueue.Enqueuer
	queueName string
	logger    *zap.Logger
}

// NewAuditService creates the audit coordinator.
func NewAuditService(
	datasets repositories.DatasetRepository,
	teams repositories.TeamRepository,
	queue taskqueue.Enqueuer,
	queueName string,
	logger *zap.Logger,
) AuditService {
	return &auditService{
		datasets:  datasets,
		teams:     teams,
		queue:     queue,
		queueName: queueName,
		logger:    logger.Named("audit-service"),
	}
}

// Initiate validates the request and atomically claims the dataset for a new
// audit run before enqueueing the worker task.
func (s *auditService) Initiate(ctx context.Context, datasetID, requesterID uuid.UUID) error {
	dataset, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return err
	}

	if err := s.authorize(ctx, dataset, requesterID); err != nil {
		return err
	}

	if dataset.Description == "" {
		return apperrors.NewMissingContextError()
	}
	if missing := dataset.MissingColumnDescriptions(); len(missing) > 0 {
		return apperrors.NewMissingColumnDescriptionsError(missing)
	}

	switch {
	case dataset.QualityStatus == models.QualityStatusProcessing:
		return apperrors.ErrAuditInProgress
	case dataset.QualityStatus.IsTerminal():
		return apperrors.ErrAuditComplete
	}

	// The conditional UPDATE is the real concurrency guard: of two racing
	// initiates that both read not_run above, only one claims the row.
	claimed, err := s.datasets.BeginAudit(ctx, datasetID, time.Now())
	if err != nil {
		return err
	}
	if !claimed {
		current, err := s.datasets.Get(ctx, datasetID)
		if err != nil {
			return err
		}
		if current.QualityStatus == models.QualityStatusProcessing {
			return apperrors.ErrAuditInProgress
		}
		return apperrors.ErrAuditComplete
	}

	payload := AuditTaskPayload{DatasetID: datasetID, UserID: requesterID}
	taskID, err := s.queue.Enqueue(ctx, s.queueName, AuditWorkerPath, payload)
	if err != nil {
		// The dataset is already marked processing; without the task it will
		// stay there until manually reset. Surface the failure loudly.
		s.logger.Error("audit task enqueue failed after status write; dataset stuck in processing until reset",
			zap.String("dataset_id", datasetID.String()),
			zap.Error(err))
		return fmt.Errorf("enqueue audit task: %w", err)
	}

	s.logger.Info("quality audit initiated",
		zap.String("dataset_id", datasetID.String()),
		zap.String("requester_id", requesterID.String()),
		zap.String("task_id", taskID))

	return nil
}

// Reset clears audit state. Conflicts if an audit is currently processing.
func (s *auditService) Reset(ctx context.Context, datasetID, requesterID uuid.UUID) error {
	dataset, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return err
	}

	if err := s.authorize(ctx, dataset, requesterID); err != nil {
		return err
	}

	reset, err := s.datasets.ResetAudit(ctx, datasetID)
	if err != nil {
		return err
	}
	if !reset {
		return apperrors.ErrResetWhileRunning
	}

	s.logger.Info("quality audit reset",
		zap.String("dataset_id", datasetID.String()),
		zap.String("requester_id", requesterID.String()))

	return nil
}

// GetDataset is the authorized read used by the status and report endpoints.
func (s *auditService) GetDataset(ctx context.Context, datasetID, requesterID uuid.UUID) (*models.Dataset, error) {
	dataset, err := s.datasets.Get(ctx, datasetID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, dataset, requesterID); err != nil {
		return nil, err
	}

	return dataset, nil
}

// authorize permits the dataset's owner, or a team admin when the dataset
// belongs to a team.
func (s *auditService) authorize(ctx context.Context, dataset *models.Dataset, requesterID uuid.UUID) error {
	if dataset.OwnerID == requesterID {
		return nil
	}

	if dataset.TeamID != nil {
		isAdmin, err := s.teams.IsTeamAdmin(ctx, requesterID, *dataset.TeamID)
		if err != nil {
			return fmt.Errorf("check team membership: %w", err)
		}
		if isAdmin {
			return nil
		}
	}

	return apperrors.ErrForbidden
}

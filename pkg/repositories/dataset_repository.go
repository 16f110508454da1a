// Package repositories provides PostgreSQL data access for datagrade-engine.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/datagrade-io/datagrade-engine/pkg/apperrors"
	"github.com/datagrade-io/datagrade-engine/pkg/database"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
)

// DatasetRepository defines data access for datasets and their audit state.
//
// The audit state transitions are deliberately conditional UPDATEs: the
// quality_status column is the only concurrency-control mechanism for audits,
// so every transition checks the current status inside the statement itself
// rather than read-then-write.
type DatasetRepository interface {
	Create(ctx context.Context, dataset *models.Dataset) error
	Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error)

	// BeginAudit atomically moves a dataset from not_run to processing,
	// stamping the request time and clearing any prior report and completion
	// time. Returns false if the dataset exists but was not in not_run.
	BeginAudit(ctx context.Context, id uuid.UUID, requestedAt time.Time) (bool, error)

	// CompleteAudit writes the terminal status, completion time and report in
	// a single statement, but only while the dataset is still processing.
	// Returns false if the dataset had already left processing.
	CompleteAudit(ctx context.Context, id uuid.UUID, status models.QualityStatus, completedAt time.Time, report *models.QualityReport) (bool, error)

	// ResetAudit clears all audit fields back to not_run. Returns false if
	// the dataset is currently processing (reset is not permitted mid-run).
	ResetAudit(ctx context.Context, id uuid.UUID) (bool, error)
}

// datasetRepository implements DatasetRepository using PostgreSQL.
type datasetRepository struct {
	db *database.DB
}

// NewDatasetRepository creates a new dataset repository.
func NewDatasetRepository(db *database.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

const datasetColumns = `
	id, owner_id, team_id, name, description, file_path, file_type,
	schema_info, column_descriptions, context_notes,
	quality_status, quality_audit_requested_at, quality_audit_completed_at,
	quality_report, created_at, updated_at`

// Create inserts a new dataset.
func (r *datasetRepository) Create(ctx context.Context, dataset *models.Dataset) error {
	if dataset.ID == uuid.Nil {
		dataset.ID = uuid.New()
	}
	if dataset.QualityStatus == "" {
		dataset.QualityStatus = models.QualityStatusNotRun
	}
	now := time.Now()
	dataset.CreatedAt = now
	dataset.UpdatedAt = now

	schemaInfo, err := json.Marshal(dataset.SchemaInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal schema info: %w", err)
	}
	columnDescriptions, err := json.Marshal(dataset.ColumnDescriptions)
	if err != nil {
		return fmt.Errorf("failed to marshal column descriptions: %w", err)
	}

	query := `
		INSERT INTO datasets (id, owner_id, team_id, name, description, file_path, file_type,
			schema_info, column_descriptions, context_notes, quality_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.Exec(ctx, query,
		dataset.ID,
		dataset.OwnerID,
		dataset.TeamID,
		dataset.Name,
		dataset.Description,
		dataset.FilePath,
		dataset.FileType,
		schemaInfo,
		columnDescriptions,
		dataset.ContextNotes,
		dataset.QualityStatus,
		dataset.CreatedAt,
		dataset.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	return nil
}

// Get retrieves a dataset by ID.
func (r *datasetRepository) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	dataset, err := scanDataset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	return dataset, nil
}

// BeginAudit performs the atomic not_run -> processing transition.
func (r *datasetRepository) BeginAudit(ctx context.Context, id uuid.UUID, requestedAt time.Time) (bool, error) {
	query := `
		UPDATE datasets
		SET quality_status = $2,
		    quality_audit_requested_at = $3,
		    quality_audit_completed_at = NULL,
		    quality_report = NULL,
		    updated_at = now()
		WHERE id = $1 AND quality_status = $4`

	tag, err := r.db.Exec(ctx, query, id, models.QualityStatusProcessing, requestedAt, models.QualityStatusNotRun)
	if err != nil {
		return false, fmt.Errorf("failed to begin audit: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// CompleteAudit writes the terminal status and report together, guarded on
// the dataset still being in processing.
func (r *datasetRepository) CompleteAudit(ctx context.Context, id uuid.UUID, status models.QualityStatus, completedAt time.Time, report *models.QualityReport) (bool, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return false, fmt.Errorf("failed to marshal quality report: %w", err)
	}

	query := `
		UPDATE datasets
		SET quality_status = $2,
		    quality_audit_completed_at = $3,
		    quality_report = $4,
		    updated_at = now()
		WHERE id = $1 AND quality_status = $5`

	tag, err := r.db.Exec(ctx, query, id, status, completedAt, reportJSON, models.QualityStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to complete audit: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ResetAudit clears audit fields unless an audit is running.
func (r *datasetRepository) ResetAudit(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE datasets
		SET quality_status = $2,
		    quality_audit_requested_at = NULL,
		    quality_audit_completed_at = NULL,
		    quality_report = NULL,
		    updated_at = now()
		WHERE id = $1 AND quality_status <> $3`

	tag, err := r.db.Exec(ctx, query, id, models.QualityStatusNotRun, models.QualityStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to reset audit: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// scanDataset reads one dataset row, unmarshalling the JSONB columns.
func scanDataset(row pgx.Row) (*models.Dataset, error) {
	var dataset models.Dataset
	var schemaInfo, columnDescriptions []byte
	var report []byte

	err := row.Scan(
		&dataset.ID,
		&dataset.OwnerID,
		&dataset.TeamID,
		&dataset.Name,
		&dataset.Description,
		&dataset.FilePath,
		&dataset.FileType,
		&schemaInfo,
		&columnDescriptions,
		&dataset.ContextNotes,
		&dataset.QualityStatus,
		&dataset.QualityAuditRequestedAt,
		&dataset.QualityAuditCompletedAt,
		&report,
		&dataset.CreatedAt,
		&dataset.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(schemaInfo, &dataset.SchemaInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema info: %w", err)
	}
	if err := json.Unmarshal(columnDescriptions, &dataset.ColumnDescriptions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal column descriptions: %w", err)
	}
	if len(report) > 0 {
		dataset.QualityReport = &models.QualityReport{}
		if err := json.Unmarshal(report, dataset.QualityReport); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quality report: %w", err)
		}
	}

	return &dataset, nil
}

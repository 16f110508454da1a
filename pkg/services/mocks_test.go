package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/datagrade-io/datagrade-engine/pkg/apperrors"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
)

// ============================================================================
// Mock Implementations Shared Across Service Tests
// ============================================================================

type mockDatasetRepo struct {
	datasets map[uuid.UUID]*models.Dataset

	getErr      error
	beginErr    error
	completeErr error
	resetErr    error

	beginCalls    int
	completeCalls []completeCall
	resetCalls    int
}

type completeCall struct {
	id     uuid.UUID
	status models.QualityStatus
	report *models.QualityReport
}

func newMockDatasetRepo() *mockDatasetRepo {
	return &mockDatasetRepo{datasets: make(map[uuid.UUID]*models.Dataset)}
}

func (m *mockDatasetRepo) add(dataset *models.Dataset) {
	m.datasets[dataset.ID] = dataset
}

func (m *mockDatasetRepo) Create(ctx context.Context, dataset *models.Dataset) error {
	m.datasets[dataset.ID] = dataset
	return nil
}

func (m *mockDatasetRepo) Get(ctx context.Context, id uuid.UUID) (*models.Dataset, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	dataset, ok := m.datasets[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *dataset
	return &copied, nil
}

func (m *mockDatasetRepo) BeginAudit(ctx context.Context, id uuid.UUID, requestedAt time.Time) (bool, error) {
	m.beginCalls++
	if m.beginErr != nil {
		return false, m.beginErr
	}
	dataset, ok := m.datasets[id]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	if dataset.QualityStatus != models.QualityStatusNotRun {
		return false, nil
	}
	dataset.QualityStatus = models.QualityStatusProcessing
	dataset.QualityAuditRequestedAt = &requestedAt
	dataset.QualityAuditCompletedAt = nil
	dataset.QualityReport = nil
	return true, nil
}

func (m *mockDatasetRepo) CompleteAudit(ctx context.Context, id uuid.UUID, status models.QualityStatus, completedAt time.Time, report *models.QualityReport) (bool, error) {
	m.completeCalls = append(m.completeCalls, completeCall{id: id, status: status, report: report})
	if m.completeErr != nil {
		return false, m.completeErr
	}
	dataset, ok := m.datasets[id]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	if dataset.QualityStatus != models.QualityStatusProcessing {
		return false, nil
	}
	dataset.QualityStatus = status
	dataset.QualityAuditCompletedAt = &completedAt
	dataset.QualityReport = report
	return true, nil
}

func (m *mockDatasetRepo) ResetAudit(ctx context.Context, id uuid.UUID) (bool, error) {
	m.resetCalls++
	if m.resetErr != nil {
		return false, m.resetErr
	}
	dataset, ok := m.datasets[id]
	if !ok {
		return false, apperrors.ErrNotFound
	}
	if dataset.QualityStatus == models.QualityStatusProcessing {
		return false, nil
	}
	dataset.QualityStatus = models.QualityStatusNotRun
	dataset.QualityAuditRequestedAt = nil
	dataset.QualityAuditCompletedAt = nil
	dataset.QualityReport = nil
	return true, nil
}

type mockTeamRepo struct {
	admins map[uuid.UUID]map[uuid.UUID]bool // teamID -> userID -> admin
	err    error
}

func newMockTeamRepo() *mockTeamRepo {
	return &mockTeamRepo{admins: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (m *mockTeamRepo) addAdmin(teamID, userID uuid.UUID) {
	if m.admins[teamID] == nil {
		m.admins[teamID] = make(map[uuid.UUID]bool)
	}
	m.admins[teamID][userID] = true
}

func (m *mockTeamRepo) IsTeamAdmin(ctx context.Context, userID, teamID uuid.UUID) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.admins[teamID][userID], nil
}

// mockFileStore serves in-memory file content for analyzer tests.
type mockFileStore struct {
	files map[string]string
}

func newMockFileStore() *mockFileStore {
	return &mockFileStore{files: make(map[string]string)}
}

func (m *mockFileStore) OpenReadStream(path string) (io.ReadCloser, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, errors.New("file does not exist")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *mockFileStore) Exists(path string) (bool, error) {
	_, ok := m.files[path]
	return ok, nil
}

func (m *mockFileStore) Size(path string) (int64, error) {
	content, ok := m.files[path]
	if !ok {
		return 0, errors.New("file does not exist")
	}
	return int64(len(content)), nil
}

// auditableDataset returns a dataset that passes every audit precondition.
func auditableDataset(owner uuid.UUID) *models.Dataset {
	return &models.Dataset{
		ID:          uuid.New(),
		OwnerID:     owner,
		Name:        "orders",
		Description: "Monthly order export from the billing system",
		FilePath:    "datasets/orders.csv",
		FileType:    "csv",
		SchemaInfo: []models.ColumnDescriptor{
			{Name: "order_id"},
			{Name: "amount"},
		},
		ColumnDescriptions: map[string]string{
			"order_id": "Unique order identifier",
			"amount":   "Order total in USD",
		},
		QualityStatus: models.QualityStatusNotRun,
	}
}

//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datagrade-io/datagrade-engine/pkg/apperrors"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
	"github.com/datagrade-io/datagrade-engine/pkg/testhelpers"
)

// datasetTestContext holds test dependencies for dataset repository tests.
type datasetTestContext struct {
	t    *testing.T
	repo DatasetRepository
	ids  []uuid.UUID
}

func setupDatasetTest(t *testing.T) *datasetTestContext {
	testDB := testhelpers.GetTestDB(t)
	tc := &datasetTestContext{
		t:    t,
		repo: NewDatasetRepository(testDB.DB),
	}
	t.Cleanup(func() {
		for _, id := range tc.ids {
			_, _ = testDB.DB.Exec(context.Background(), "DELETE FROM datasets WHERE id = $1", id)
		}
	})
	return tc
}

func (tc *datasetTestContext) createDataset(mutate func(*models.Dataset)) *models.Dataset {
	tc.t.Helper()

	dataset := &models.Dataset{
		OwnerID:     uuid.New(),
		Name:        "orders",
		Description: "Monthly order exports",
		FilePath:    "datasets/orders.csv",
		FileType:    "csv",
		SchemaInfo: []models.ColumnDescriptor{
			{Name: "order_id", DataType: "string"},
			{Name: "amount", DataType: "number"},
		},
		ColumnDescriptions: map[string]string{
			"order_id": "Unique order identifier",
			"amount":   "Order total in USD",
		},
	}
	if mutate != nil {
		mutate(dataset)
	}

	require.NoError(tc.t, tc.repo.Create(context.Background(), dataset))
	tc.ids = append(tc.ids, dataset.ID)
	return dataset
}

func TestDatasetRepository_CreateAndGet(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	created := tc.createDataset(nil)

	got, err := tc.repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.OwnerID, got.OwnerID)
	assert.Equal(t, "orders", got.Name)
	assert.Equal(t, models.QualityStatusNotRun, got.QualityStatus)
	assert.Equal(t, created.SchemaInfo, got.SchemaInfo)
	assert.Equal(t, created.ColumnDescriptions, got.ColumnDescriptions)
	assert.Nil(t, got.QualityReport)
	assert.Nil(t, got.QualityAuditRequestedAt)
}

func TestDatasetRepository_GetNotFound(t *testing.T) {
	tc := setupDatasetTest(t)

	_, err := tc.repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDatasetRepository_BeginAudit(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	dataset := tc.createDataset(nil)

	claimed, err := tc.repo.BeginAudit(ctx, dataset.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, claimed)

	got, err := tc.repo.Get(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QualityStatusProcessing, got.QualityStatus)
	assert.NotNil(t, got.QualityAuditRequestedAt)

	// A second claim must lose: the dataset is no longer not_run.
	claimed, err = tc.repo.BeginAudit(ctx, dataset.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestDatasetRepository_BeginAuditConcurrentClaims(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	dataset := tc.createDataset(nil)

	// Two racing claims against the same row. The guarded UPDATE must hand
	// the dataset to exactly one of them.
	start := make(chan struct{})
	results := make(chan bool, 2)
	errs := make(chan error, 2)

	for i := 0; i < 2; i++ {
		go func() {
			<-start
			claimed, err := tc.repo.BeginAudit(ctx, dataset.ID, time.Now())
			results <- claimed
			errs <- err
		}()
	}
	close(start)

	claims := 0
	for i := 0; i < 2; i++ {
		require.NoError(t, <-errs)
		if <-results {
			claims++
		}
	}
	assert.Equal(t, 1, claims, "exactly one caller may claim the audit")

	got, err := tc.repo.Get(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QualityStatusProcessing, got.QualityStatus)
}

func TestDatasetRepository_BeginAuditClearsPriorRun(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	dataset := tc.createDataset(nil)

	claimed, err := tc.repo.BeginAudit(ctx, dataset.ID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	completed, err := tc.repo.CompleteAudit(ctx, dataset.ID, models.QualityStatusOK, time.Now(), &models.QualityReport{
		Report: &models.FinalReport{ExecutiveSummary: "fine", QualityScore: 90},
	})
	require.NoError(t, err)
	require.True(t, completed)

	reset, err := tc.repo.ResetAudit(ctx, dataset.ID)
	require.NoError(t, err)
	require.True(t, reset)

	claimed, err = tc.repo.BeginAudit(ctx, dataset.ID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	got, err := tc.repo.Get(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Nil(t, got.QualityReport, "prior report should be cleared on re-claim")
	assert.Nil(t, got.QualityAuditCompletedAt)
}

func TestDatasetRepository_CompleteAudit(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	dataset := tc.createDataset(nil)

	claimed, err := tc.repo.BeginAudit(ctx, dataset.ID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	report := &models.QualityReport{
		Report: &models.FinalReport{
			ExecutiveSummary: "Mostly clean",
			QualityScore:     72,
			KeyFindings:      []string{"amount has inconsistent numeric values"},
		},
	}
	completed, err := tc.repo.CompleteAudit(ctx, dataset.ID, models.QualityStatusWarning, time.Now(), report)
	require.NoError(t, err)
	assert.True(t, completed)

	got, err := tc.repo.Get(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QualityStatusWarning, got.QualityStatus)
	assert.NotNil(t, got.QualityAuditCompletedAt)
	require.NotNil(t, got.QualityReport)
	require.NotNil(t, got.QualityReport.Report)
	assert.Equal(t, "Mostly clean", got.QualityReport.Report.ExecutiveSummary)
	assert.EqualValues(t, 72, got.QualityReport.Report.QualityScore)
}

func TestDatasetRepository_CompleteAuditRequiresProcessing(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	dataset := tc.createDataset(nil)

	// Not claimed: still not_run, so completion must refuse.
	completed, err := tc.repo.CompleteAudit(ctx, dataset.ID, models.QualityStatusOK, time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, completed)

	got, err := tc.repo.Get(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QualityStatusNotRun, got.QualityStatus)
}

func TestDatasetRepository_CompleteAuditWithError(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	dataset := tc.createDataset(nil)

	claimed, err := tc.repo.BeginAudit(ctx, dataset.ID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	report := &models.QualityReport{
		Error: &models.AuditError{Message: "statistical analysis failed", Timestamp: time.Now()},
	}
	completed, err := tc.repo.CompleteAudit(ctx, dataset.ID, models.QualityStatusError, time.Now(), report)
	require.NoError(t, err)
	require.True(t, completed)

	got, err := tc.repo.Get(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QualityStatusError, got.QualityStatus)
	require.NotNil(t, got.QualityReport)
	require.NotNil(t, got.QualityReport.Error)
	assert.Equal(t, "statistical analysis failed", got.QualityReport.Error.Message)
	assert.Nil(t, got.QualityReport.Report)
}

func TestDatasetRepository_ResetAudit(t *testing.T) {
	tc := setupDatasetTest(t)
	ctx := context.Background()

	dataset := tc.createDataset(nil)

	claimed, err := tc.repo.BeginAudit(ctx, dataset.ID, time.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	// Reset refuses while processing.
	reset, err := tc.repo.ResetAudit(ctx, dataset.ID)
	require.NoError(t, err)
	assert.False(t, reset)

	completed, err := tc.repo.CompleteAudit(ctx, dataset.ID, models.QualityStatusError, time.Now(), &models.QualityReport{
		Error: &models.AuditError{Message: "interpretation call failed", Timestamp: time.Now()},
	})
	require.NoError(t, err)
	require.True(t, completed)

	reset, err = tc.repo.ResetAudit(ctx, dataset.ID)
	require.NoError(t, err)
	assert.True(t, reset)

	got, err := tc.repo.Get(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QualityStatusNotRun, got.QualityStatus)
	assert.Nil(t, got.QualityAuditRequestedAt)
	assert.Nil(t, got.QualityAuditCompletedAt)
	assert.Nil(t, got.QualityReport)
}

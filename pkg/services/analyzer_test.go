package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/apperrors"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
)

func analyzerForFile(content string) (StatisticalAnalyzer, *models.Dataset) {
	store := newMockFileStore()
	store.files["datasets/test.csv"] = content

	dataset := &models.Dataset{
		FilePath: "datasets/test.csv",
		FileType: "csv",
	}

	return NewStatisticalAnalyzer(store, zap.NewNop()), dataset
}

func TestAnalyze_BasicStatistics(t *testing.T) {
	content := "order_id,amount,status\n" +
		"1,10.50,shipped\n" +
		"2,20.00,pending\n" +
		"3,,shipped\n" +
		"4,40.25,\n"

	analyzer, dataset := analyzerForFile(content)

	report, err := analyzer.Analyze(context.Background(), dataset)
	require.NoError(t, err)

	assert.Equal(t, 4, report.RowCount)
	assert.Equal(t, 3, report.ColumnCount)
	assert.Equal(t, "csv", report.FileType)
	assert.Equal(t, int64(len(content)), report.FileSizeBytes)
	require.Len(t, report.Columns, 3)

	amount := report.Columns[1]
	assert.Equal(t, "amount", amount.Name)
	assert.Equal(t, 3, amount.NonNullCount)
	assert.Equal(t, 1, amount.EmptyCount)
	assert.True(t, amount.AppearingNumeric)
	require.NotNil(t, amount.MinValue)
	assert.Equal(t, 10.5, *amount.MinValue)
	require.NotNil(t, amount.MaxValue)
	assert.Equal(t, 40.25, *amount.MaxValue)
}

func TestAnalyze_RaggedRows(t *testing.T) {
	content := "a,b,c\n" +
		"1,2,3\n" +
		"1,2\n" + // short row
		"1,2,3,4\n" + // long row
		"1,2,3\n"

	analyzer, dataset := analyzerForFile(content)

	report, err := analyzer.Analyze(context.Background(), dataset)
	require.NoError(t, err)

	assert.Equal(t, 2, report.RaggedRows.Count)
	require.Len(t, report.RaggedRows.Examples, 2)
	assert.Equal(t, 2, report.RaggedRows.Examples[0].RowNumber)
	assert.Equal(t, 3, report.RaggedRows.Examples[0].ExpectedColumns)
	assert.Equal(t, 2, report.RaggedRows.Examples[0].ActualColumns)
	assert.Equal(t, 3, report.RaggedRows.Examples[1].RowNumber)
	assert.Equal(t, 4, report.RaggedRows.Examples[1].ActualColumns)

	// Missing tail fields in the short row count as null for column c.
	c := report.Columns[2]
	assert.Equal(t, 1, c.NullCount)

	var types []string
	for _, issue := range report.DatasetIssues {
		types = append(types, issue.Type)
	}
	assert.Contains(t, types, models.IssueRaggedRows)
}

func TestAnalyze_RaggedRowExamplesCapped(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("a,b\n")
	for i := 0; i < 10; i++ {
		sb.WriteString("1\n") // every data row is short
	}

	analyzer, dataset := analyzerForFile(sb.String())

	report, err := analyzer.Analyze(context.Background(), dataset)
	require.NoError(t, err)

	assert.Equal(t, 10, report.RaggedRows.Count)
	assert.Len(t, report.RaggedRows.Examples, maxRaggedRowExamples)
}

func TestAnalyze_FullyEmptyColumnFlaggedHigh(t *testing.T) {
	content := "id,notes\n" +
		"1,\n" +
		"2,\n" +
		"3,\n" +
		"4,\n"

	analyzer, dataset := analyzerForFile(content)

	report, err := analyzer.Analyze(context.Background(), dataset)
	require.NoError(t, err)

	notes := report.Columns[1]
	assert.InDelta(t, 100.0, notes.MissingPercentage, 0.001)

	var found *models.ColumnIssue
	for i := range notes.Issues {
		if notes.Issues[i].Type == models.IssueHighMissingValues {
			found = &notes.Issues[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, models.SeverityHigh, found.Severity)
}

func TestAnalyze_MultipleHighMissingColumns(t *testing.T) {
	// Two of three columns exceed 20% missing; 2*3 > 3 escalates to high.
	content := "a,b,c\n" +
		"1,,\n" +
		"2,,\n" +
		"3,x,y\n" +
		"4,x,y\n"

	analyzer, dataset := analyzerForFile(content)

	report, err := analyzer.Analyze(context.Background(), dataset)
	require.NoError(t, err)

	var found *models.DatasetIssue
	for i := range report.DatasetIssues {
		if report.DatasetIssues[i].Type == models.IssueMultipleHighMissingColumns {
			found = &report.DatasetIssues[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, models.SeverityHigh, found.Severity)
}

func TestAnalyze_MissingFile(t *testing.T) {
	store := newMockFileStore()
	analyzer := NewStatisticalAnalyzer(store, zap.NewNop())

	_, err := analyzer.Analyze(context.Background(), &models.Dataset{FilePath: "missing.csv"})
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
}

func TestAnalyze_EmptyFile(t *testing.T) {
	analyzer, dataset := analyzerForFile("")

	_, err := analyzer.Analyze(context.Background(), dataset)
	assert.ErrorIs(t, err, apperrors.ErrSourceUnavailable)
}

func TestAnalyze_HeaderOnly(t *testing.T) {
	analyzer, dataset := analyzerForFile("a,b,c\n")

	report, err := analyzer.Analyze(context.Background(), dataset)
	require.NoError(t, err)

	assert.Equal(t, 0, report.RowCount)
	assert.Equal(t, 3, report.ColumnCount)
	for _, col := range report.Columns {
		assert.Empty(t, col.Issues)
	}
}

func TestAnalyze_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("a\n")
	for i := 0; i < 5000; i++ {
		sb.WriteString(fmt.Sprintf("%d\n", i))
	}

	analyzer, dataset := analyzerForFile(sb.String())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzer.Analyze(ctx, dataset)
	assert.True(t, errors.Is(err, context.Canceled))
}

package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/apperrors"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
	"github.com/datagrade-io/datagrade-engine/pkg/storage"
)

// maxRaggedRowExamples caps the recorded examples of rows whose field count
// differs from the header.
const maxRaggedRowExamples = 5

// Dataset-level issue thresholds: a column is "high missing" above this
// missing percentage, and the issue escalates to high severity when more than
// a third of all columns are affected.
const highMissingColumnThreshold = 20.0

// StatisticalAnalyzer computes the programmatic half of a quality audit by
// folding per-column accumulators over a streaming read of the dataset file.
type StatisticalAnalyzer interface {
	Analyze(ctx context.Context, dataset *models.Dataset) (*models.ProgrammaticReport, error)
}

type statisticalAnalyzer struct {
	store  storage.FileStore
	logger *zap.Logger
}

// NewStatisticalAnalyzer creates a new analyzer reading from the given store.
func NewStatisticalAnalyzer(store storage.FileStore, logger *zap.Logger) StatisticalAnalyzer {
	return &statisticalAnalyzer{
		store:  store,
		logger: logger.Named("analyzer"),
	}
}

// Analyze performs a single streaming pass over the dataset's file. Memory
// stays bounded by the per-column caps regardless of row count.
func (a *statisticalAnalyzer) Analyze(ctx context.Context, dataset *models.Dataset) (*models.ProgrammaticReport, error) {
	start := time.Now()

	stream, err := a.store.OpenReadStream(dataset.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
	}
	defer func() {
		_ = stream.Close()
	}()

	reader := csv.NewReader(stream)
	reader.FieldsPerRecord = -1 // ragged rows are recorded, not rejected
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", apperrors.ErrSourceUnavailable)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSourceUnavailable, err)
	}

	accumulators := make([]*columnAccumulator, len(header))
	for i, name := range header {
		accumulators[i] = newColumnAccumulator(name)
	}

	rowCount := 0
	ragged := models.RaggedRowStats{}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", rowCount+1, err)
		}

		rowCount++

		if len(record) != len(header) {
			ragged.Count++
			if len(ragged.Examples) < maxRaggedRowExamples {
				ragged.Examples = append(ragged.Examples, models.RaggedRowExample{
					RowNumber:       rowCount,
					ExpectedColumns: len(header),
					ActualColumns:   len(record),
				})
			}
		}

		for i, acc := range accumulators {
			if i < len(record) {
				acc.observe(record[i], true)
			} else {
				acc.observe("", false)
			}
		}

		// Keep long scans cancellable.
		if rowCount%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	columns := make([]models.ColumnStatistics, len(accumulators))
	for i, acc := range accumulators {
		columns[i] = acc.finalize(rowCount)
	}

	report := &models.ProgrammaticReport{
		RowCount:      rowCount,
		ColumnCount:   len(header),
		FileType:      dataset.FileType,
		Columns:       columns,
		RaggedRows:    ragged,
		DatasetIssues: detectDatasetIssues(columns, ragged),
		ProcessingMS:  time.Since(start).Milliseconds(),
	}

	if size, err := a.store.Size(dataset.FilePath); err == nil {
		report.FileSizeBytes = size
	}

	a.logger.Info("statistical analysis complete",
		zap.String("dataset_id", dataset.ID.String()),
		zap.Int("rows", rowCount),
		zap.Int("columns", len(header)),
		zap.Int("ragged_rows", ragged.Count),
		zap.Int64("elapsed_ms", report.ProcessingMS))

	return report, nil
}

// detectDatasetIssues evaluates the file-level rules.
func detectDatasetIssues(columns []models.ColumnStatistics, ragged models.RaggedRowStats) []models.DatasetIssue {
	var issues []models.DatasetIssue

	if ragged.Count > 0 {
		issues = append(issues, models.DatasetIssue{
			Type:        models.IssueRaggedRows,
			Description: fmt.Sprintf("%d rows have a field count different from the header", ragged.Count),
			Severity:    models.SeverityHigh,
			Examples:    ragged.Examples,
		})
	}

	highMissing := 0
	for _, col := range columns {
		if col.MissingPercentage > highMissingColumnThreshold {
			highMissing++
		}
	}
	if highMissing > 0 {
		severity := models.SeverityMedium
		if highMissing*3 > len(columns) {
			severity = models.SeverityHigh
		}
		issues = append(issues, models.DatasetIssue{
			Type:        models.IssueMultipleHighMissingColumns,
			Description: fmt.Sprintf("%d of %d columns have more than %.0f%% missing values", highMissing, len(columns), highMissingColumnThreshold),
			Severity:    severity,
		})
	}

	return issues
}

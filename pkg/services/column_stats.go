// Package services implements the dataset quality audit pipeline.
package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/datagrade-io/datagrade-engine/pkg/models"
)

// Caps on per-column collections. The accumulator must stay constant-ish
// memory regardless of file size.
const (
	maxUniqueValues  = 1000
	maxExampleValues = 10
)

// typeRatioThreshold is the share of non-null values that must coerce to a
// type before a column "appears" to be of that type.
const typeRatioThreshold = 0.8

// dateLayouts are tried in order when probing a value as a date.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
}

// columnAccumulator gathers running statistics for one column over a row
// stream. Feed it with observe, then call finalize once the stream is done.
type columnAccumulator struct {
	name string

	nonNullCount    int
	nullCount       int
	emptyCount      int
	whitespaceCount int
	numericCount    int
	nonNumericCount int
	dateCount       int

	minValue *float64
	maxValue *float64

	unique       map[string]struct{}
	uniqueCapped bool
	examples     []string
}

func newColumnAccumulator(name string) *columnAccumulator {
	return &columnAccumulator{
		name:   name,
		unique: make(map[string]struct{}),
	}
}

// observe records one cell. present is false when the row had no field for
// this column (ragged short row), which counts as null.
//
// Classification short-circuits: null, empty and whitespace-only values are
// counted as missing and never probed as numeric or date candidates.
func (a *columnAccumulator) observe(value string, present bool) {
	if !present {
		a.nullCount++
		return
	}
	if value == "" {
		a.emptyCount++
		return
	}
	if strings.TrimSpace(value) == "" {
		a.whitespaceCount++
		return
	}

	a.nonNullCount++
	a.addUnique(value)
	a.addExample(value)

	if num, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		a.numericCount++
		if a.minValue == nil || num < *a.minValue {
			v := num
			a.minValue = &v
		}
		if a.maxValue == nil || num > *a.maxValue {
			v := num
			a.maxValue = &v
		}
		return
	}

	a.nonNumericCount++
	if parsesAsDate(value) {
		a.dateCount++
	}
}

func (a *columnAccumulator) addUnique(value string) {
	if len(a.unique) >= maxUniqueValues {
		if _, seen := a.unique[value]; !seen {
			a.uniqueCapped = true
		}
		return
	}
	a.unique[value] = struct{}{}
}

func (a *columnAccumulator) addExample(value string) {
	if len(a.examples) < maxExampleValues {
		a.examples = append(a.examples, value)
	}
}

// finalize computes derived percentages, type appearance flags and issues
// over the completed stream of totalRows rows.
func (a *columnAccumulator) finalize(totalRows int) models.ColumnStatistics {
	stats := models.ColumnStatistics{
		Name:            a.name,
		NonNullCount:    a.nonNullCount,
		NullCount:       a.nullCount,
		EmptyCount:      a.emptyCount,
		WhitespaceCount: a.whitespaceCount,
		NumericCount:    a.numericCount,
		NonNumericCount: a.nonNumericCount,
		DateCount:       a.dateCount,
		MinValue:        a.minValue,
		MaxValue:        a.maxValue,
		UniqueCount:     len(a.unique),
		UniqueCapped:    a.uniqueCapped,
		Examples:        a.examples,
	}

	if totalRows > 0 {
		stats.NullPercentage = percent(a.nullCount, totalRows)
		stats.EmptyPercentage = percent(a.emptyCount, totalRows)
		stats.WhitespacePercentage = percent(a.whitespaceCount, totalRows)
		stats.MissingPercentage = percent(a.nullCount+a.emptyCount+a.whitespaceCount, totalRows)
	}
	if a.nonNullCount > 0 {
		stats.CardinalityPercentage = percent(len(a.unique), a.nonNullCount)
		stats.AppearingNumeric = float64(a.numericCount)/float64(a.nonNullCount) > typeRatioThreshold
		stats.AppearingDates = float64(a.dateCount)/float64(a.nonNullCount) > typeRatioThreshold
	}

	stats.Issues = a.detectIssues(&stats)

	return stats
}

// detectIssues evaluates the threshold rules in order. Multiple rules may
// fire for one column.
func (a *columnAccumulator) detectIssues(stats *models.ColumnStatistics) []models.ColumnIssue {
	var issues []models.ColumnIssue

	if stats.MissingPercentage > 10 {
		severity := models.SeverityMedium
		if stats.MissingPercentage > 50 {
			severity = models.SeverityHigh
		}
		issues = append(issues, models.ColumnIssue{
			Type:        models.IssueHighMissingValues,
			Description: fmt.Sprintf("%.1f%% of values are missing (null, empty, or whitespace)", stats.MissingPercentage),
			Severity:    severity,
		})
	}

	if stats.AppearingNumeric && stats.NonNumericCount > 0 {
		issues = append(issues, models.ColumnIssue{
			Type:        models.IssueInconsistentNumeric,
			Description: fmt.Sprintf("column appears numeric but %d values are not numeric", stats.NonNumericCount),
			Severity:    models.SeverityMedium,
		})
	}

	if stats.AppearingDates && stats.NonNullCount > stats.DateCount {
		issues = append(issues, models.ColumnIssue{
			Type:        models.IssueInconsistentDates,
			Description: fmt.Sprintf("column appears date-like but %d values did not parse as dates", stats.NonNullCount-stats.DateCount),
			Severity:    models.SeverityMedium,
		})
	}

	if !stats.AppearingNumeric && !stats.AppearingDates && stats.CardinalityPercentage > 95 {
		issues = append(issues, models.ColumnIssue{
			Type:        models.IssueHighCardinality,
			Description: fmt.Sprintf("%.1f%% of non-null values are unique; likely free text or identifiers", stats.CardinalityPercentage),
			Severity:    models.SeverityLow,
		})
	}

	return issues
}

func parsesAsDate(value string) bool {
	trimmed := strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, trimmed); err == nil {
			return true
		}
	}
	return false
}

func percent(count, total int) float64 {
	return float64(count) / float64(total) * 100
}

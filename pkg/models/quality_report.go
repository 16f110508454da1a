package models

import (
	"time"

	"github.com/datagrade-io/datagrade-engine/pkg/jsonutil"
)

// Issue severities, ordered by how loudly the report should flag them.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Column-level issue types produced by the statistical analyzer.
const (
	IssueHighMissingValues   = "high_missing_values"
	IssueInconsistentNumeric = "inconsistent_numeric"
	IssueInconsistentDates   = "inconsistent_dates"
	IssueHighCardinality     = "high_cardinality"
)

// Dataset-level issue types.
const (
	IssueRaggedRows                 = "ragged_rows"
	IssueMultipleHighMissingColumns = "multiple_high_missing_columns"
)

// ColumnIssue flags a quality problem detected in one column.
type ColumnIssue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// ColumnStatistics holds per-column counts and derived metrics from a single
// streaming pass over the file. Unique values and examples are capped for
// memory safety, so CardinalityPercentage is an estimate on high-cardinality
// columns.
type ColumnStatistics struct {
	Name string `json:"name"`

	NonNullCount    int `json:"non_null_count"`
	NullCount       int `json:"null_count"`
	EmptyCount      int `json:"empty_count"`
	WhitespaceCount int `json:"whitespace_count"`
	NumericCount    int `json:"numeric_count"`
	NonNumericCount int `json:"non_numeric_count"`
	DateCount       int `json:"date_count"`

	MinValue *float64 `json:"min_value,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty"`

	UniqueCount  int      `json:"unique_count"`
	UniqueCapped bool     `json:"unique_capped,omitempty"`
	Examples     []string `json:"examples,omitempty"`

	NullPercentage        float64 `json:"null_percentage"`
	EmptyPercentage       float64 `json:"empty_percentage"`
	WhitespacePercentage  float64 `json:"whitespace_percentage"`
	MissingPercentage     float64 `json:"missing_percentage"`
	CardinalityPercentage float64 `json:"cardinality_percentage"`

	AppearingNumeric bool `json:"appearing_numeric"`
	AppearingDates   bool `json:"appearing_dates"`

	Issues []ColumnIssue `json:"issues,omitempty"`
}

// RaggedRowExample records one row whose field count differed from the header.
type RaggedRowExample struct {
	RowNumber       int `json:"row_number"`
	ExpectedColumns int `json:"expected_columns"`
	ActualColumns   int `json:"actual_columns"`
}

// RaggedRowStats aggregates structural row defects. Examples is capped.
type RaggedRowStats struct {
	Count    int                `json:"count"`
	Examples []RaggedRowExample `json:"examples,omitempty"`
}

// DatasetIssue flags a quality problem spanning the whole file.
type DatasetIssue struct {
	Type        string             `json:"type"`
	Description string             `json:"description"`
	Severity    string             `json:"severity"`
	Examples    []RaggedRowExample `json:"examples,omitempty"`
}

// ProgrammaticReport is the deterministic half of an audit: everything the
// analyzer can compute without an LLM. Columns preserve header order.
type ProgrammaticReport struct {
	RowCount      int                `json:"row_count"`
	ColumnCount   int                `json:"column_count"`
	FileType      string             `json:"file_type"`
	FileSizeBytes int64              `json:"file_size_bytes,omitempty"`
	Columns       []ColumnStatistics `json:"columns"`
	RaggedRows    RaggedRowStats     `json:"ragged_rows"`
	DatasetIssues []DatasetIssue     `json:"dataset_issues,omitempty"`
	ProcessingMS  int64              `json:"processing_ms"`
}

// ReportMetadata is stamped onto every final report by the synthesis stage.
// GeneratedAt, Source and Version always come from the engine, overriding
// anything the model returned. Error and RawResponse are only set when the
// model's response could not be parsed and a fallback report was produced.
type ReportMetadata struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Source      string    `json:"source"`
	Version     string    `json:"version"`
	Error       bool      `json:"error,omitempty"`
	RawResponse string    `json:"rawResponse,omitempty"`
}

// FinalReport is the client-facing audit report produced by the synthesis
// stage. List and numeric fields use tolerant decoding because LLMs sometimes
// return numbers for strings or objects for list entries.
type FinalReport struct {
	ExecutiveSummary string                      `json:"executiveSummary"`
	QualityScore     jsonutil.FlexibleInt        `json:"qualityScore"`
	ScoreExplanation string                      `json:"scoreExplanation"`
	KeyFindings      jsonutil.FlexibleStringList `json:"keyFindings"`
	DetailedAnalysis map[string]any              `json:"detailedAnalysis"`
	Recommendations  jsonutil.FlexibleStringList `json:"recommendations"`
	Metadata         ReportMetadata              `json:"metadata"`
}

// AuditError is the error envelope persisted when a pipeline run fails before
// a final report could be produced.
type AuditError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// QualityReport is the persisted audit outcome: a final report on success, or
// an error envelope when the pipeline failed. Exactly one side is set.
type QualityReport struct {
	Report *FinalReport `json:"report,omitempty"`
	Error  *AuditError  `json:"error,omitempty"`
}

// Package models contains domain types for datagrade-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// QualityStatus tracks where a dataset is in the audit lifecycle. It doubles
// as the mutual-exclusion flag for "is an audit currently running": the
// coordinator only transitions not_run -> processing atomically, and the
// worker refuses tasks for datasets that are not processing.
type QualityStatus string

const (
	QualityStatusNotRun     QualityStatus = "not_run"
	QualityStatusProcessing QualityStatus = "processing"
	QualityStatusOK         QualityStatus = "ok"
	QualityStatusWarning    QualityStatus = "warning"
	QualityStatusError      QualityStatus = "error"
)

// IsTerminal reports whether the status is a completed audit outcome.
func (s QualityStatus) IsTerminal() bool {
	return s == QualityStatusOK || s == QualityStatusWarning || s == QualityStatusError
}

// ColumnDescriptor describes one column of the dataset's stored file, in file
// order.
type ColumnDescriptor struct {
	Name     string `json:"name"`
	DataType string `json:"data_type,omitempty"`
}

// Dataset represents an uploaded tabular dataset and its audit state.
// SchemaInfo preserves file column order; ColumnDescriptions is keyed by
// column name, so lookups never depend on iteration order.
type Dataset struct {
	ID                 uuid.UUID          `json:"id"`
	OwnerID            uuid.UUID          `json:"owner_id"`
	TeamID             *uuid.UUID         `json:"team_id,omitempty"`
	Name               string             `json:"name"`
	Description        string             `json:"description"`
	FilePath           string             `json:"file_path"`
	FileType           string             `json:"file_type"`
	SchemaInfo         []ColumnDescriptor `json:"schema_info"`
	ColumnDescriptions map[string]string  `json:"column_descriptions"`
	ContextNotes       string             `json:"context_notes,omitempty"`

	QualityStatus           QualityStatus  `json:"quality_status"`
	QualityAuditRequestedAt *time.Time     `json:"quality_audit_requested_at,omitempty"`
	QualityAuditCompletedAt *time.Time     `json:"quality_audit_completed_at,omitempty"`
	QualityReport           *QualityReport `json:"quality_report,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MissingColumnDescriptions returns the schema columns that have no non-empty
// entry in ColumnDescriptions, in schema order.
func (d *Dataset) MissingColumnDescriptions() []string {
	var missing []string
	for _, col := range d.SchemaInfo {
		if d.ColumnDescriptions[col.Name] == "" {
			missing = append(missing, col.Name)
		}
	}
	return missing
}

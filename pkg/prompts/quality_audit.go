// Package prompts builds the LLM prompts used by the quality audit pipeline.
package prompts

import (
	"fmt"
	"strings"
)

// DatasetContext provides the dataset identity and user-supplied context for
// LLM analysis.
type DatasetContext struct {
	ID           string
	Name         string
	Description  string
	FileType     string
	Columns      []ColumnNote
	ContextNotes string
}

// ColumnNote pairs a column with its user-supplied description.
type ColumnNote struct {
	Name        string
	DataType    string
	Description string
}

// InterpretationSystemPrompt instructs the model for the interpretation call.
const InterpretationSystemPrompt = `You are a data quality analyst. You are given deterministic statistics computed from a tabular dataset, together with the dataset owner's descriptions of the dataset and its columns. Explain what the flagged issues mean for this specific dataset, using the owner's context. Respond with a single JSON object with the keys "summary" (string), "columnInsights" (object mapping column name to insight string), and "datasetInsights" (array of strings). Respond with JSON only.`

// SynthesisSystemPrompt instructs the model for the synthesis call.
const SynthesisSystemPrompt = `You are a data quality analyst producing a final audit report. Merge the programmatic findings and the interpretation commentary into one structured report. Respond with exactly one JSON object with the keys "executiveSummary" (string), "qualityScore" (integer 0-100), "scoreExplanation" (string), "keyFindings" (array of strings), "detailedAnalysis" (object), "recommendations" (array of strings), and "metadata" (object). Respond with JSON only - no prose, no markdown fences.`

// BuildInterpretationPrompt creates the user prompt for the interpretation
// stage: dataset context followed by the programmatic report.
func BuildInterpretationPrompt(dctx DatasetContext, programmaticReportJSON string) string {
	var prompt strings.Builder

	prompt.WriteString("# Dataset Quality Interpretation\n\n")
	writeDatasetContext(&prompt, dctx)

	prompt.WriteString("## Programmatic Findings\n\n")
	prompt.WriteString("The following statistics were computed deterministically from the raw file:\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(programmaticReportJSON)
	prompt.WriteString("\n```\n\n")

	prompt.WriteString("Interpret the flagged issues in the context of what this dataset represents. ")
	prompt.WriteString("For each column with issues, explain whether the issue is likely a real data quality problem ")
	prompt.WriteString("or expected given the column's meaning.\n")

	return prompt.String()
}

// BuildSynthesisPrompt creates the user prompt for the synthesis stage:
// dataset context, programmatic report, and interpretation output.
func BuildSynthesisPrompt(dctx DatasetContext, programmaticReportJSON, interpretationJSON string) string {
	var prompt strings.Builder

	prompt.WriteString("# Dataset Quality Report Synthesis\n\n")
	writeDatasetContext(&prompt, dctx)

	prompt.WriteString("## Programmatic Findings\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(programmaticReportJSON)
	prompt.WriteString("\n```\n\n")

	prompt.WriteString("## Interpretation Commentary\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(interpretationJSON)
	prompt.WriteString("\n```\n\n")

	prompt.WriteString("Produce the final quality report as one JSON object with exactly these keys: ")
	prompt.WriteString("executiveSummary, qualityScore, scoreExplanation, keyFindings, detailedAnalysis, recommendations, metadata. ")
	prompt.WriteString("The qualityScore must reflect the severity and breadth of the findings. ")
	prompt.WriteString("Respond with JSON only.\n")

	return prompt.String()
}

// writeDatasetContext renders the shared dataset context section.
func writeDatasetContext(prompt *strings.Builder, dctx DatasetContext) {
	prompt.WriteString("## Dataset\n\n")
	prompt.WriteString(fmt.Sprintf("- Name: %s\n", dctx.Name))
	prompt.WriteString(fmt.Sprintf("- File type: %s\n", dctx.FileType))
	prompt.WriteString(fmt.Sprintf("- Description: %s\n", dctx.Description))
	if dctx.ContextNotes != "" {
		prompt.WriteString(fmt.Sprintf("- Additional context from the owner: %s\n", dctx.ContextNotes))
	}
	prompt.WriteString("\n## Columns\n\n")
	for _, col := range dctx.Columns {
		if col.DataType != "" {
			prompt.WriteString(fmt.Sprintf("- %s (%s): %s\n", col.Name, col.DataType, col.Description))
		} else {
			prompt.WriteString(fmt.Sprintf("- %s: %s\n", col.Name, col.Description))
		}
	}
	prompt.WriteString("\n")
}

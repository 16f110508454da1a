package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/llm"
	"github.com/datagrade-io/datagrade-engine/pkg/models"
	"github.com/datagrade-io/datagrade-engine/pkg/prompts"
	"github.com/datagrade-io/datagrade-engine/pkg/retry"
)

// Metadata stamped onto every report, overriding model-supplied values.
const (
	reportSource  = "datagrade-engine"
	reportVersion = "1.0"
)

// SynthesisStage is the second LLM call: it merges the programmatic report
// and the interpretation commentary into the final structured report.
//
// A transport failure is fatal. An unparsable response is NOT: synthesis
// degrades to a deterministic fallback report carrying the raw text, so a
// malformed model response still completes the audit.
type SynthesisStage interface {
	Synthesize(ctx context.Context, dctx prompts.DatasetContext, programmaticReportJSON string, interpretation *Interpretation) (*models.FinalReport, error)
}

type synthesisStage struct {
	client      llm.LLMClient
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewSynthesisStage creates the synthesis stage.
func NewSynthesisStage(client llm.LLMClient, maxTokens int, temperature float64, logger *zap.Logger) SynthesisStage {
	return &synthesisStage{
		client:      client,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger.Named("synthesis"),
	}
}

// Synthesize runs the final LLM call and parses its response.
func (s *synthesisStage) Synthesize(ctx context.Context, dctx prompts.DatasetContext, programmaticReportJSON string, interpretation *Interpretation) (*models.FinalReport, error) {
	interpretationJSON, err := json.Marshal(interpretation)
	if err != nil {
		return nil, fmt.Errorf("marshal interpretation: %w", err)
	}

	prompt := prompts.BuildSynthesisPrompt(dctx, programmaticReportJSON, string(interpretationJSON))

	response, err := retry.DoWithResult(ctx, nil, func() (string, error) {
		return s.client.Complete(ctx, prompts.SynthesisSystemPrompt, prompt, s.maxTokens, s.temperature)
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis call failed: %w", err)
	}

	return s.parseResponse(response), nil
}

// parseResponse turns the raw model response into a report. It never fails:
// an unparsable response produces the fallback report instead.
func (s *synthesisStage) parseResponse(response string) *models.FinalReport {
	payload := llm.ExtractJSONPayload(response)

	var report models.FinalReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		s.logger.Warn("synthesis response was not valid JSON, producing fallback report",
			zap.Int("response_len", len(response)),
			zap.Error(err))
		return s.fallbackReport(strings.TrimSpace(response), err)
	}

	report.Metadata.GeneratedAt = time.Now()
	report.Metadata.Source = reportSource
	report.Metadata.Version = reportVersion

	return &report
}

// fallbackReport builds the deterministic degraded report for an unparsable
// response. The raw text is preserved in the metadata for diagnosis.
func (s *synthesisStage) fallbackReport(raw string, parseErr error) *models.FinalReport {
	return &models.FinalReport{
		ExecutiveSummary: "The AI-generated quality report could not be parsed. " +
			"The statistical analysis completed, but the final report synthesis returned a malformed response.",
		QualityScore:     0,
		ScoreExplanation: "Score unavailable: report synthesis failed.",
		KeyFindings: []string{
			"AI report generation error: the model response was not valid JSON",
		},
		DetailedAnalysis: map[string]any{
			"errors": parseErr.Error(),
		},
		Recommendations: []string{
			"Manually review the dataset statistics and re-run the audit",
		},
		Metadata: models.ReportMetadata{
			GeneratedAt: time.Now(),
			Source:      reportSource,
			Version:     reportVersion,
			Error:       true,
			RawResponse: raw,
		},
	}
}

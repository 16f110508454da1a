package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/datagrade-io/datagrade-engine/pkg/jsonutil"
	"github.com/datagrade-io/datagrade-engine/pkg/llm"
	"github.com/datagrade-io/datagrade-engine/pkg/prompts"
	"github.com/datagrade-io/datagrade-engine/pkg/retry"
)

// Interpretation is the semantic commentary the model produces on the
// programmatic findings. When the model's response is not valid JSON the
// whole text is kept as the summary; interpretation output only feeds the
// synthesis prompt, so shape tolerance is preferable to failing the run.
type Interpretation struct {
	Summary         string                      `json:"summary"`
	ColumnInsights  map[string]string           `json:"columnInsights,omitempty"`
	DatasetInsights jsonutil.FlexibleStringList `json:"datasetInsights,omitempty"`
}

// InterpretationStage is the first of the two LLM calls: it explains the
// flagged issues in the context the dataset owner supplied. Any transport
// failure is fatal to the pipeline - there is no partial continuation.
type InterpretationStage interface {
	Interpret(ctx context.Context, dctx prompts.DatasetContext, programmaticReportJSON string) (*Interpretation, error)
}

type interpretationStage struct {
	client      llm.LLMClient
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewInterpretationStage creates the interpretation stage.
func NewInterpretationStage(client llm.LLMClient, maxTokens int, temperature float64, logger *zap.Logger) InterpretationStage {
	return &interpretationStage{
		client:      client,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger.Named("interpretation"),
	}
}

// Interpret sends the programmatic findings and dataset context to the model.
func (s *interpretationStage) Interpret(ctx context.Context, dctx prompts.DatasetContext, programmaticReportJSON string) (*Interpretation, error) {
	prompt := prompts.BuildInterpretationPrompt(dctx, programmaticReportJSON)

	response, err := retry.DoWithResult(ctx, nil, func() (string, error) {
		return s.client.Complete(ctx, prompts.InterpretationSystemPrompt, prompt, s.maxTokens, s.temperature)
	})
	if err != nil {
		return nil, fmt.Errorf("interpretation call failed: %w", err)
	}

	payload := llm.ExtractJSONPayload(response)

	var interpretation Interpretation
	if err := json.Unmarshal([]byte(payload), &interpretation); err != nil {
		s.logger.Warn("interpretation response was not valid JSON, keeping raw text",
			zap.Int("response_len", len(response)),
			zap.Error(err))
		return &Interpretation{Summary: payload}, nil
	}

	return &interpretation, nil
}

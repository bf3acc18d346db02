package completion

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/guard"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/profiler"
)

const (
	defaultMaxTokens   = 1024
	defaultTemperature = 0.5
)

// Service runs completion requests through the guard pipeline and attaches
// the profiler's usage estimate to the result.
type Service struct {
	orchestrator *guard.Orchestrator[models.CompletionRequest, *llm.Response]
	profiler     *profiler.TokenProfiler
	modelName    string
	logger       *zerolog.Logger
}

type Options struct {
	Client    llm.Client
	Guard     guard.Options[models.CompletionRequest, *llm.Response]
	Profiler  *profiler.TokenProfiler
	ModelName string
	Logger    *zerolog.Logger
}

func NewService(opts Options) (*Service, error) {
	op := func(ctx context.Context, req models.CompletionRequest) (*llm.Response, error) {
		return opts.Client.InvokeModel(ctx, llm.Request{
			Prompt:      renderPrompt(req),
			MaxTokens:   maxTokens(req),
			Temperature: temperature(req),
		})
	}

	guardOpts := opts.Guard
	if guardOpts.Extract == nil {
		guardOpts.Extract = ExtractCheckInput
	}

	orchestrator, err := guard.New(op, guardOpts)
	if err != nil {
		return nil, err
	}

	return &Service{
		orchestrator: orchestrator,
		profiler:     opts.Profiler,
		modelName:    opts.ModelName,
		logger:       opts.Logger,
	}, nil
}

// ExtractCheckInput maps a completion request to the shape the input checks
// inspect. Checks see the rendered prompt, not the raw template.
func ExtractCheckInput(req models.CompletionRequest) models.CheckInput {
	return models.CheckInput{
		RequestID: req.EventID,
		Prompt:    renderPrompt(req),
		Variables: req.Variables,
	}
}

// Complete runs one guarded completion. The error, when non-nil, carries the
// full attempt history via guard.PipelineError.
func (s *Service) Complete(ctx context.Context, req models.CompletionRequest) (*models.CompletionResult, error) {
	resp, report, err := s.orchestrator.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &models.CompletionResult{
		ID:           req.EventID,
		Content:      resp.Content,
		StopReason:   resp.StopReason,
		Attempts:     len(report.Attempts),
		FallbackUsed: report.FallbackUsed,
	}

	if s.profiler != nil {
		usage := s.profiler.EstimateUsage(s.modelName, renderPrompt(req), resp.Content)
		result.Usage = &usage
	}

	return result, nil
}

func renderPrompt(req models.CompletionRequest) string {
	return models.RenderTemplate(req.Prompt, req.Variables)
}

func maxTokens(req models.CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}

func temperature(req models.CompletionRequest) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return defaultTemperature
}

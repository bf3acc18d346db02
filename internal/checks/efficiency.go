package checks

import (
	"context"
	"fmt"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/profiler"
)

// EfficiencyChecker fails prompts whose estimated carbon footprint exceeds a
// budget, nudging callers toward shorter prompts.
type EfficiencyChecker struct {
	Profiler       *profiler.TokenProfiler
	Calculator     *profiler.CarbonCalculator
	ModelName      string
	MaxCarbonGrams float64
}

func NewEfficiencyChecker(p *profiler.TokenProfiler, calc *profiler.CarbonCalculator, modelName string, maxCarbonGrams float64) *EfficiencyChecker {
	if maxCarbonGrams <= 0 {
		maxCarbonGrams = 0.05
	}

	return &EfficiencyChecker{
		Profiler:       p,
		Calculator:     calc,
		ModelName:      modelName,
		MaxCarbonGrams: maxCarbonGrams,
	}
}

func (c *EfficiencyChecker) Name() string {
	return "efficiency"
}

func (c *EfficiencyChecker) Check(ctx context.Context, input models.CheckInput) models.GuardrailResult {
	tokens := c.Profiler.CountTokens(input.Prompt)
	emissions := c.Calculator.Estimate(tokens, c.ModelName)

	if emissions.CarbonGrams > c.MaxCarbonGrams {
		result := models.FailResult(fmt.Sprintf(
			"prompt is inefficient: estimated input carbon (%.4fg) exceeds limit (%.4fg)",
			emissions.CarbonGrams, c.MaxCarbonGrams,
		))
		result.Metadata["emissions"] = emissions
		return result
	}

	result := models.PassResult()
	result.Metadata = map[string]any{"emissions": emissions}
	return result
}

package checks

import (
	"context"
	"strings"
	"testing"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/profiler"
)

func TestEfficiencyChecker(t *testing.T) {
	p := profiler.New([]profiler.ModelInfo{
		{ModelName: "test-model", EnergyFactorWhPer1K: 0.8},
	})
	calc := profiler.NewCarbonCalculator("NVIDIA_A100", "GLOBAL_AVG", p)
	checker := NewEfficiencyChecker(p, calc, "test-model", 0.001)

	t.Run("short prompt passes", func(t *testing.T) {
		result := checker.Check(context.Background(), models.CheckInput{Prompt: "hi there"})
		if !result.Passed {
			t.Errorf("expected pass, got failure: %s", result.Reason)
		}
		if result.Metadata["emissions"] == nil {
			t.Error("expected emissions estimate in metadata")
		}
	})

	t.Run("long prompt exceeds carbon budget", func(t *testing.T) {
		long := strings.Repeat("a", 400)
		result := checker.Check(context.Background(), models.CheckInput{Prompt: long})
		if result.Passed {
			t.Error("expected failure for oversized prompt")
		}
		if !strings.Contains(result.Reason, "inefficient") {
			t.Errorf("unexpected reason: %s", result.Reason)
		}
	})
}

func TestEfficiencyChecker_DefaultBudget(t *testing.T) {
	p := profiler.New(nil)
	calc := profiler.NewCarbonCalculator("NVIDIA_A100", "GLOBAL_AVG", p)

	checker := NewEfficiencyChecker(p, calc, "unknown", 0)
	if checker.MaxCarbonGrams != 0.05 {
		t.Errorf("expected default budget 0.05, got %f", checker.MaxCarbonGrams)
	}
}

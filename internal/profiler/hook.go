package profiler

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// UsageHook logs token utilization, cost, and carbon for each finished
// invocation. It satisfies the orchestrator's Hook interface.
type UsageHook struct {
	profiler  *TokenProfiler
	calc      *CarbonCalculator
	modelName string
	logger    *zerolog.Logger
}

func NewUsageHook(profiler *TokenProfiler, calc *CarbonCalculator, modelName string, logger *zerolog.Logger) *UsageHook {
	return &UsageHook{
		profiler:  profiler,
		calc:      calc,
		modelName: modelName,
		logger:    logger,
	}
}

func (h *UsageHook) Emit(ev models.Event) {
	if ev.Type != models.EventInvocationFinished || ev.Status != models.RunStatusSuccess {
		return
	}

	usage := h.profiler.EstimateUsage(h.modelName, ev.Input.Prompt, stringify(ev.Output))
	if h.calc != nil {
		emissions := h.calc.Estimate(usage.TotalTokens, h.modelName)
		usage.EnergyKWh = emissions.EnergyKWh
		usage.CarbonGrams = emissions.CarbonGrams
	}

	h.logger.Info().
		Str("request_id", ev.RequestID).
		Str("model", h.modelName).
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("estimated_cost", usage.EstimatedCost).
		Float64("carbon_g", usage.CarbonGrams).
		Msg("token utilization")
}

func stringify(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

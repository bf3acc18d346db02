package profiler

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// ModelInfo is one row of the model cost table (configs/models.yaml).
type ModelInfo struct {
	ModelName           string  `yaml:"model_name"`
	InputCostPer1K      float64 `yaml:"input_cost_per_1k"`
	OutputCostPer1K     float64 `yaml:"output_cost_per_1k"`
	EnergyFactorWhPer1K float64 `yaml:"energy_factor_wh_per_1k"`
	ParamCountBillions  float64 `yaml:"param_count_billions"`
}

type modelTable struct {
	Models []ModelInfo `yaml:"models"`
}

// LoadModelTable reads the cost table from MODELS_CONFIG_PATH (default
// configs/models.yaml). A missing file yields an empty table, not an error:
// the profiler still counts tokens, it just cannot price them.
func LoadModelTable() ([]ModelInfo, error) {
	path := os.Getenv("MODELS_CONFIG_PATH")
	if path == "" {
		path = "configs/models.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var table modelTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}

	return table.Models, nil
}

// TokenProfiler estimates token counts and request cost. It is passive
// instrumentation: estimates never influence guard control flow.
type TokenProfiler struct {
	models []ModelInfo
}

func New(models []ModelInfo) *TokenProfiler {
	return &TokenProfiler{
		models: models,
	}
}

// ModelInfo looks up a model by name, case-insensitively.
func (p *TokenProfiler) ModelInfo(modelName string) (ModelInfo, bool) {
	for _, m := range p.models {
		if strings.EqualFold(m.ModelName, modelName) {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// CountTokens approximates the token count of text. Rough heuristic:
// 1 token ~= 4 characters.
func (p *TokenProfiler) CountTokens(text string) int {
	if text == "" {
		return 0
	}

	count := len(text) / 4
	if count < 1 {
		count = 1
	}
	return count
}

// EstimateUsage estimates token counts and cost for one invocation. Cost is
// zero when the model is not in the table.
func (p *TokenProfiler) EstimateUsage(modelName string, input string, output string) models.TokenUsage {
	inputTokens := p.CountTokens(input)
	outputTokens := p.CountTokens(output)

	usage := models.TokenUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		ModelName:    modelName,
	}

	if info, ok := p.ModelInfo(modelName); ok {
		inputCost := float64(inputTokens) / 1000 * info.InputCostPer1K
		outputCost := float64(outputTokens) / 1000 * info.OutputCostPer1K
		usage.EstimatedCost = inputCost + outputCost
	}

	return usage
}

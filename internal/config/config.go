package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/linter"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

const defaultConfigPath = "configs/guardrails.yaml"

type BackoffConfig struct {
	InitialDelayMs int `yaml:"initial_delay_ms"`
	MaxDelayMs     int `yaml:"max_delay_ms"`
}

type ProfilingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ModelName     string `yaml:"model_name"`
	MetricsStream string `yaml:"metrics_stream"`
}

type CarbonConfig struct {
	Hardware         string  `yaml:"hardware"`
	Region           string  `yaml:"region"`
	MaxPromptCarbonG float64 `yaml:"max_prompt_carbon_g"`
}

// GuardrailsConfig is the root of configs/guardrails.yaml. It drives the
// failure policy, the input check set, and the optional profiling add-ons.
type GuardrailsConfig struct {
	FailurePolicy    string          `yaml:"failure_policy"`
	MaxRetries       int             `yaml:"max_retries"`
	Backoff          BackoffConfig   `yaml:"backoff"`
	FallbackContent  string          `yaml:"fallback_content"`
	InputChecks      []string        `yaml:"input_checks"`
	OutputSchemaPath string          `yaml:"output_schema_path"`
	Profiling        ProfilingConfig `yaml:"profiling"`
	Carbon           CarbonConfig    `yaml:"carbon"`
	Linter           linter.Config   `yaml:"linter"`
}

// Load reads the guardrails config from GUARDRAILS_CONFIG_PATH, falling back
// to configs/guardrails.yaml. A missing file yields the defaults.
func Load() (*GuardrailsConfig, error) {
	path := os.Getenv("GUARDRAILS_CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read guardrails config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse guardrails config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *GuardrailsConfig {
	return &GuardrailsConfig{
		FailurePolicy: string(models.FailureException),
		MaxRetries:    2,
		Backoff: BackoffConfig{
			InitialDelayMs: 100,
			MaxDelayMs:     12000,
		},
	}
}

func (c *GuardrailsConfig) Validate() error {
	if _, err := models.ParseFailureAction(c.FailurePolicy); err != nil {
		return err
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative, got %d", c.MaxRetries)
	}

	if c.Backoff.InitialDelayMs < 0 || c.Backoff.MaxDelayMs < 0 {
		return fmt.Errorf("backoff delays must be non-negative")
	}

	return nil
}

package setup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/checks"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/completion"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/config"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/guard"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/linter"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm/bedrock"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/llm/gpt"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/profiler"
	guardredis "github.com/povarna/generative-ai-agents/guard-agent/internal/redis"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/schema"
)

type Config struct {
	AWSRegion       string
	ClaudeModelID   string
	OpenAIKey       string
	OpenAIModelID   string
	DefaultProvider string
	RedisAddr       string
	RedisPassword   string
}

type Dependencies struct {
	Guardrails *config.GuardrailsConfig
	Service    *completion.Service
	Linter     *linter.Linter
	Profiler   *profiler.TokenProfiler
	Logger     *zerolog.Logger
}

func LoadConfig() *Config {
	return &Config{
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		ClaudeModelID:   getEnv("CLAUDE_MODEL_ID", ""),
		OpenAIKey:       getEnv("OPEN_AI_KEY", ""),
		OpenAIModelID:   getEnv("OPEN_AI_MODEL_ID", ""),
		DefaultProvider: getEnv("DEFAULT_LLM_PROVIDER", "bedrock"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
	}
}

// Wire builds the guarded completion service from the environment and the
// guardrails YAML. The metrics emitter is optional and only connected when
// profiling is enabled with a metrics stream configured.
func Wire(ctx context.Context, cfg *Config, logger *zerolog.Logger) (*Dependencies, error) {
	guardrails, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load guardrails config: %w", err)
	}

	llmClient, err := createLLMClient(ctx, cfg.DefaultProvider, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	modelTable, err := profiler.LoadModelTable()
	if err != nil {
		return nil, fmt.Errorf("failed to load model table: %w", err)
	}
	tokenProfiler := profiler.New(modelTable)
	calculator := profiler.NewCarbonCalculator(guardrails.Carbon.Hardware, guardrails.Carbon.Region, tokenProfiler)

	checkers, err := buildCheckers(guardrails, tokenProfiler, calculator)
	if err != nil {
		return nil, err
	}

	validator, err := loadValidator(guardrails.OutputSchemaPath)
	if err != nil {
		return nil, err
	}

	policy := guard.Policy{
		OnFail:       models.FailureAction(guardrails.FailurePolicy),
		MaxRetries:   guardrails.MaxRetries,
		InitialDelay: time.Duration(guardrails.Backoff.InitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(guardrails.Backoff.MaxDelayMs) * time.Millisecond,
	}

	var fallback func() *llm.Response
	if policy.OnFail == models.FailureFallback {
		content := guardrails.FallbackContent
		fallback = func() *llm.Response {
			return &llm.Response{Content: content, StopReason: "fallback"}
		}
	}

	hooks, err := buildHooks(ctx, cfg, guardrails, tokenProfiler, calculator, logger)
	if err != nil {
		return nil, err
	}

	service, err := completion.NewService(completion.Options{
		Client: llmClient,
		Guard: guard.Options[models.CompletionRequest, *llm.Response]{
			Checks:    checkers,
			Validator: validator,
			Policy:    policy,
			Fallback:  fallback,
			Hooks:     hooks,
			Logger:    logger,
		},
		Profiler:  tokenProfiler,
		ModelName: guardrails.Profiling.ModelName,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build completion service: %w", err)
	}

	return &Dependencies{
		Guardrails: guardrails,
		Service:    service,
		Linter:     linter.New(guardrails.Linter, tokenProfiler),
		Profiler:   tokenProfiler,
		Logger:     logger,
	}, nil
}

func buildCheckers(cfg *config.GuardrailsConfig, p *profiler.TokenProfiler, calc *profiler.CarbonCalculator) ([]checks.Checker, error) {
	var checkers []checks.Checker
	for _, name := range cfg.InputChecks {
		switch name {
		case "injection":
			checkers = append(checkers, checks.NewInjectionChecker())
		case "pii":
			checkers = append(checkers, checks.NewPIIChecker())
		case "efficiency":
			checkers = append(checkers, checks.NewEfficiencyChecker(
				p, calc, cfg.Profiling.ModelName, cfg.Carbon.MaxPromptCarbonG,
			))
		default:
			return nil, fmt.Errorf("unknown input check: %q", name)
		}
	}
	return checkers, nil
}

func loadValidator(path string) (schema.Validator, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read output schema: %w", err)
	}

	s, err := schema.Parse(data)
	if err != nil {
		return nil, err
	}

	return schema.NewJSONSchemaValidator(s)
}

func buildHooks(
	ctx context.Context,
	cfg *Config,
	guardrails *config.GuardrailsConfig,
	p *profiler.TokenProfiler,
	calc *profiler.CarbonCalculator,
	logger *zerolog.Logger,
) ([]guard.Hook, error) {
	if !guardrails.Profiling.Enabled {
		return nil, nil
	}

	hooks := []guard.Hook{
		profiler.NewUsageHook(p, calc, guardrails.Profiling.ModelName, logger),
	}

	if guardrails.Profiling.MetricsStream != "" {
		client, err := guardredis.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, 3, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect metrics emitter: %w", err)
		}
		emitter := profiler.NewEmitter(client, guardrails.Profiling.MetricsStream, logger)
		emitter.Start(ctx)
		hooks = append(hooks, emitter)
	}

	return hooks, nil
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	return value
}

func createLLMClient(ctx context.Context, provider string, cfg *Config) (llm.Client, error) {
	switch provider {
	case "bedrock":
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
	case "openai":
		return gpt.NewClient(cfg.OpenAIKey, cfg.OpenAIModelID)
	default:
		return bedrock.NewClient(ctx, cfg.AWSRegion, cfg.ClaudeModelID)
	}
}

package checks

import (
	"context"
	"fmt"
	"regexp"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore previous instructions`),
	regexp.MustCompile(`(?i)system prompt`),
	regexp.MustCompile(`(?i)instead of what you were told`),
	regexp.MustCompile(`(?i)bypass`),
}

// InjectionChecker flags common prompt injection phrasings in the input.
type InjectionChecker struct {
}

func NewInjectionChecker() *InjectionChecker {
	return &InjectionChecker{}
}

func (c *InjectionChecker) Name() string {
	return "injection"
}

func (c *InjectionChecker) Check(ctx context.Context, input models.CheckInput) models.GuardrailResult {
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(input.Prompt) {
			result := models.FailResult(fmt.Sprintf("potential injection detected: %s", pattern.String()))
			result.Metadata["pattern"] = pattern.String()
			return result
		}
	}

	return models.PassResult()
}

package checks

import (
	"context"
	"regexp"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
)

// PIIChecker flags email addresses and phone numbers in the input.
type PIIChecker struct {
}

func NewPIIChecker() *PIIChecker {
	return &PIIChecker{}
}

func (c *PIIChecker) Name() string {
	return "pii"
}

func (c *PIIChecker) Check(ctx context.Context, input models.CheckInput) models.GuardrailResult {
	if emailPattern.MatchString(input.Prompt) {
		result := models.FailResult("email address detected")
		result.Metadata["category"] = "email"
		return result
	}

	if phonePattern.MatchString(input.Prompt) {
		result := models.FailResult("phone number detected")
		result.Metadata["category"] = "phone"
		return result
	}

	return models.PassResult()
}

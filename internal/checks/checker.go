package checks

import (
	"context"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// Checker is a pluggable input predicate. Implementations must be
// side-effect-free with respect to the input and safe for concurrent use.
type Checker interface {
	Name() string
	Check(ctx context.Context, input models.CheckInput) models.GuardrailResult
}

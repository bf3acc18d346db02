package guard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

var (
	// ErrRetryBudgetExhausted matches pipeline errors that failed after
	// consuming every retry attempt.
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrGuardFailed matches any terminal pipeline failure.
	ErrGuardFailed = errors.New("guard pipeline failed")
)

// PipelineError is the terminal failure of an orchestration run. It carries
// every attempt record so the caller can see each stage and attempt that
// failed, not just the last.
type PipelineError struct {
	Attempts  []models.AttemptRecord
	Exhausted bool
}

func (e *PipelineError) Error() string {
	var b strings.Builder
	if e.Exhausted {
		fmt.Fprintf(&b, "guard pipeline failed: retry budget exhausted after %d attempts", len(e.Attempts))
	} else {
		fmt.Fprintf(&b, "guard pipeline failed after %d attempts", len(e.Attempts))
	}

	for _, rec := range e.Attempts {
		fmt.Fprintf(&b, "; attempt %d failed at %s", rec.Attempt, rec.Stage)
		if rec.Failure != nil && rec.Failure.Reason != "" {
			fmt.Fprintf(&b, " (%s)", rec.Failure.Reason)
		} else if rec.Err != "" {
			fmt.Fprintf(&b, " (%s)", rec.Err)
		}
	}

	return b.String()
}

func (e *PipelineError) Is(target error) bool {
	if target == ErrGuardFailed {
		return true
	}
	if target == ErrRetryBudgetExhausted {
		return e.Exhausted
	}
	return false
}

// LastStage reports the stage reached by the final attempt.
func (e *PipelineError) LastStage() models.Stage {
	if len(e.Attempts) == 0 {
		return ""
	}
	return e.Attempts[len(e.Attempts)-1].Stage
}

// ValidatorInternalError marks a malfunction of the output validator itself,
// as opposed to the output failing validation. It bypasses the failure policy
// and surfaces immediately.
type ValidatorInternalError struct {
	Err error
}

func (e *ValidatorInternalError) Error() string {
	return fmt.Sprintf("output validator malfunction: %v", e.Err)
}

func (e *ValidatorInternalError) Unwrap() error {
	return e.Err
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// Stage identifies how far an attempt got before it ended.
type Stage string

const (
	StageInputCheck       Stage = "input_check"
	StageInvocation       Stage = "invocation"
	StageOutputValidation Stage = "output_validation"
)

// FailureAction is the recovery strategy applied when a check, the wrapped
// operation, or output validation fails.
type FailureAction string

const (
	FailureRetry     FailureAction = "retry"
	FailureFallback  FailureAction = "fallback"
	FailureException FailureAction = "exception"
)

func ParseFailureAction(s string) (FailureAction, error) {
	switch FailureAction(s) {
	case FailureRetry, FailureFallback, FailureException:
		return FailureAction(s), nil
	default:
		return "", fmt.Errorf("unknown failure action: %q", s)
	}
}

// GuardrailResult is the outcome of a single check or validation.
// Reason is set only when Passed is false.
type GuardrailResult struct {
	Passed   bool           `json:"passed"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func PassResult() GuardrailResult {
	return GuardrailResult{Passed: true}
}

func FailResult(reason string) GuardrailResult {
	return GuardrailResult{
		Passed:   false,
		Reason:   reason,
		Metadata: make(map[string]any),
	}
}

// CheckInput is the snapshot of the inputs that checks evaluate. Checks never
// mutate it; the wrapped operation always receives the original inputs.
type CheckInput struct {
	RequestID string            `json:"request_id"`
	Prompt    string            `json:"prompt"`
	Variables map[string]string `json:"variables,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
}

// CheckResult pairs a check's identity with its result.
type CheckResult struct {
	Name     string          `json:"name"`
	Result   GuardrailResult `json:"result"`
	Duration time.Duration   `json:"duration_ns"`
}

// CheckOutcome aggregates one run of the input checks. Results are ordered by
// submission order, not completion order.
type CheckOutcome struct {
	Results []CheckResult `json:"results"`
	Passed  bool          `json:"passed"`
}

// FirstFailure returns the first failing check in submission order.
func (o CheckOutcome) FirstFailure() (CheckResult, bool) {
	for _, r := range o.Results {
		if !r.Result.Passed {
			return r, true
		}
	}
	return CheckResult{}, false
}

// AttemptRecord describes one full pass through the guard pipeline.
// Attempt numbering starts at 1.
type AttemptRecord struct {
	Attempt int              `json:"attempt"`
	Stage   Stage            `json:"stage"`
	Failure *GuardrailResult `json:"failure,omitempty"`
	Err     string           `json:"error,omitempty"`
}

// RunStatus is the terminal state of an orchestration run.
type RunStatus string

const (
	RunStatusSuccess   RunStatus = "success"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunReport summarizes a finished orchestration run, successful or not.
type RunReport struct {
	Status       RunStatus       `json:"status"`
	Attempts     []AttemptRecord `json:"attempts"`
	FallbackUsed bool            `json:"fallback_used"`
}

// EventType enumerates the lifecycle events emitted to profiling hooks.
type EventType string

const (
	EventInvocationStarted  EventType = "invocation_started"
	EventAttemptCompleted   EventType = "attempt_completed"
	EventInvocationFinished EventType = "invocation_finished"
)

// Event is a lifecycle notification for profiling hooks. Hooks are passive:
// they never influence control flow and must not block the caller.
type Event struct {
	Type      EventType     `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	Attempt   AttemptRecord `json:"attempt,omitzero"`
	Status    RunStatus     `json:"status,omitempty"`
	Input     CheckInput    `json:"input,omitzero"`
	Output    any           `json:"output,omitempty"`
	At        time.Time     `json:"at"`
}

// TokenUsage is the profiler's estimate for one invocation.
type TokenUsage struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	TotalTokens   int     `json:"total_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
	EnergyKWh     float64 `json:"energy_kwh,omitempty"`
	CarbonGrams   float64 `json:"carbon_g,omitempty"`
	ModelName     string  `json:"model_name,omitempty"`
}

// LintResult is the prompt linter's report. Warnings never fail the lint.
type LintResult struct {
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Input message

type CompletionRequest struct {
	EventID     string            `json:"event_id" jsonschema:"required,description=Unique event identifier"`
	Prompt      string            `json:"prompt" jsonschema:"required,description=Prompt to send to the model"`
	Variables   map[string]string `json:"variables,omitempty" jsonschema:"description=Template variables substituted into the prompt"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
}

// RenderTemplate substitutes {name} placeholders with their variable values.
// Unknown placeholders are left intact.
func RenderTemplate(template string, variables map[string]string) string {
	if len(variables) == 0 {
		return template
	}

	rendered := template
	for k, v := range variables {
		rendered = strings.ReplaceAll(rendered, "{"+k+"}", v)
	}
	return rendered
}

// Final output returned to the caller
type CompletionResult struct {
	ID           string      `json:"id"`
	Content      string      `json:"content"`
	StopReason   string      `json:"stop_reason,omitempty"`
	Attempts     int         `json:"attempts"`
	FallbackUsed bool        `json:"fallback_used,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

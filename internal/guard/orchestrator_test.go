package guard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/checks"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/guard/mocks"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

func fastRetryPolicy(maxRetries int) Policy {
	return Policy{
		OnFail:       models.FailureRetry,
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

func extractPrompt(prompt string) func(string) models.CheckInput {
	return func(input string) models.CheckInput {
		return models.CheckInput{RequestID: "test-001", Prompt: prompt}
	}
}

func TestOrchestrator_NilOperation(t *testing.T) {
	_, err := New[string, string](nil, Options[string, string]{})
	if !errors.Is(err, ErrNilOperation) {
		t.Fatalf("expected ErrNilOperation, got %v", err)
	}
}

func TestOrchestrator_FallbackPolicyRequiresFallback(t *testing.T) {
	op := func(ctx context.Context, in string) (string, error) { return in, nil }
	_, err := New(op, Options[string, string]{
		Policy: Policy{OnFail: models.FailureFallback},
	})
	if !errors.Is(err, ErrFallbackRequired) {
		t.Fatalf("expected ErrFallbackRequired, got %v", err)
	}
}

func TestOrchestrator_NoChecksNoValidator_SucceedsFirstAttempt(t *testing.T) {
	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		invocations.Add(1)
		return strings.ToUpper(in), nil
	}

	o, err := New(op, Options[string, string]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, report, err := o.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "HELLO" {
		t.Errorf("expected HELLO, got %s", out)
	}
	if invocations.Load() != 1 {
		t.Errorf("expected 1 invocation, got %d", invocations.Load())
	}
	if report.Status != models.RunStatusSuccess {
		t.Errorf("expected success status, got %s", report.Status)
	}
	if len(report.Attempts) != 1 || report.Attempts[0].Attempt != 1 {
		t.Errorf("expected a single attempt numbered 1, got %+v", report.Attempts)
	}
}

func TestOrchestrator_CheckFailure_ExceptionPolicy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pass := mocks.NewMockChecker(ctrl)
	pass.EXPECT().Name().Return("length").AnyTimes()
	pass.EXPECT().Check(gomock.Any(), gomock.Any()).Return(models.PassResult())

	fail := mocks.NewMockChecker(ctrl)
	fail.EXPECT().Name().Return("pii").AnyTimes()
	fail.EXPECT().Check(gomock.Any(), gomock.Any()).Return(models.FailResult("pii detected"))

	pass2 := mocks.NewMockChecker(ctrl)
	pass2.EXPECT().Name().Return("format").AnyTimes()
	pass2.EXPECT().Check(gomock.Any(), gomock.Any()).Return(models.PassResult())

	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		invocations.Add(1)
		return in, nil
	}

	o, err := New(op, Options[string, string]{
		Checks:  []checks.Checker{pass, fail, pass2},
		Extract: extractPrompt("my email is a@b.com"),
		Policy:  Policy{OnFail: models.FailureException},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, report, err := o.Run(context.Background(), "my email is a@b.com")
	if err == nil {
		t.Fatal("expected pipeline error")
	}
	if invocations.Load() != 0 {
		t.Errorf("operation must not run when a check fails, got %d invocations", invocations.Load())
	}
	if report.Status != models.RunStatusFailed {
		t.Errorf("expected failed status, got %s", report.Status)
	}

	var pipelineErr *PipelineError
	if !errors.As(err, &pipelineErr) {
		t.Fatalf("expected PipelineError, got %T", err)
	}
	if pipelineErr.LastStage() != models.StageInputCheck {
		t.Errorf("expected input check stage, got %s", pipelineErr.LastStage())
	}
	if !strings.Contains(err.Error(), "pii detected") {
		t.Errorf("error should cite the failing check reason: %s", err.Error())
	}

	rec := report.Attempts[0]
	if rec.Failure == nil {
		t.Fatal("expected a recorded failure")
	}
	if rec.Failure.Metadata["check"] != "pii" {
		t.Errorf("expected failing check name pii, got %v", rec.Failure.Metadata["check"])
	}
	results, ok := rec.Failure.Metadata["results"].([]models.CheckResult)
	if !ok || len(results) != 3 {
		t.Fatalf("expected all 3 check results in metadata, got %v", rec.Failure.Metadata["results"])
	}
	// Submission order is preserved regardless of completion order.
	for i, name := range []string{"length", "pii", "format"} {
		if results[i].Name != name {
			t.Errorf("result %d: expected %s, got %s", i, name, results[i].Name)
		}
	}
}

func TestOrchestrator_CheckFailureRecordIsDetached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// The same result value is returned for every call, as a stateless
	// checker would.
	shared := models.FailResult("pii detected")
	shared.Metadata["category"] = "email"

	checker := mocks.NewMockChecker(ctrl)
	checker.EXPECT().Name().Return("pii").AnyTimes()
	checker.EXPECT().Check(gomock.Any(), gomock.Any()).Return(shared)

	op := func(ctx context.Context, in string) (string, error) { return in, nil }

	o, err := New(op, Options[string, string]{
		Checks:  []checks.Checker{checker},
		Extract: extractPrompt("my email is a@b.com"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, report, err := o.Run(context.Background(), "my email is a@b.com")
	if err == nil {
		t.Fatal("expected pipeline error")
	}

	// The checker's own result must not be touched.
	if len(shared.Metadata) != 1 || shared.Metadata["category"] != "email" {
		t.Errorf("checker result metadata was mutated: %v", shared.Metadata)
	}

	rec := report.Attempts[0]
	if rec.Failure.Metadata["check"] != "pii" || rec.Failure.Metadata["category"] != "email" {
		t.Errorf("record metadata should carry both the check name and the checker's entries: %v", rec.Failure.Metadata)
	}

	// The attempt record must encode cleanly for stream emitters, so the
	// embedded result set cannot refer back to the record's own metadata.
	if _, err := json.Marshal(models.Event{
		Type:    models.EventAttemptCompleted,
		Attempt: rec,
	}); err != nil {
		t.Errorf("attempt event must be JSON encodable: %v", err)
	}
}

func TestOrchestrator_RetryExhaustsBudget(t *testing.T) {
	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		invocations.Add(1)
		return "", fmt.Errorf("provider unavailable")
	}

	o, err := New(op, Options[string, string]{Policy: fastRetryPolicy(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, report, err := o.Run(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected pipeline error")
	}
	if invocations.Load() != 3 {
		t.Errorf("expected 3 invocations for max_retries=2, got %d", invocations.Load())
	}
	if !errors.Is(err, ErrRetryBudgetExhausted) {
		t.Errorf("expected ErrRetryBudgetExhausted, got %v", err)
	}
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("expected ErrGuardFailed, got %v", err)
	}
	if len(report.Attempts) != 3 {
		t.Errorf("expected 3 attempt records, got %d", len(report.Attempts))
	}
	for i, rec := range report.Attempts {
		if rec.Attempt != i+1 {
			t.Errorf("attempt record %d: expected number %d, got %d", i, i+1, rec.Attempt)
		}
		if rec.Stage != models.StageInvocation {
			t.Errorf("attempt record %d: expected invocation stage, got %s", i, rec.Stage)
		}
	}
}

func TestOrchestrator_RetrySucceedsOnThirdAttempt(t *testing.T) {
	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		if invocations.Add(1) < 3 {
			return "", fmt.Errorf("transient failure")
		}
		return "ok", nil
	}

	o, err := New(op, Options[string, string]{Policy: fastRetryPolicy(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, report, err := o.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "ok" {
		t.Errorf("expected ok, got %s", out)
	}
	if report.Status != models.RunStatusSuccess {
		t.Errorf("expected success, got %s", report.Status)
	}
	if len(report.Attempts) != 3 {
		t.Fatalf("expected 3 attempt records, got %d", len(report.Attempts))
	}
	if last := report.Attempts[2]; last.Attempt != 3 || last.Failure != nil || last.Err != "" {
		t.Errorf("expected clean third attempt, got %+v", last)
	}
}

func TestOrchestrator_MaxRetriesZero_SingleAttempt(t *testing.T) {
	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		invocations.Add(1)
		return "", fmt.Errorf("boom")
	}

	o, err := New(op, Options[string, string]{Policy: fastRetryPolicy(0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = o.Run(context.Background(), "hello")
	if !errors.Is(err, ErrRetryBudgetExhausted) {
		t.Fatalf("expected ErrRetryBudgetExhausted, got %v", err)
	}
	if invocations.Load() != 1 {
		t.Errorf("expected exactly 1 invocation, got %d", invocations.Load())
	}
}

func TestOrchestrator_ChecksRerunOnRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	checker := mocks.NewMockChecker(ctrl)
	checker.EXPECT().Name().Return("injection").AnyTimes()
	checker.EXPECT().Check(gomock.Any(), gomock.Any()).Return(models.PassResult()).Times(2)

	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		if invocations.Add(1) == 1 {
			return "", fmt.Errorf("transient failure")
		}
		return "ok", nil
	}

	o, err := New(op, Options[string, string]{
		Checks:  []checks.Checker{checker},
		Extract: extractPrompt("hello"),
		Policy:  fastRetryPolicy(1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := o.Run(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrchestrator_FallbackShortCircuits(t *testing.T) {
	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		invocations.Add(1)
		return "", fmt.Errorf("provider unavailable")
	}

	o, err := New(op, Options[string, string]{
		Policy:   Policy{OnFail: models.FailureFallback, MaxRetries: 5},
		Fallback: func() string { return "canned response" },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, report, err := o.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "canned response" {
		t.Errorf("expected fallback output, got %s", out)
	}
	// Fallback is immediate: the retry budget is never consumed.
	if invocations.Load() != 1 {
		t.Errorf("expected 1 invocation before fallback, got %d", invocations.Load())
	}
	if !report.FallbackUsed {
		t.Error("expected FallbackUsed to be set")
	}
	if report.Status != models.RunStatusSuccess {
		t.Errorf("expected success status with fallback, got %s", report.Status)
	}
}

func TestOrchestrator_OutputValidationFailure_Retries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	validator := mocks.NewMockValidator(ctrl)
	gomock.InOrder(
		validator.EXPECT().Validate(gomock.Any(), gomock.Any()).
			Return(models.FailResult("missing required field"), nil),
		validator.EXPECT().Validate(gomock.Any(), gomock.Any()).
			Return(models.PassResult(), nil),
	)

	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		invocations.Add(1)
		return `{"answer":"42"}`, nil
	}

	o, err := New(op, Options[string, string]{
		Validator: validator,
		Policy:    fastRetryPolicy(1),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, report, err := o.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invocations.Load() != 2 {
		t.Errorf("expected 2 invocations, got %d", invocations.Load())
	}
	if report.Attempts[0].Stage != models.StageOutputValidation {
		t.Errorf("expected first failure at output validation, got %s", report.Attempts[0].Stage)
	}
}

func TestOrchestrator_ValidatorMalfunctionBypassesPolicy(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	validator := mocks.NewMockValidator(ctrl)
	validator.EXPECT().Validate(gomock.Any(), gomock.Any()).
		Return(models.GuardrailResult{}, fmt.Errorf("schema resolver panicked"))

	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		invocations.Add(1)
		return "ok", nil
	}

	// Fallback policy would normally swallow failures. A validator
	// malfunction must surface regardless.
	o, err := New(op, Options[string, string]{
		Validator: validator,
		Policy:    Policy{OnFail: models.FailureFallback, MaxRetries: 3},
		Fallback:  func() string { return "canned" },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, report, err := o.Run(context.Background(), "hello")
	var validatorErr *ValidatorInternalError
	if !errors.As(err, &validatorErr) {
		t.Fatalf("expected ValidatorInternalError, got %v", err)
	}
	if invocations.Load() != 1 {
		t.Errorf("expected 1 invocation, got %d", invocations.Load())
	}
	if report.Status != models.RunStatusFailed {
		t.Errorf("expected failed status, got %s", report.Status)
	}
	if report.FallbackUsed {
		t.Error("fallback must not run on validator malfunction")
	}
}

func TestOrchestrator_CancellationDuringInvocation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var invocations atomic.Int32
	op := func(ctx context.Context, in string) (string, error) {
		invocations.Add(1)
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}

	o, err := New(op, Options[string, string]{Policy: fastRetryPolicy(5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, report, err := o.Run(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Status != models.RunStatusCancelled {
		t.Errorf("expected cancelled status, got %s", report.Status)
	}
	// Cancellation is never retried.
	if invocations.Load() != 1 {
		t.Errorf("expected 1 invocation, got %d", invocations.Load())
	}
}

func TestOrchestrator_CancelledBeforeRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := func(ctx context.Context, in string) (string, error) {
		t.Fatal("operation must not run on a cancelled context")
		return "", nil
	}

	o, err := New(op, Options[string, string]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, report, err := o.Run(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Status != models.RunStatusCancelled {
		t.Errorf("expected cancelled status, got %s", report.Status)
	}
	if len(report.Attempts) != 0 {
		t.Errorf("expected no attempts, got %d", len(report.Attempts))
	}
}

func TestOrchestrator_HooksObserveLifecycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	hook := mocks.NewMockHook(ctrl)

	var events []models.EventType
	hook.EXPECT().Emit(gomock.Any()).Do(func(ev models.Event) {
		events = append(events, ev.Type)
	}).Times(3)

	op := func(ctx context.Context, in string) (string, error) { return "ok", nil }

	o, err := New(op, Options[string, string]{
		Extract: extractPrompt("hello"),
		Hooks:   []Hook{hook},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := o.Run(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []models.EventType{
		models.EventInvocationStarted,
		models.EventAttemptCompleted,
		models.EventInvocationFinished,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, typ := range want {
		if events[i] != typ {
			t.Errorf("event %d: expected %s, got %s", i, typ, events[i])
		}
	}
}

func TestWrap_ReturnsPlainOperation(t *testing.T) {
	op := func(ctx context.Context, in string) (string, error) { return in + "!", nil }

	wrapped, err := Wrap(op, Options[string, string]{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := wrapped(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello!" {
		t.Errorf("expected hello!, got %s", out)
	}
}

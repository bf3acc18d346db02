package guard

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/checks"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/schema"
)

var (
	ErrNilOperation     = errors.New("operation is required")
	ErrFallbackRequired = errors.New("fallback is required when failure action is fallback")
	ErrNegativeRetries  = errors.New("max retries must be >= 0")
)

// Operation is the wrapped call. The orchestrator is polymorphic over its
// argument and return shapes and passes the input through unmodified.
type Operation[I, O any] func(ctx context.Context, input I) (O, error)

// Options configures an Orchestrator. The configuration is read-only after
// construction and safe to share across concurrent invocations.
type Options[I, O any] struct {
	Checks    []checks.Checker
	Extract   func(input I) models.CheckInput
	Validator schema.Validator
	Policy    Policy
	Fallback  func() O
	Hooks     []Hook
	Logger    *zerolog.Logger
}

// Orchestrator sequences input checks, the wrapped operation, output
// validation, and failure recovery. One invocation is a single logical state
// machine; many invocations may run concurrently with no shared mutable
// state between them.
type Orchestrator[I, O any] struct {
	op        Operation[I, O]
	runner    *checks.Runner
	extract   func(input I) models.CheckInput
	validator schema.Validator
	policy    Policy
	fallback  func() O
	hooks     []Hook
	logger    *zerolog.Logger
}

func New[I, O any](op Operation[I, O], opts Options[I, O]) (*Orchestrator[I, O], error) {
	if op == nil {
		return nil, ErrNilOperation
	}

	policy := opts.Policy
	if policy.OnFail == "" {
		policy.OnFail = models.FailureException
	}
	if policy.MaxRetries < 0 {
		return nil, ErrNegativeRetries
	}
	if policy.OnFail == models.FailureFallback && opts.Fallback == nil {
		return nil, ErrFallbackRequired
	}

	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Orchestrator[I, O]{
		op:        op,
		runner:    checks.NewRunner(opts.Checks, logger),
		extract:   opts.Extract,
		validator: opts.Validator,
		policy:    policy,
		fallback:  opts.Fallback,
		hooks:     opts.Hooks,
		logger:    logger,
	}, nil
}

// Wrap composes op with the guard pipeline and returns the guarded callable.
func Wrap[I, O any](op Operation[I, O], opts Options[I, O]) (Operation[I, O], error) {
	o, err := New(op, opts)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, input I) (O, error) {
		out, _, err := o.Run(ctx, input)
		return out, err
	}, nil
}

// Run executes the guard pipeline: input checks, invocation, output
// validation, and recovery per the failure policy. A retry re-runs the whole
// pipeline, input checks included, since checks may be non-deterministic and
// the operation is retried precisely because its prior output was
// unacceptable. Cancellation propagates immediately and is never retried or
// converted to a fallback.
func (o *Orchestrator[I, O]) Run(ctx context.Context, input I) (O, models.RunReport, error) {
	var zero O

	var checkIn models.CheckInput
	if o.extract != nil {
		checkIn = o.extract(input)
	}

	o.emitStarted(checkIn)

	var attempts []models.AttemptRecord

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			o.emitFinished(checkIn, models.RunStatusCancelled, nil)
			return zero, models.RunReport{Status: models.RunStatusCancelled, Attempts: attempts}, err
		}

		out, rec, fatal := o.attempt(ctx, attempt, input, checkIn)
		if fatal != nil {
			status := models.RunStatusFailed
			if isCancellation(ctx, fatal) {
				status = models.RunStatusCancelled
			}
			o.emitFinished(checkIn, status, nil)
			return zero, models.RunReport{Status: status, Attempts: attempts}, fatal
		}

		attempts = append(attempts, rec)
		o.emitAttempt(checkIn.RequestID, rec)

		if rec.Failure == nil && rec.Err == "" {
			o.emitFinished(checkIn, models.RunStatusSuccess, out)
			return out, models.RunReport{Status: models.RunStatusSuccess, Attempts: attempts}, nil
		}

		o.logger.Warn().
			Str("request_id", checkIn.RequestID).
			Int("attempt", rec.Attempt).
			Str("stage", string(rec.Stage)).
			Msg("guard attempt failed")

		switch o.policy.OnFail {
		case models.FailureFallback:
			// Graceful degradation, not recovery by repetition: the fallback
			// never consumes retry budget.
			out := o.fallback()
			o.emitFinished(checkIn, models.RunStatusSuccess, out)
			return out, models.RunReport{
				Status:       models.RunStatusSuccess,
				Attempts:     attempts,
				FallbackUsed: true,
			}, nil

		case models.FailureRetry:
			if attempt < o.policy.maxAttempts() {
				if err := o.policy.wait(ctx, attempt); err != nil {
					o.emitFinished(checkIn, models.RunStatusCancelled, nil)
					return zero, models.RunReport{Status: models.RunStatusCancelled, Attempts: attempts}, err
				}
				o.logger.Info().
					Str("request_id", checkIn.RequestID).
					Int("attempt", attempt+1).
					Msg("retrying execution")
				continue
			}
			o.emitFinished(checkIn, models.RunStatusFailed, nil)
			return zero, models.RunReport{Status: models.RunStatusFailed, Attempts: attempts},
				&PipelineError{Attempts: attempts, Exhausted: true}

		default:
			o.emitFinished(checkIn, models.RunStatusFailed, nil)
			return zero, models.RunReport{Status: models.RunStatusFailed, Attempts: attempts},
				&PipelineError{Attempts: attempts}
		}
	}
}

// attempt executes one full pass. A non-nil fatal error bypasses the failure
// policy (validator malfunction, cancellation); recoverable failures are
// reported on the attempt record.
func (o *Orchestrator[I, O]) attempt(ctx context.Context, n int, input I, checkIn models.CheckInput) (O, models.AttemptRecord, error) {
	var zero O
	rec := models.AttemptRecord{Attempt: n, Stage: models.StageInputCheck}

	outcome := o.runner.Run(ctx, checkIn)
	if !outcome.Passed {
		first, _ := outcome.FirstFailure()
		failure := first.Result
		// Checker results are immutable once returned. The record gets its
		// own metadata map so augmenting it cannot mutate the checker's map
		// or make the embedded result set refer back to itself.
		md := make(map[string]any, len(failure.Metadata)+2)
		for k, v := range failure.Metadata {
			md[k] = v
		}
		md["check"] = first.Name
		md["results"] = outcome.Results
		failure.Metadata = md
		rec.Failure = &failure
		return zero, rec, nil
	}

	rec.Stage = models.StageInvocation
	out, err := o.op(ctx, input)
	if err != nil {
		if isCancellation(ctx, err) {
			return zero, rec, err
		}
		rec.Err = err.Error()
		return zero, rec, nil
	}

	rec.Stage = models.StageOutputValidation
	if o.validator != nil {
		vres, verr := o.validator.Validate(ctx, out)
		if verr != nil {
			return zero, rec, &ValidatorInternalError{Err: verr}
		}
		if !vres.Passed {
			rec.Failure = &vres
			return zero, rec, nil
		}
	}

	return out, rec, nil
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

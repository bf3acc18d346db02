package checks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
	"github.com/rs/zerolog"
)

// Runner executes a fixed set of checks concurrently against the same input
// snapshot. It never short-circuits: every check runs to completion so the
// caller gets every triggered reason, not just the first.
type Runner struct {
	checkers []Checker
	logger   *zerolog.Logger
}

func NewRunner(checkers []Checker, logger *zerolog.Logger) *Runner {
	return &Runner{
		checkers: checkers,
		logger:   logger,
	}
}

// Run launches all checks concurrently and aggregates their results in
// submission order, regardless of completion order. A check that panics is
// reported as a failed result with the panic preserved in metadata; sibling
// checks are unaffected. Run never fails: every outcome surfaces as data.
func (r *Runner) Run(ctx context.Context, input models.CheckInput) models.CheckOutcome {
	if len(r.checkers) == 0 {
		return models.CheckOutcome{Passed: true}
	}

	results := make([]models.CheckResult, len(r.checkers))
	var wg sync.WaitGroup

	for i, checker := range r.checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			now := time.Now()
			res := r.safeCheck(ctx, c, input)
			results[i] = models.CheckResult{
				Name:     c.Name(),
				Result:   res,
				Duration: time.Since(now),
			}
		}(i, checker)
	}

	wg.Wait()

	outcome := models.CheckOutcome{Results: results, Passed: true}
	for _, cr := range results {
		if !cr.Result.Passed {
			outcome.Passed = false
		}
	}

	return outcome
}

func (r *Runner) safeCheck(ctx context.Context, c Checker, input models.CheckInput) (res models.GuardrailResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str("check", c.Name()).
				Any("panic", p).
				Msg("check execution error")
			res = models.FailResult(fmt.Sprintf("check execution error: %s", c.Name()))
			res.Metadata["error"] = fmt.Sprint(p)
		}
	}()

	return c.Check(ctx, input)
}

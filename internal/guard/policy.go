package guard

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

const (
	defaultInitialDelay = 100 * time.Millisecond
	defaultMaxDelay     = 12 * time.Second
)

// Policy is the immutable failure-recovery configuration. MaxRetries bounds
// attempts beyond the first, so MaxRetries=0 means exactly one attempt.
type Policy struct {
	OnFail       models.FailureAction
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func (p Policy) maxAttempts() int {
	return p.MaxRetries + 1
}

func (p Policy) backoff(attempt int) time.Duration {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = defaultInitialDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = defaultMaxDelay
	}

	delay := float64(initial) * math.Pow(2, float64(attempt-1))
	if delay > float64(max) {
		delay = float64(max)
	}

	jitter := delay * 0.2 * (2*rand.Float64() - 1) // between -20% and +20%
	delay += jitter

	return time.Duration(delay)
}

// wait sleeps for the attempt's backoff delay, returning early with the
// context error on cancellation.
func (p Policy) wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.backoff(attempt)):
		return nil
	}
}

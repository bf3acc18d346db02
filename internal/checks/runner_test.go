package checks

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

type fakeChecker struct {
	name   string
	result models.GuardrailResult
	delay  time.Duration
	panics bool
}

func (f *fakeChecker) Name() string { return f.name }

func (f *fakeChecker) Check(ctx context.Context, input models.CheckInput) models.GuardrailResult {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics {
		panic("checker exploded")
	}
	return f.result
}

func TestRunner_EmptyCheckSetPasses(t *testing.T) {
	runner := NewRunner(nil, newTestLogger())

	outcome := runner.Run(context.Background(), models.CheckInput{Prompt: "hello"})
	if !outcome.Passed {
		t.Error("expected empty check set to pass")
	}
	if len(outcome.Results) != 0 {
		t.Errorf("expected no results, got %d", len(outcome.Results))
	}
}

func TestRunner_ResultsInSubmissionOrder(t *testing.T) {
	// The slowest check is submitted first; results must still come back in
	// submission order.
	runner := NewRunner([]Checker{
		&fakeChecker{name: "slow", result: models.PassResult(), delay: 50 * time.Millisecond},
		&fakeChecker{name: "medium", result: models.FailResult("nope"), delay: 10 * time.Millisecond},
		&fakeChecker{name: "fast", result: models.PassResult()},
	}, newTestLogger())

	outcome := runner.Run(context.Background(), models.CheckInput{Prompt: "hello"})
	if outcome.Passed {
		t.Error("expected outcome to fail")
	}

	want := []string{"slow", "medium", "fast"}
	for i, name := range want {
		if outcome.Results[i].Name != name {
			t.Errorf("result %d: expected %s, got %s", i, name, outcome.Results[i].Name)
		}
	}

	first, ok := outcome.FirstFailure()
	if !ok || first.Name != "medium" {
		t.Errorf("expected first failure to be medium, got %v", first.Name)
	}
}

func TestRunner_AllPass(t *testing.T) {
	runner := NewRunner([]Checker{
		&fakeChecker{name: "a", result: models.PassResult()},
		&fakeChecker{name: "b", result: models.PassResult()},
	}, newTestLogger())

	outcome := runner.Run(context.Background(), models.CheckInput{Prompt: "hello"})
	if !outcome.Passed {
		t.Error("expected outcome to pass")
	}
	if _, ok := outcome.FirstFailure(); ok {
		t.Error("expected no failure")
	}
}

func TestRunner_PanicReportedAsFailure(t *testing.T) {
	runner := NewRunner([]Checker{
		&fakeChecker{name: "stable", result: models.PassResult()},
		&fakeChecker{name: "broken", panics: true},
	}, newTestLogger())

	outcome := runner.Run(context.Background(), models.CheckInput{Prompt: "hello"})
	if outcome.Passed {
		t.Error("expected outcome to fail")
	}

	// The sibling check is unaffected.
	if !outcome.Results[0].Result.Passed {
		t.Error("expected stable check to pass")
	}

	broken := outcome.Results[1]
	if broken.Result.Passed {
		t.Error("expected broken check to fail")
	}
	if broken.Result.Metadata["error"] != "checker exploded" {
		t.Errorf("expected panic value in metadata, got %v", broken.Result.Metadata["error"])
	}
}

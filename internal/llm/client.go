package llm

import (
	"context"
)

// Client is an interface for invoking LLM models. Retries are owned by the
// guard orchestrator, not the client, so a retried attempt is always a fresh
// invocation. This also allows mocking in tests without real API calls.
type Client interface {
	InvokeModel(ctx context.Context, request Request) (*Response, error)
}

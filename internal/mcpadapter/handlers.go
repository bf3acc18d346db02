package mcpadapter

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/completion"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/linter"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// CompleteInput is the MCP tool input schema (matches HTTP API field names).
type CompleteInput struct {
	EventID     string            `json:"event_id" jsonschema:"unique event identifier"`
	Prompt      string            `json:"prompt" jsonschema:"prompt template to send to the model"`
	Variables   map[string]string `json:"variables,omitempty" jsonschema:"template variables substituted into the prompt"`
	MaxTokens   int               `json:"max_tokens,omitempty" jsonschema:"maximum tokens to generate"`
	Temperature float64           `json:"temperature,omitempty" jsonschema:"sampling temperature"`
}

// LintInput is the MCP tool input schema for prompt linting.
type LintInput struct {
	Prompt    string            `json:"prompt" jsonschema:"prompt template to lint"`
	Variables map[string]string `json:"variables,omitempty" jsonschema:"template variables used by the prompt"`
}

// NewCompleteHandler returns a tool handler that runs guarded completions.
// Pass the returned function to mcp.AddTool.
func NewCompleteHandler(service *completion.Service) func(context.Context, *mcp.CallToolRequest, CompleteInput) (*mcp.CallToolResult, *models.CompletionResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input CompleteInput) (*mcp.CallToolResult, *models.CompletionResult, error) {
		return GuardedComplete(ctx, service, req, input)
	}
}

// GuardedComplete runs the guard pipeline and returns the completion result.
func GuardedComplete(
	ctx context.Context,
	service *completion.Service,
	req *mcp.CallToolRequest,
	input CompleteInput,
) (*mcp.CallToolResult, *models.CompletionResult, error) {
	result, err := service.Complete(ctx, models.CompletionRequest{
		EventID:     input.EventID,
		Prompt:      input.Prompt,
		Variables:   input.Variables,
		MaxTokens:   input.MaxTokens,
		Temperature: input.Temperature,
	})
	if err != nil {
		return nil, nil, err
	}

	return nil, result, nil
}

// NewLintHandler returns a tool handler for prompt template linting.
// Pass the returned function to mcp.AddTool.
func NewLintHandler(l *linter.Linter) func(context.Context, *mcp.CallToolRequest, LintInput) (*mcp.CallToolResult, models.LintResult, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input LintInput) (*mcp.CallToolResult, models.LintResult, error) {
		return nil, l.Lint(input.Prompt, input.Variables), nil
	}
}

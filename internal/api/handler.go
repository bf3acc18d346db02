package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/emicklei/go-restful/v3"
	"github.com/rs/zerolog"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/guard"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/linter"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

// Completer runs one guarded completion.
type Completer interface {
	Complete(ctx context.Context, req models.CompletionRequest) (*models.CompletionResult, error)
}

type Handler struct {
	completer Completer
	linter    *linter.Linter
	logger    *zerolog.Logger
}

func NewHandler(completer Completer, linter *linter.Linter, logger *zerolog.Logger) *Handler {
	return &Handler{
		completer: completer,
		linter:    linter,
		logger:    logger,
	}
}

// POST /api/v1/complete
// Body: CompletionRequest
// Returns: CompletionResult
func (h *Handler) Complete(req *restful.Request, resp *restful.Response) {
	var completionRequest models.CompletionRequest
	if err := req.ReadEntity(&completionRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	if completionRequest.Prompt == "" {
		middleware.HandleError(resp, errors.New("prompt is required"), http.StatusBadRequest)
		return
	}

	h.logger.Info().
		Str("event_id", completionRequest.EventID).
		Msg("Start guarded completion")

	ctx := req.Request.Context()
	result, err := h.completer.Complete(ctx, completionRequest)
	if err != nil {
		h.writeCompletionError(resp, completionRequest.EventID, err)
		return
	}

	h.logger.Info().
		Str("event_id", result.ID).
		Int("attempts", result.Attempts).
		Bool("fallback_used", result.FallbackUsed).
		Msg("Completion finished")

	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// POST /api/v1/lint
// Body: LintRequest
// Returns: LintResult
func (h *Handler) Lint(req *restful.Request, resp *restful.Response) {
	var lintRequest LintRequest
	if err := req.ReadEntity(&lintRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	result := h.linter.Lint(lintRequest.Prompt, lintRequest.Variables)
	resp.WriteHeaderAndEntity(http.StatusOK, result)
}

// Health handler GET API /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	healthResponse := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}

	resp.WriteHeaderAndEntity(http.StatusOK, healthResponse)
}

// writeCompletionError maps pipeline outcomes onto status codes. A guardrail
// rejection is the client's problem (422); a validator malfunction is ours.
func (h *Handler) writeCompletionError(resp *restful.Response, eventID string, err error) {
	var pipelineErr *guard.PipelineError
	var validatorErr *guard.ValidatorInternalError

	switch {
	case errors.As(err, &pipelineErr):
		h.logger.Warn().
			Str("event_id", eventID).
			Int("attempts", len(pipelineErr.Attempts)).
			Err(err).
			Msg("Completion rejected by guardrails")
		middleware.HandleError(resp, err, http.StatusUnprocessableEntity)

	case errors.As(err, &validatorErr):
		h.logger.Error().Str("event_id", eventID).Err(err).Msg("Output validator malfunction")
		middleware.HandleError(resp, err, http.StatusInternalServerError)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn().Str("event_id", eventID).Err(err).Msg("Completion cancelled")
		middleware.HandleError(resp, err, http.StatusRequestTimeout)

	default:
		h.logger.Error().Str("event_id", eventID).Err(err).Msg("Completion failed")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
	}
}

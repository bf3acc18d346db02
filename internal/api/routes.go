package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"

	"github.com/povarna/generative-ai-agents/guard-agent/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/guard-agent/internal/models"
)

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	// Health endpoint
	ws.
		Route(ws.GET("health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}))

	ws.
		Route(ws.POST("/complete").
			To(handler.Complete).
			Doc("Run a guarded completion").
			Metadata(restfulspec.KeyOpenAPITags, []string{"complete"}).
			Reads(models.CompletionRequest{}).
			Writes(models.CompletionResult{}).
			Returns(200, "OK", models.CompletionResult{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(422, "Rejected by Guardrails", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/lint").
			To(handler.Lint).
			Doc("Lint a prompt template").
			Metadata(restfulspec.KeyOpenAPITags, []string{"lint"}).
			Reads(LintRequest{}).
			Writes(models.LintResult{}).
			Returns(200, "OK", models.LintResult{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}))

	container.Add(ws)
}

package api

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type LintRequest struct {
	Prompt    string            `json:"prompt"`
	Variables map[string]string `json:"variables,omitempty"`
}

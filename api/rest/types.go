package rest

import (
	"yqhp/session-engine/internal/runner"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse represents a readiness check response.
type ReadyResponse struct {
	Ready     bool   `json:"ready"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// RunSubmitRequest represents a benchmark submission request.
type RunSubmitRequest struct {
	// YAML is the benchmark document.
	YAML string `json:"yaml"`
	// Variables are substituted into ${...} references before parsing.
	Variables map[string]any `json:"variables,omitempty"`
}

// RunSubmitResponse represents a benchmark submission response.
type RunSubmitResponse struct {
	RunID     string `json:"run_id"`
	Benchmark string `json:"benchmark"`
	Status    string `json:"status"`
}

// RunResponse represents a run status response.
type RunResponse struct {
	ID           string `json:"id"`
	Benchmark    string `json:"benchmark"`
	Status       string `json:"status"`
	CurrentPhase string `json:"current_phase,omitempty"`
	Error        string `json:"error,omitempty"`
}

// RunListResponse represents a list of runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Total int           `json:"total"`
}

func toRunResponse(run *runner.Run) RunResponse {
	resp := RunResponse{
		ID:           run.ID(),
		Benchmark:    run.Benchmark().Name,
		Status:       string(run.Status()),
		CurrentPhase: run.CurrentPhase(),
	}
	if err := run.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

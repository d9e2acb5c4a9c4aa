package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"yqhp/session-engine/internal/parser"
)

// healthCheck handles GET /health
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// readyCheck handles GET /ready
func (s *Server) readyCheck(c *fiber.Ctx) error {
	ready := s.runner != nil
	status := "ready"
	if !ready {
		status = "not_ready"
	}

	return c.JSON(ReadyResponse{
		Ready:     ready,
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// submitRun handles POST /api/v1/runs
func (s *Server) submitRun(c *fiber.Ctx) error {
	var req RunSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Failed to parse request body: " + err.Error(),
		})
	}
	if req.YAML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "'yaml' must be provided",
		})
	}

	p := parser.NewBenchmarkParser()
	if len(req.Variables) > 0 {
		p.WithResolver(parser.NewVariableResolver().WithVariables(req.Variables))
	}
	benchmark, err := p.Parse([]byte(req.YAML))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_benchmark",
			Message: "Failed to parse benchmark: " + err.Error(),
		})
	}

	run, err := s.runner.StartRun(benchmark)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{
			Error:   "invalid_benchmark",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(RunSubmitResponse{
		RunID:     run.ID(),
		Benchmark: benchmark.Name,
		Status:    string(run.Status()),
	})
}

// listRuns handles GET /api/v1/runs
func (s *Server) listRuns(c *fiber.Ctx) error {
	runs := s.runner.List()
	resp := RunListResponse{
		Runs:  make([]RunResponse, 0, len(runs)),
		Total: len(runs),
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, toRunResponse(run))
	}
	return c.JSON(resp)
}

// getRun handles GET /api/v1/runs/:id
func (s *Server) getRun(c *fiber.Ctx) error {
	run, ok := s.runner.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Run not found: " + c.Params("id"),
		})
	}
	return c.JSON(toRunResponse(run))
}

// getReport handles GET /api/v1/runs/:id/report
func (s *Server) getReport(c *fiber.Ctx) error {
	run, ok := s.runner.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Run not found: " + c.Params("id"),
		})
	}
	return c.JSON(run.Report())
}

// stopRun handles DELETE /api/v1/runs/:id
func (s *Server) stopRun(c *fiber.Ctx) error {
	run, ok := s.runner.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Run not found: " + c.Params("id"),
		})
	}
	run.Stop()
	return c.JSON(toRunResponse(run))
}

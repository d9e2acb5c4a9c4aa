package rest

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/session-engine/internal/runner"
	"yqhp/session-engine/internal/steps"
)

const quickBenchmarkYAML = `
name: quick
phases:
  - name: only
    sessions: 2
scenario:
  int_vars: [count]
  initial_sequences: [main]
  sequences:
    - name: main
      steps:
        - set_int:
            var: count
            value: ${total}
`

const stallingBenchmarkYAML = `
name: stalling
phases:
  - name: only
    sessions: 1
scenario:
  int_vars: [never]
  initial_sequences: [main]
  sequences:
    - name: main
      steps:
        - await_var:
            var: never
`

func newTestServer() *Server {
	return NewServer(runner.New(steps.NewRegistry()), nil)
}

func submitBenchmark(t *testing.T, server *Server, yaml string, vars map[string]any) RunSubmitResponse {
	t.Helper()
	body, err := json.Marshal(RunSubmitRequest{YAML: yaml, Variables: vars})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/runs", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var result RunSubmitResponse
	require.NoError(t, json.Unmarshal(raw, &result))
	return result
}

func waitForStatus(t *testing.T, server *Server, runID string, want runner.Status) {
	t.Helper()
	run, ok := server.runner.Get(runID)
	require.True(t, ok)
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Equal(t, want, run.Status())
}

func TestHealthCheck(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result HealthResponse
	err = json.Unmarshal(body, &result)
	require.NoError(t, err)
	assert.Equal(t, "healthy", result.Status)
}

func TestReadyCheck(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("GET", "/ready", nil)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result ReadyResponse
	err = json.Unmarshal(body, &result)
	require.NoError(t, err)
	assert.True(t, result.Ready)
}

func TestSubmitRun(t *testing.T) {
	server := newTestServer()

	result := submitBenchmark(t, server, quickBenchmarkYAML, map[string]any{"total": 7})
	assert.Equal(t, "quick", result.Benchmark)
	assert.NotEmpty(t, result.RunID)

	waitForStatus(t, server, result.RunID, runner.StatusCompleted)
}

func TestSubmitRunMissingYAML(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("POST", "/api/v1/runs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result ErrorResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "invalid_request", result.Error)
}

func TestSubmitRunInvalidBenchmark(t *testing.T) {
	server := newTestServer()

	body, _ := json.Marshal(RunSubmitRequest{YAML: "name: broken\nphases: []\n"})
	req := httptest.NewRequest("POST", "/api/v1/runs", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	raw, _ := io.ReadAll(resp.Body)
	var result ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "invalid_benchmark", result.Error)
}

func TestGetRun(t *testing.T) {
	server := newTestServer()

	submitted := submitBenchmark(t, server, quickBenchmarkYAML, map[string]any{"total": 1})
	waitForStatus(t, server, submitted.RunID, runner.StatusCompleted)

	req := httptest.NewRequest("GET", "/api/v1/runs/"+submitted.RunID, nil)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result RunResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, submitted.RunID, result.ID)
	assert.Equal(t, "quick", result.Benchmark)
	assert.Equal(t, string(runner.StatusCompleted), result.Status)
}

func TestGetRunNotFound(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest("GET", "/api/v1/runs/missing", nil)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListRuns(t *testing.T) {
	server := newTestServer()

	submitted := submitBenchmark(t, server, quickBenchmarkYAML, map[string]any{"total": 1})
	waitForStatus(t, server, submitted.RunID, runner.StatusCompleted)

	req := httptest.NewRequest("GET", "/api/v1/runs", nil)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result RunListResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, submitted.RunID, result.Runs[0].ID)
}

func TestGetReport(t *testing.T) {
	server := newTestServer()

	submitted := submitBenchmark(t, server, quickBenchmarkYAML, map[string]any{"total": 3})
	waitForStatus(t, server, submitted.RunID, runner.StatusCompleted)

	req := httptest.NewRequest("GET", "/api/v1/runs/"+submitted.RunID+"/report", nil)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var result runner.Report
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, submitted.RunID, result.RunID)
	require.Len(t, result.Phases, 1)
	assert.Equal(t, int64(2), result.Phases[0].FinishedSessions)
}

func TestStopRun(t *testing.T) {
	server := newTestServer()

	submitted := submitBenchmark(t, server, stallingBenchmarkYAML, nil)

	req := httptest.NewRequest("DELETE", "/api/v1/runs/"+submitted.RunID, nil)
	resp, err := server.App().Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	waitForStatus(t, server, submitted.RunID, runner.StatusStopped)
}

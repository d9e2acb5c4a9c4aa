package steps

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/session-engine/internal/executor"
	"yqhp/session-engine/internal/phase"
	"yqhp/session-engine/internal/session"
	"yqhp/session-engine/internal/statistics"
)

// runLive drives a session on a real event loop until its phase terminates.
func runLive(t *testing.T, scenario *session.Scenario, stats *statistics.SessionStatistics) *phase.Instance {
	t.Helper()
	loop := executor.NewEventLoop()
	t.Cleanup(loop.Close)

	s := session.New(scenario, 0, 0, 1)
	s.Reserve(scenario)
	s.Attach(loop, stats)

	ph := phase.New(&session.PhaseDefinition{Name: "live", Scenario: scenario}, 1, 0)
	ph.Start(1)
	s.Start(ph)

	select {
	case <-ph.Terminated():
	case <-time.After(5 * time.Second):
		t.Fatal("phase did not terminate")
	}
	return ph
}

func TestHTTPStepRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"greeting":"hello"}`))
	}))
	defer srv.Close()

	reg := NewRegistry()
	built := buildSteps(t, reg, []map[string]map[string]any{
		{"http": {"url": srv.URL, "metric": "hello", "to_status": "status", "to_body": "body"}},
		// The response must be visible to later steps in the same sequence.
		{"script": {"expr": `(function() {
			if (get('status') !== 200) throw 'unexpected status ' + get('status');
			if (get('body').indexOf('hello') < 0) throw 'unexpected body ' + get('body');
			return 0;
		})()`}},
	})
	scenario := session.NewScenario(nil, nil)
	seq := scenario.AddSequence("main", 0, built)
	scenario.MarkInitial(seq)

	stats := statistics.NewSessionStatistics()
	ph := runLive(t, scenario, stats)
	require.NoError(t, ph.Err())
	assert.Equal(t, int64(1), ph.FinishedSessions())

	cells := 0
	stats.Visit(func(phaseName string, stepID int, name string, s *statistics.Statistics) {
		cells++
		assert.Equal(t, "hello", name)
		snap := s.Snapshot()
		assert.Equal(t, int64(1), snap.RequestCount)
		assert.Equal(t, int64(1), snap.ResponseCount)
		assert.Equal(t, int64(0), snap.ConnectionErrors)
		assert.Greater(t, snap.MaxLatency, time.Duration(0))
	})
	assert.Equal(t, 1, cells)
}

func TestHTTPStepConnectionErrorFailsSession(t *testing.T) {
	reg := NewRegistry()
	built := buildSteps(t, reg, []map[string]map[string]any{
		// Nothing listens on this port.
		{"http": {"url": "http://127.0.0.1:1", "metric": "dead", "timeout": "500ms"}},
	})
	scenario := session.NewScenario(nil, nil)
	seq := scenario.AddSequence("main", 0, built)
	scenario.MarkInitial(seq)

	stats := statistics.NewSessionStatistics()
	ph := runLive(t, scenario, stats)
	require.Error(t, ph.Err())

	stats.Visit(func(phaseName string, stepID int, name string, s *statistics.Statistics) {
		snap := s.Snapshot()
		assert.Equal(t, int64(1), snap.RequestCount)
		assert.Equal(t, int64(0), snap.ResponseCount)
		assert.Equal(t, int64(1), snap.ConnectionErrors)
	})
}

func TestDelayStepWallClock(t *testing.T) {
	reg := NewRegistry()
	built := buildSteps(t, reg, []map[string]map[string]any{
		{"delay": {"duration": "30ms"}},
	})
	scenario := session.NewScenario(nil, nil)
	seq := scenario.AddSequence("main", 0, built)
	scenario.MarkInitial(seq)

	start := time.Now()
	ph := runLive(t, scenario, statistics.NewSessionStatistics())
	require.NoError(t, ph.Err())
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

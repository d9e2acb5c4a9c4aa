package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/session-engine/internal/steps"
	"yqhp/session-engine/pkg/types"
)

func waitForRun(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
}

func simpleScenario() types.Scenario {
	return types.Scenario{
		IntVars:          []string{"count"},
		InitialSequences: []string{"main"},
		Sequences: []types.SequenceConfig{
			{
				Name: "main",
				Steps: []map[string]map[string]any{
					{"set_int": {"var": "count", "value": 5}},
					{"add_int": {"var": "count", "delta": 3}},
				},
			},
		},
	}
}

func TestRunCompletesAllPhases(t *testing.T) {
	benchmark := &types.Benchmark{
		Name: "two-phases",
		Phases: []types.PhaseConfig{
			{Name: "warmup", Sessions: 4, Threads: 2},
			{Name: "steady", Sessions: 8, Threads: 2},
		},
		Scenario: simpleScenario(),
	}

	r := New(steps.NewRegistry())
	run, err := r.StartRun(benchmark)
	require.NoError(t, err)
	waitForRun(t, run)

	assert.Equal(t, StatusCompleted, run.Status())
	assert.NoError(t, run.Err())

	report := run.Report()
	require.Len(t, report.Phases, 2)
	assert.Equal(t, int64(4), report.Phases[0].FinishedSessions)
	assert.Equal(t, int64(8), report.Phases[1].FinishedSessions)
	assert.Empty(t, report.Phases[0].Error)
}

func TestRunTerminatesPhaseByDuration(t *testing.T) {
	benchmark := &types.Benchmark{
		Name: "timed",
		Phases: []types.PhaseConfig{
			{Name: "bounded", Sessions: 3, Duration: types.Duration(50 * time.Millisecond)},
		},
		Scenario: types.Scenario{
			IntVars:          []string{"never"},
			InitialSequences: []string{"stall"},
			Sequences: []types.SequenceConfig{
				{
					Name: "stall",
					Steps: []map[string]map[string]any{
						// Nothing ever sets the variable; only the phase
						// duration ends these sessions.
						{"await_var": {"var": "never"}},
					},
				},
			},
		},
	}

	r := New(steps.NewRegistry())
	start := time.Now()
	run, err := r.StartRun(benchmark)
	require.NoError(t, err)
	waitForRun(t, run)

	assert.Equal(t, StatusCompleted, run.Status())
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
	report := run.Report()
	require.Len(t, report.Phases, 1)
	assert.Equal(t, int64(3), report.Phases[0].FinishedSessions)
}

func TestRunStopAbortsRemainingPhases(t *testing.T) {
	benchmark := &types.Benchmark{
		Name: "abortable",
		Phases: []types.PhaseConfig{
			{Name: "first", Sessions: 2},
			{Name: "second", Sessions: 2},
		},
		Scenario: types.Scenario{
			IntVars:          []string{"never"},
			InitialSequences: []string{"stall"},
			Sequences: []types.SequenceConfig{
				{Name: "stall", Steps: []map[string]map[string]any{
					{"await_var": {"var": "never"}},
				}},
			},
		},
	}

	r := New(steps.NewRegistry())
	run, err := r.StartRun(benchmark)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	run.Stop()
	waitForRun(t, run)

	assert.Equal(t, StatusStopped, run.Status())
	report := run.Report()
	assert.LessOrEqual(t, len(report.Phases), 1, "the second phase must not start")
}

func TestRunFailurePropagates(t *testing.T) {
	benchmark := &types.Benchmark{
		Name: "failing",
		Phases: []types.PhaseConfig{
			{Name: "only", Sessions: 1},
			{Name: "never-reached", Sessions: 1},
		},
		Scenario: types.Scenario{
			InitialSequences: []string{"boom"},
			Sequences: []types.SequenceConfig{
				{Name: "boom", Steps: []map[string]map[string]any{
					{"fail": {"message": "scenario exploded"}},
				}},
			},
		},
	}

	r := New(steps.NewRegistry())
	run, err := r.StartRun(benchmark)
	require.NoError(t, err)
	waitForRun(t, run)

	assert.Equal(t, StatusFailed, run.Status())
	require.Error(t, run.Err())
	assert.Contains(t, run.Err().Error(), "scenario exploded")
	report := run.Report()
	require.Len(t, report.Phases, 1, "the failing phase ends the run")
	assert.Contains(t, report.Phases[0].Error, "scenario exploded")
}

func TestRunRejectsBrokenScenario(t *testing.T) {
	benchmark := &types.Benchmark{
		Name:   "broken",
		Phases: []types.PhaseConfig{{Name: "p", Sessions: 1}},
		Scenario: types.Scenario{
			InitialSequences: []string{"a"},
			Sequences: []types.SequenceConfig{
				{Name: "a", Steps: []map[string]map[string]any{{"no_such_step": nil}}},
			},
		},
	}

	r := New(steps.NewRegistry())
	_, err := r.StartRun(benchmark)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step type")
	assert.Empty(t, r.List(), "a rejected benchmark leaves no run behind")
}

func TestRunnerRegistry(t *testing.T) {
	r := New(steps.NewRegistry())
	benchmark := &types.Benchmark{
		Name:     "lookup",
		Phases:   []types.PhaseConfig{{Name: "p", Sessions: 1}},
		Scenario: simpleScenario(),
	}

	run, err := r.StartRun(benchmark)
	require.NoError(t, err)
	waitForRun(t, run)

	got, ok := r.Get(run.ID())
	require.True(t, ok)
	assert.Same(t, run, got)

	_, ok = r.Get("nope")
	assert.False(t, ok)

	assert.Len(t, r.List(), 1)
}

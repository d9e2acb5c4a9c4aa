package phase

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/session-engine/internal/session"
)

func newTestPhase() *Instance {
	def := &session.PhaseDefinition{Name: "steady", Scenario: session.NewScenario(nil, nil)}
	return New(def, 1, 0)
}

func TestPhaseLifecycle(t *testing.T) {
	p := newTestPhase()
	assert.Equal(t, session.StatusNotStarted, p.Status())

	p.Start(2)
	assert.Equal(t, session.StatusRunning, p.Status())
	assert.Greater(t, p.AbsoluteStartTime(), time.Now().Add(-time.Minute).UnixMilli())

	p.NotifyFinished(nil)
	assert.Equal(t, session.StatusRunning, p.Status(), "one of two sessions is still active")

	p.NotifyFinished(nil)
	assert.Equal(t, session.StatusTerminated, p.Status())
	assert.Equal(t, int64(2), p.FinishedSessions())

	select {
	case <-p.Terminated():
	default:
		t.Fatal("terminated channel should be closed")
	}
}

func TestTerminateRequestsCooperativeStop(t *testing.T) {
	p := newTestPhase()
	p.Start(1)
	p.Terminate()
	assert.Equal(t, session.StatusTerminating, p.Status())

	// Sessions observe the status and report in; only then is the phase done.
	select {
	case <-p.Terminated():
		t.Fatal("phase must not terminate before sessions finish")
	default:
	}

	p.NotifyFinished(nil)
	assert.Equal(t, session.StatusTerminated, p.Status())
}

func TestTerminateBeforeStart(t *testing.T) {
	p := newTestPhase()
	p.Terminate()
	assert.Equal(t, session.StatusTerminated, p.Status())
	select {
	case <-p.Terminated():
	default:
		t.Fatal("terminated channel should be closed")
	}
}

func TestFailKeepsFirstError(t *testing.T) {
	p := newTestPhase()
	p.Start(1)

	first := errors.New("first")
	p.Fail(first)
	p.Fail(errors.New("second"))

	require.Error(t, p.Err())
	assert.ErrorIs(t, p.Err(), first)
	assert.Equal(t, session.StatusTerminating, p.Status())
}

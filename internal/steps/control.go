package steps

import (
	"errors"
	"fmt"
	"time"

	"yqhp/session-engine/internal/session"
)

// stopStep stops the session cooperatively; the run loop unwinds at the next
// status check.
type stopStep struct{}

func newStopStep(map[string]any, *BuildContext) (session.Step, error) {
	return stopStep{}, nil
}

func (stopStep) Invoke(s *session.Session) (bool, error) {
	s.Stop()
	return true, nil
}

// failStep fails the session with a configured message. Mostly useful in
// scenario assertions and tests of the failure path.
type failStep struct {
	message string
}

func newFailStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	message, err := RequiredParam[string](params, "message")
	if err != nil {
		return nil, err
	}
	return &failStep{message: message}, nil
}

func (st *failStep) Invoke(*session.Session) (bool, error) {
	return false, errors.New(st.message)
}

// restartStep rewinds the current sequence to its first step.
type restartStep struct{}

func newRestartStep(map[string]any, *BuildContext) (session.Step, error) {
	return restartStep{}, nil
}

func (restartStep) Invoke(s *session.Session) (bool, error) {
	s.CurrentSequence().Restart()
	return true, nil
}

// newSequenceStep spawns another sequence by name.
type newSequenceStep struct {
	name           string
	forceSameIndex bool
	policy         session.ConcurrencyPolicy
}

func newNewSequenceStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	name, err := RequiredParam[string](params, "name")
	if err != nil {
		return nil, err
	}
	policy, err := policyParam(params)
	if err != nil {
		return nil, err
	}
	return &newSequenceStep{
		name:           name,
		forceSameIndex: OptionalParam(params, "force_same_index", false),
		policy:         policy,
	}, nil
}

func (st *newSequenceStep) Invoke(s *session.Session) (bool, error) {
	// A WARN-skipped spawn is still progress for this sequence.
	s.StartSequenceByName(st.name, st.forceSameIndex, st.policy)
	return true, nil
}

// delayStep parks the sequence for a fixed duration. The deadline lives in a
// per-concurrency resource slot; an executor timer wakes the session up.
type delayStep struct {
	duration time.Duration
}

func newDelayStep(params map[string]any, _ *BuildContext) (session.Step, error) {
	duration, err := DurationParam(params, "duration", 0)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		return nil, fmt.Errorf("parameter %q must be a positive duration", "duration")
	}
	return &delayStep{duration: duration}, nil
}

func (st *delayStep) Reserve(s *session.Session) {
	s.DeclareResource(st, func() session.Resource { return &delayDeadline{} }, false)
}

func (st *delayStep) Invoke(s *session.Session) (bool, error) {
	deadline := s.GetResource(st).(*delayDeadline)
	now := time.Now()
	if deadline.at.IsZero() {
		deadline.at = now.Add(st.duration)
		s.Executor().Schedule(st.duration, s.Proceed)
		return false, nil
	}
	if now.Before(deadline.at) {
		return false, nil
	}
	deadline.at = time.Time{}
	return true, nil
}

type delayDeadline struct {
	at time.Time
}

func (d *delayDeadline) OnSessionReset(*session.Session) {
	d.at = time.Time{}
}

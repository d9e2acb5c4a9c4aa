package session

import (
	"fmt"
	"strings"

	"yqhp/session-engine/internal/statistics"
	"yqhp/session-engine/pkg/logger"
)

// ConcurrencyPolicy controls what happens when a spawn exceeds a sequence's
// concurrency factor.
type ConcurrencyPolicy int

const (
	// ConcurrencyFail makes the violation fatal to the session.
	ConcurrencyFail ConcurrencyPolicy = iota
	// ConcurrencyWarn logs and skips the spawn.
	ConcurrencyWarn
)

// Session drives one simulated client. All state is owned by the session and
// mutated only on its executor, one task at a time; the scheduled flag keeps
// at most one re-entry pending.
type Session struct {
	vars         map[string]Var
	resources    map[ResourceKey]any
	allVars      []Var
	allResources []Resource

	sequencePool     *InstancePool
	runningSequences []*SequenceInstance
	usedSequences    *bitSet
	releaseFn        func(*SequenceInstance)

	phase               Phase
	lastRunningSequence int
	currentSequence     *SequenceInstance
	currentRequest      Request
	scheduled           bool
	stopped             bool

	executor Executor
	stats    *statistics.SessionStatistics

	agentID  int
	threadID int
	uniqueID int
}

// New builds a session sized for the scenario: the instance pool and running
// table hold MaxSequences entries, the used bitset SumConcurrency bits.
func New(scenario *Scenario, agentID, threadID, uniqueID int) *Session {
	s := &Session{
		vars:                make(map[string]Var),
		resources:           make(map[ResourceKey]any),
		sequencePool:        NewInstancePool(scenario.MaxSequences()),
		runningSequences:    make([]*SequenceInstance, scenario.MaxSequences()),
		usedSequences:       newBitSet(scenario.SumConcurrency()),
		lastRunningSequence: -1,
		agentID:             agentID,
		threadID:            threadID,
		uniqueID:            uniqueID,
	}
	s.releaseFn = s.releaseSequence
	return s
}

// Attach binds the session to its executor and statistics registry. Must be
// called once, before Start.
func (s *Session) Attach(executor Executor, stats *statistics.SessionStatistics) {
	s.executor = executor
	s.stats = stats
}

// Reserve runs every sequence's reservation hooks and declares the
// scenario's named variables. Each sequence is temporarily bound as current
// through a throwaway instance so resource declarations observe the right
// concurrency factor. Must run once per session before any Start.
func (s *Session) Reserve(scenario *Scenario) {
	for _, seq := range scenario.Sequences() {
		s.SetCurrentSequence(s.sequencePool.Acquire().Reset(seq, 0, nil, nil))
		seq.Reserve(s)
		s.sequencePool.Release(s.currentSequence)
		s.currentSequence = nil
	}
	for _, name := range scenario.ObjectVars() {
		s.DeclareObject(name)
	}
	for _, name := range scenario.IntVars() {
		s.DeclareInt(name)
	}
}

func (s *Session) UniqueID() int { return s.uniqueID }

func (s *Session) AgentID() int { return s.agentID }

func (s *Session) AgentThreadID() int { return s.threadID }

func (s *Session) AgentThreads() int { return s.phase.AgentThreads() }

func (s *Session) GlobalThreadID() int { return s.phase.AgentFirstThreadID() + s.threadID }

func (s *Session) Executor() Executor { return s.executor }

// Phase returns the current phase definition, nil before the first start.
func (s *Session) Phase() *PhaseDefinition {
	if s.phase == nil {
		return nil
	}
	return s.phase.Definition()
}

// PhaseStartTime is the current phase's absolute start in Unix milliseconds.
func (s *Session) PhaseStartTime() int64 { return s.phase.AbsoluteStartTime() }

// DeclareObject creates an unset object slot for key if absent.
func (s *Session) DeclareObject(key string) {
	if _, ok := s.vars[key]; !ok {
		v := &ObjectVar{}
		s.vars[key] = v
		s.allVars = append(s.allVars, v)
	}
}

// DeclareInt creates an unset integer slot for key if absent.
func (s *Session) DeclareInt(key string) {
	if _, ok := s.vars[key]; !ok {
		v := &IntVar{}
		s.vars[key] = v
		s.allVars = append(s.allVars, v)
	}
}

// Var returns the declared slot for key.
func (s *Session) Var(key string) (Var, bool) {
	v, ok := s.vars[key]
	return v, ok
}

// GetObject reads an object variable. Reading an undeclared or unset slot is
// an error, fatal once it reaches the run loop.
func (s *Session) GetObject(key string) (any, error) {
	v, err := s.requireSet(key)
	if err != nil {
		return nil, err
	}
	return v.(*ObjectVar).Get(), nil
}

// SetObject writes an object variable and marks it set.
func (s *Session) SetObject(key string, value any) error {
	v, ok := s.vars[key]
	if !ok {
		return fmt.Errorf("variable %q was not declared", key)
	}
	if logger.IsTraceEnabled() {
		logger.Trace("#%d %s <- %v", s.uniqueID, key, value)
	}
	v.(*ObjectVar).Set(value)
	return nil
}

// GetInt reads an integer variable. Reading an undeclared or unset slot is
// an error, fatal once it reaches the run loop.
func (s *Session) GetInt(key string) (int, error) {
	v, err := s.requireSet(key)
	if err != nil {
		return 0, err
	}
	return v.(*IntVar).Get(), nil
}

// SetInt writes an integer variable and marks it set.
func (s *Session) SetInt(key string, value int) error {
	v, ok := s.vars[key]
	if !ok {
		return fmt.Errorf("variable %q was not declared", key)
	}
	if logger.IsTraceEnabled() {
		logger.Trace("#%d %s <- %d", s.uniqueID, key, value)
	}
	v.(*IntVar).Set(value)
	return nil
}

// AddToInt adds delta to an integer variable and returns the prior value.
func (s *Session) AddToInt(key string, delta int) (int, error) {
	v, err := s.requireSet(key)
	if err != nil {
		return 0, err
	}
	iv := v.(*IntVar)
	prev := iv.Get()
	if logger.IsTraceEnabled() {
		logger.Trace("#%d %s <- %d", s.uniqueID, key, prev+delta)
	}
	iv.Set(prev + delta)
	return prev, nil
}

func (s *Session) requireSet(key string) (Var, error) {
	v, ok := s.vars[key]
	if !ok {
		return nil, fmt.Errorf("variable %q was not declared", key)
	}
	if !v.IsSet() {
		return nil, fmt.Errorf("variable %q was not set yet", key)
	}
	return v, nil
}

// Call is the unit of work submitted to the executor. It clears the
// scheduled flag before running so a Proceed issued during this invocation
// re-enqueues instead of being dropped, swallows the cooperative stop flag
// exactly here, and forwards any panic to the phase as a failure.
func (s *Session) Call() {
	s.scheduled = false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("#%d Uncaught error: %v", s.uniqueID, r)
			if s.phase != nil {
				s.phase.Fail(fmt.Errorf("uncaught error in session #%d: %v", s.uniqueID, r))
			}
		}
	}()
	s.RunSession()
	if s.stopped {
		logger.Trace("#%d Session was stopped.", s.uniqueID)
		s.stopped = false
	}
}

// RunSession scans the running table round-robin, advancing each live
// sequence at most once per pass, until everything completes or a full pass
// makes no progress. On a stall it simply returns; Proceed re-enters later.
func (s *Session) RunSession() {
	if s.phase.Status() == StatusTerminated {
		if logger.IsTraceEnabled() {
			logger.Trace("#%d Phase is terminated", s.uniqueID)
		}
		return
	}
	if s.lastRunningSequence < 0 {
		if logger.IsTraceEnabled() {
			logger.Trace("#%d No sequences to run, ignoring.", s.uniqueID)
		}
		return
	}
	if logger.IsTraceEnabled() {
		logger.Trace("#%d Run (%d running sequences)", s.uniqueID, s.lastRunningSequence+1)
	}
	lastProgressed := -1
	for s.lastRunningSequence >= 0 {
		progressed := false
		for i := 0; i <= s.lastRunningSequence; i++ {
			// Re-checked inside the loop: a step taken this pass can flip
			// the phase to terminating.
			if s.phase.Status() == StatusTerminating {
				if logger.IsTraceEnabled() {
					logger.Trace("#%d Phase %s is terminating", s.uniqueID, s.phase.Definition().Name)
				}
				s.Stop()
				return
			}
			if lastProgressed == i {
				break
			}
			sequence := s.runningSequences[i]
			if sequence == nil {
				// A stop during another sequence's step nulled this slot.
				continue
			}
			ok, err := sequence.Progress(s)
			if err != nil {
				s.Fail(err)
				return
			}
			if s.stopped {
				return
			}
			if ok {
				progressed = true
				lastProgressed = i
				if sequence.IsCompleted() {
					if logger.IsTraceEnabled() {
						logger.Trace("#%d Completed %s(%d)", s.uniqueID, sequence, sequence.Index())
					}
					sequence.DecRef(s)
					if i >= s.lastRunningSequence {
						s.runningSequences[i] = nil
					} else {
						s.runningSequences[i] = s.runningSequences[s.lastRunningSequence]
						s.runningSequences[s.lastRunningSequence] = nil
					}
					s.lastRunningSequence--
					lastProgressed = -1
				}
			}
		}
		if !progressed && s.lastRunningSequence >= 0 {
			if logger.IsTraceEnabled() {
				logger.Trace("#%d (%s) no progress, not finished.", s.uniqueID, s.phase.Definition().Name)
			}
			return
		}
	}
	if logger.IsTraceEnabled() {
		logger.Trace("#%d Session finished", s.uniqueID)
	}
	s.Reset()
	s.phase.NotifyFinished(s)
}

func (s *Session) releaseSequence(sequence *SequenceInstance) {
	s.usedSequences.Clear(sequence.Definition().Offset() + sequence.Index())
	s.sequencePool.Release(sequence)
}

// SetCurrentSequence records the instance whose step is about to run, so
// resource lookups resolve against the right concurrency index.
func (s *Session) SetCurrentSequence(current *SequenceInstance) {
	if logger.IsTraceEnabled() {
		logger.Trace("#%d Changing sequence %s -> %s", s.uniqueID, s.currentSequence, current)
	}
	s.currentSequence = current
}

func (s *Session) CurrentSequence() *SequenceInstance { return s.currentSequence }

func (s *Session) CurrentRequest() Request { return s.currentRequest }

func (s *Session) SetCurrentRequest(request Request) { s.currentRequest = request }

// Start binds the session to a phase and schedules the deferred start on the
// executor.
func (s *Session) Start(phase Phase) {
	if logger.IsTraceEnabled() {
		logger.Trace("#%d Session starting in %s", s.uniqueID, phase.Definition().Name)
	}
	if err := s.ResetPhase(phase); err != nil {
		phase.Fail(err)
		return
	}
	s.executor.Submit(s.deferredStart)
}

func (s *Session) deferredStart() {
	for _, seq := range s.phase.Definition().Scenario.InitialSequences() {
		s.StartSequence(seq, false, ConcurrencyFail)
		if s.stopped {
			break
		}
	}
	s.Call()
}

// StartSequenceByName resolves name in the current scenario and spawns it.
func (s *Session) StartSequenceByName(name string, forceSameIndex bool, policy ConcurrencyPolicy) (*SequenceInstance, bool) {
	seq := s.phase.Definition().Scenario.Sequence(name)
	if seq == nil {
		s.Fail(fmt.Errorf("unknown sequence %q", name))
		return nil, false
	}
	return s.StartSequence(seq, forceSameIndex, policy)
}

// StartSequence spawns an instance of seq at the lowest free concurrency
// index (or the current instance's index when forceSameIndex). It returns
// ok=false both when the spawn was skipped under the WARN policy and when it
// failed the session; callers that care can check IsStopped.
func (s *Session) StartSequence(seq *Sequence, forceSameIndex bool, policy ConcurrencyPolicy) (*SequenceInstance, bool) {
	if s.stopped {
		return nil, false
	}
	index := 0
	if forceSameIndex {
		if s.currentSequence == nil {
			s.Fail(ErrNoCurrentSequence)
			return nil, false
		}
		if seq.Concurrency() != s.currentSequence.Definition().Concurrency() {
			s.Fail(fmt.Errorf("%w: sequence %q has concurrency %d, spawning sequence %q has %d",
				ErrConcurrencyMismatch, seq.Name(), seq.Concurrency(),
				s.currentSequence.Definition().Name(), s.currentSequence.Definition().Concurrency()))
			return nil, false
		}
		index = s.currentSequence.Index()
	}

	instance := s.sequencePool.Acquire()
	// Look up the first unused index.
	for {
		if seq.Concurrency() == 0 {
			if index >= 1 {
				logger.Error("Cannot start sequence %s as it has already started and it is not marked as concurrent", seq.Name())
				if s.currentSequence != nil && seq == s.currentSequence.Definition() {
					logger.Info("Hint: maybe you intended only to restart the current sequence?")
				}
				if instance != nil {
					s.sequencePool.Release(instance)
				}
				s.Fail(ErrNotConcurrent)
				return nil, false
			}
		} else if index >= seq.Concurrency() {
			if instance != nil {
				s.sequencePool.Release(instance)
			}
			if policy == ConcurrencyWarn {
				logger.Warn("Cannot start sequence %s, exceeded maximum concurrency (%d)", seq.Name(), seq.Concurrency())
			} else {
				logger.Error("Cannot start sequence %s, exceeded maximum concurrency (%d)", seq.Name(), seq.Concurrency())
				s.Fail(ErrConcurrencyExceeded)
			}
			return nil, false
		}
		if !s.usedSequences.Test(seq.Offset() + index) {
			break
		}
		if forceSameIndex {
			if instance != nil {
				s.sequencePool.Release(instance)
			}
			if policy == ConcurrencyWarn {
				logger.Warn("Cannot start sequence %s with index %d as it is already executing.", seq.Name(), index)
			} else {
				logger.Error("Cannot start sequence %s with index %d as it is already executing.", seq.Name(), index)
				s.Fail(ErrIndexInUse)
			}
			return nil, false
		}
		index++
	}
	if instance == nil {
		logger.Error("Cannot instantiate sequence %s, no free instances.", seq.Name())
		s.Fail(ErrPoolExhausted)
		return nil, false
	}
	if s.lastRunningSequence >= len(s.runningSequences)-1 {
		s.sequencePool.Release(instance)
		s.Fail(ErrTooManySequences)
		return nil, false
	}
	if logger.IsTraceEnabled() {
		logger.Trace("#%d starting sequence %s(%d)", s.uniqueID, seq.Name(), index)
	}
	s.usedSequences.Set(seq.Offset() + index)
	instance.Reset(seq, index, seq.Steps(), s.releaseFn)
	s.lastRunningSequence++
	s.runningSequences[s.lastRunningSequence] = instance
	return instance, true
}

// Proceed re-enqueues the session on its executor unless a re-entry is
// already pending. External events (response arrival, timers) call this to
// resume a stalled run loop.
func (s *Session) Proceed() {
	if !s.scheduled {
		s.scheduled = true
		s.executor.Submit(s.Call)
	}
}

// Statistics resolves the statistics cell for a step in the current phase.
func (s *Session) Statistics(stepID int, name string) *statistics.Statistics {
	return s.stats.GetOrCreate(s.phase.Definition().Name, stepID, name, s.phase.AbsoluteStartTime())
}

// Reset unsets every declared variable and notifies every declared resource.
// Afterwards the used bitset must be empty and the pool full; a violation
// means a slot leaked through some exit path.
func (s *Session) Reset() {
	for _, v := range s.allVars {
		v.Unset()
	}
	for _, r := range s.allResources {
		r.OnSessionReset(s)
	}
	if !s.usedSequences.IsEmpty() || !s.sequencePool.IsFull() {
		logger.Error("#%d invariant violation on reset: %d used slots, %d/%d instances free",
			s.uniqueID, s.usedSequences.Count(), s.sequencePool.Available(), s.sequencePool.Capacity())
	}
}

// ResetPhase swaps the phase reference so the session can be reused without
// reallocating its variable, resource, and pool state. The new phase must
// share the scenario and shared-resource set with the old one, and the old
// one must have terminated.
func (s *Session) ResetPhase(newPhase Phase) error {
	if s.phase == newPhase {
		return nil
	}
	if s.phase != nil {
		old := s.phase.Definition()
		next := newPhase.Definition()
		if old.Scenario != next.Scenario {
			return fmt.Errorf("%w: different scenario", ErrPhaseMismatch)
		}
		if old.SharedResources != next.SharedResources {
			return fmt.Errorf("%w: different shared resources", ErrPhaseMismatch)
		}
		if !s.phase.Status().IsTerminated() {
			return fmt.Errorf("%w: previous phase %s is %s", ErrPhaseMismatch, old.Name, s.phase.Status())
		}
	}
	s.phase = newPhase
	return nil
}

// Stop synchronously releases every running sequence, resets the session and
// notifies the phase, then raises the cooperative stop flag that unwinds the
// run loop. The flag is consumed exactly once, at Call.
func (s *Session) Stop() {
	for i := 0; i <= s.lastRunningSequence; i++ {
		if sequence := s.runningSequences[i]; sequence != nil {
			sequence.DecRef(s)
		}
		s.runningSequences[i] = nil
	}
	s.lastRunningSequence = -1
	s.currentSequence = nil
	if logger.IsTraceEnabled() {
		logger.Trace("#%d Session stopped.", s.uniqueID)
	}
	s.Reset()
	s.phase.NotifyFinished(s)
	s.stopped = true
}

// Fail stops the session and reports the cause to the phase. The phase is
// notified even if Stop itself bails out.
func (s *Session) Fail(err error) {
	defer func() {
		if s.phase != nil {
			s.phase.Fail(err)
		}
	}()
	logger.Error("#%d Failing phase %s: %v", s.uniqueID, s.phaseName(), err)
	s.Stop()
}

// IsStopped reports whether the cooperative stop flag is raised; it is
// cleared at the task boundary.
func (s *Session) IsStopped() bool { return s.stopped }

// IsActive reports whether any sequence is still running.
func (s *Session) IsActive() bool { return s.lastRunningSequence >= 0 }

func (s *Session) phaseName() string {
	if s.phase == nil {
		return "<none>"
	}
	return s.phase.Definition().Name
}

func (s *Session) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d (%s) %d sequences:", s.uniqueID, s.phaseName(), s.lastRunningSequence+1)
	for i := 0; i <= s.lastRunningSequence; i++ {
		sb.WriteByte(' ')
		sb.WriteString(s.runningSequences[i].String())
	}
	return sb.String()
}

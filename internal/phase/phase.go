// Package phase implements the lifecycle controller a group of sessions
// reports to. A phase moves Running → Terminating → Terminated; sessions
// observe the status inside their run loop and stop themselves once the
// phase starts terminating.
package phase

import (
	"sync"
	"time"

	"yqhp/session-engine/internal/session"
	"yqhp/session-engine/pkg/logger"
)

// Instance is a live phase. It is shared between the runner and every
// session in the phase, which run on different goroutines, so all state is
// guarded.
type Instance struct {
	def                *session.PhaseDefinition
	agentThreads       int
	agentFirstThreadID int

	mu         sync.Mutex
	status     session.PhaseStatus
	absStart   int64
	active     int
	finished   int64
	firstErr   error
	terminated chan struct{}
}

// New creates a phase in the not-started state.
func New(def *session.PhaseDefinition, agentThreads, agentFirstThreadID int) *Instance {
	return &Instance{
		def:                def,
		agentThreads:       agentThreads,
		agentFirstThreadID: agentFirstThreadID,
		terminated:         make(chan struct{}),
	}
}

func (p *Instance) Definition() *session.PhaseDefinition { return p.def }

func (p *Instance) AgentThreads() int { return p.agentThreads }

func (p *Instance) AgentFirstThreadID() int { return p.agentFirstThreadID }

func (p *Instance) Status() session.PhaseStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Instance) AbsoluteStartTime() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.absStart
}

// Start moves the phase to running and records the number of sessions that
// will report back through NotifyFinished.
func (p *Instance) Start(sessions int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = session.StatusRunning
	p.absStart = time.Now().UnixMilli()
	p.active = sessions
	logger.Debug("phase %s started with %d sessions", p.def.Name, sessions)
}

// NotifyFinished is called by each session after it has reset. When the last
// session reports in, the phase terminates.
func (p *Instance) NotifyFinished(s *session.Session) {
	p.mu.Lock()
	p.finished++
	p.active--
	if logger.IsTraceEnabled() && s != nil {
		logger.Trace("phase %s: session #%d finished, %d still active", p.def.Name, s.UniqueID(), p.active)
	}
	terminate := p.active <= 0 && p.status != session.StatusTerminated
	if terminate {
		p.status = session.StatusTerminated
		close(p.terminated)
	}
	p.mu.Unlock()
}

// Terminate asks every session to stop cooperatively: the status flips to
// terminating and sessions observe it on their next run-loop pass. Blocked
// sessions must be woken separately (the runner submits a Proceed for each).
func (p *Instance) Terminate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case session.StatusRunning:
		p.status = session.StatusTerminating
		logger.Debug("phase %s terminating", p.def.Name)
	case session.StatusNotStarted:
		p.status = session.StatusTerminated
		close(p.terminated)
	}
}

// Fail records the first failure cause and terminates the phase.
func (p *Instance) Fail(err error) {
	p.mu.Lock()
	if p.firstErr == nil {
		p.firstErr = err
	}
	failed := p.firstErr
	p.mu.Unlock()
	logger.Error("phase %s failed: %v", p.def.Name, failed)
	p.Terminate()
}

// Err returns the first failure cause, nil when the phase succeeded.
func (p *Instance) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr
}

// FinishedSessions returns how many session runs completed.
func (p *Instance) FinishedSessions() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

// Terminated returns a channel closed once every session has finished.
func (p *Instance) Terminated() <-chan struct{} { return p.terminated }

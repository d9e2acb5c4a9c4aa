package session

import "time"

// PhaseStatus is the lifecycle status a phase reports to its sessions.
type PhaseStatus int

const (
	StatusNotStarted PhaseStatus = iota
	StatusRunning
	StatusTerminating
	StatusTerminated
)

func (s PhaseStatus) IsTerminated() bool { return s == StatusTerminated }

func (s PhaseStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "not-started"
	case StatusRunning:
		return "running"
	case StatusTerminating:
		return "terminating"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// PhaseDefinition is the static description a phase shares with its sessions.
// Sessions reused across phases require the scenario and shared-resources key
// to stay identical.
type PhaseDefinition struct {
	Name            string
	Scenario        *Scenario
	SharedResources string
}

// Phase is the external lifecycle controller for a group of sessions.
type Phase interface {
	Status() PhaseStatus
	Definition() *PhaseDefinition
	// AbsoluteStartTime is the phase start in Unix milliseconds.
	AbsoluteStartTime() int64
	AgentThreads() int
	AgentFirstThreadID() int
	// NotifyFinished is called exactly once per session run, after the
	// session has reset.
	NotifyFinished(s *Session)
	Fail(err error)
}

// Executor is a single-threaded task queue guaranteeing in-order,
// non-overlapping execution of everything submitted for one session.
type Executor interface {
	Submit(task func())
	// Schedule runs task on the executor after the given delay.
	Schedule(delay time.Duration, task func())
}

// Request is an opaque handle to an in-flight operation owned by the
// connection layer. The engine only parks it on the session so steps can find
// their own pending work.
type Request any

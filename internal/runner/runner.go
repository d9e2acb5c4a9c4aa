// Package runner provides the execution entry point shared by the CLI and
// the REST surface: it turns a parsed benchmark into executor threads,
// sessions and phases, drives the phases in order and collects the report.
package runner

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"yqhp/session-engine/internal/executor"
	"yqhp/session-engine/internal/parser"
	"yqhp/session-engine/internal/phase"
	"yqhp/session-engine/internal/session"
	"yqhp/session-engine/internal/statistics"
	"yqhp/session-engine/internal/steps"
	"yqhp/session-engine/pkg/logger"
	"yqhp/session-engine/pkg/types"
)

// Status is the lifecycle state of one run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// Runner owns every run started through this process.
type Runner struct {
	registry *steps.Registry

	mu   sync.Mutex
	runs map[string]*Run
}

// New creates a Runner dispatching through the given step registry.
func New(registry *steps.Registry) *Runner {
	return &Runner{
		registry: registry,
		runs:     make(map[string]*Run),
	}
}

// StartRun compiles the benchmark's scenario and launches the run
// asynchronously. The returned Run can be polled or waited on.
func (r *Runner) StartRun(benchmark *types.Benchmark) (*Run, error) {
	scenario, err := parser.BuildScenario(&benchmark.Scenario, r.registry)
	if err != nil {
		return nil, fmt.Errorf("building scenario: %w", err)
	}

	run := &Run{
		id:        uuid.NewString(),
		benchmark: benchmark,
		scenario:  scenario,
		status:    StatusPending,
		abort:     make(chan struct{}),
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.runs[run.id] = run
	r.mu.Unlock()

	logger.Info("run %s: benchmark %s with %d phases", run.id, benchmark.Name, len(benchmark.Phases))
	go run.execute()
	return run, nil
}

// Get returns a run by ID.
func (r *Runner) Get(id string) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}

// List returns all known runs.
func (r *Runner) List() []*Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	runs := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	return runs
}

// Run is one benchmark execution.
type Run struct {
	id        string
	benchmark *types.Benchmark
	scenario  *session.Scenario

	abort     chan struct{}
	abortOnce sync.Once
	done      chan struct{}

	mu           sync.Mutex
	status       Status
	err          error
	startedAt    time.Time
	finishedAt   time.Time
	currentPhase string
	phaseReports []PhaseReport
	threads      []*threadContext
}

// threadContext is one executor thread with its statistics registry and the
// idle sessions parked on it between phases.
type threadContext struct {
	id    int
	exec  *executor.EventLoop
	stats *statistics.SessionStatistics
	idle  map[string][]*session.Session
}

func (r *Run) ID() string { return r.id }

func (r *Run) Benchmark() *types.Benchmark { return r.benchmark }

// Status returns the current lifecycle state.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the failure cause, nil unless the run failed.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// CurrentPhase returns the name of the phase being driven, empty when none.
func (r *Run) CurrentPhase() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentPhase
}

// Stop requests a cooperative abort. The current phase terminates and the
// remaining phases are skipped.
func (r *Run) Stop() {
	r.abortOnce.Do(func() {
		logger.Info("run %s: stop requested", r.id)
		close(r.abort)
	})
}

// Done returns a channel closed when the run has finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes and returns its failure cause, if any.
func (r *Run) Wait() error {
	<-r.done
	return r.Err()
}

func (r *Run) execute() {
	defer close(r.done)

	threadCount := 1
	for _, cfg := range r.benchmark.Phases {
		if cfg.Threads > threadCount {
			threadCount = cfg.Threads
		}
	}

	threads := make([]*threadContext, threadCount)
	for i := range threads {
		threads[i] = &threadContext{
			id:    i,
			exec:  executor.NewEventLoop(),
			stats: statistics.NewSessionStatistics(),
			idle:  make(map[string][]*session.Session),
		}
	}
	defer func() {
		for _, tc := range threads {
			tc.exec.Close()
		}
	}()

	r.mu.Lock()
	r.status = StatusRunning
	r.startedAt = time.Now()
	r.threads = threads
	r.mu.Unlock()

	aborted := false
	var runErr error
	nextSessionID := 0

	for _, cfg := range r.benchmark.Phases {
		select {
		case <-r.abort:
			aborted = true
		default:
		}
		if aborted {
			break
		}

		ph, report := r.runPhase(cfg, threads, &nextSessionID)
		r.mu.Lock()
		r.phaseReports = append(r.phaseReports, report)
		r.currentPhase = ""
		r.mu.Unlock()

		if err := ph.Err(); err != nil {
			runErr = fmt.Errorf("phase %s: %w", cfg.Name, err)
			break
		}
		select {
		case <-r.abort:
			aborted = true
		default:
		}
	}

	r.mu.Lock()
	r.finishedAt = time.Now()
	switch {
	case runErr != nil:
		r.status = StatusFailed
		r.err = runErr
	case aborted:
		r.status = StatusStopped
	default:
		r.status = StatusCompleted
	}
	logger.Info("run %s: %s after %s", r.id, r.status, r.finishedAt.Sub(r.startedAt).Round(time.Millisecond))
	r.mu.Unlock()
}

// runPhase drives one phase to termination: it starts the configured number
// of sessions spread over the executor threads, arms the duration timer and
// waits for the last session to report in.
func (r *Run) runPhase(cfg types.PhaseConfig, threads []*threadContext, nextSessionID *int) (*phase.Instance, PhaseReport) {
	used := cfg.Threads
	if used <= 0 {
		used = 1
	}
	if used > len(threads) {
		used = len(threads)
	}

	def := &session.PhaseDefinition{
		Name:            cfg.Name,
		Scenario:        r.scenario,
		SharedResources: cfg.SharedResources,
	}
	ph := phase.New(def, used, 0)

	r.mu.Lock()
	r.currentPhase = cfg.Name
	r.mu.Unlock()

	started := time.Now()
	ph.Start(cfg.Sessions)

	running := make([]startedSession, 0, cfg.Sessions)
	for i := 0; i < cfg.Sessions; i++ {
		tc := threads[i%used]
		s := tc.checkout(r.scenario, cfg.SharedResources, nextSessionID)
		s.Start(ph)
		running = append(running, startedSession{s, tc})
	}

	var timeout <-chan time.Time
	if cfg.Duration > 0 {
		timer := time.NewTimer(cfg.Duration.Std())
		defer timer.Stop()
		timeout = timer.C
	}

	// A session failure flips the phase to terminating from inside an
	// executor; the poll notices and wakes the surviving parked sessions.
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	abortCh := r.abort
	terminating := false
	for {
		select {
		case <-ph.Terminated():
			report := PhaseReport{
				Name:             cfg.Name,
				Duration:         time.Since(started),
				FinishedSessions: ph.FinishedSessions(),
			}
			if err := ph.Err(); err != nil {
				report.Error = err.Error()
			}
			for _, rs := range running {
				rs.tc.checkin(cfg.SharedResources, rs.session)
			}
			return ph, report
		case <-timeout:
			timeout = nil
			logger.Debug("phase %s reached its duration, terminating", cfg.Name)
		case <-abortCh:
			abortCh = nil
		case <-poll.C:
			if ph.Status() != session.StatusTerminating {
				continue
			}
		}
		if !terminating {
			terminating = true
			ph.Terminate()
			// Parked sessions see neither the status change nor a task on
			// their executor, so wake each one explicitly.
			for _, rs := range running {
				s := rs.session
				rs.tc.exec.Submit(func() {
					if s.IsActive() {
						s.Proceed()
					}
				})
			}
		}
	}
}

type startedSession struct {
	session *session.Session
	tc      *threadContext
}

// checkout reuses an idle session from a previous phase with the same shared
// resources, or builds a fresh one.
func (tc *threadContext) checkout(scenario *session.Scenario, sharedKey string, nextID *int) *session.Session {
	if pool := tc.idle[sharedKey]; len(pool) > 0 {
		s := pool[len(pool)-1]
		tc.idle[sharedKey] = pool[:len(pool)-1]
		return s
	}
	s := session.New(scenario, 0, tc.id, *nextID)
	*nextID++
	s.Reserve(scenario)
	s.Attach(tc.exec, tc.stats)
	return s
}

// checkin parks a session for reuse by a later phase.
func (tc *threadContext) checkin(sharedKey string, s *session.Session) {
	tc.idle[sharedKey] = append(tc.idle[sharedKey], s)
}

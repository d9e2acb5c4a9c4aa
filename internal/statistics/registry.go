package statistics

import "sync"

type key struct {
	phase  string
	stepID int
	name   string
}

// SessionStatistics is the per-executor registry of statistics cells.
// Sessions on the same executor share it; the REST surface reads it
// concurrently.
type SessionStatistics struct {
	mu    sync.Mutex
	cells map[key]*Statistics
}

// NewSessionStatistics creates an empty registry.
func NewSessionStatistics() *SessionStatistics {
	return &SessionStatistics{cells: make(map[key]*Statistics)}
}

// GetOrCreate resolves the cell for (phase, stepID, name), creating it with
// the phase's absolute start time on first use.
func (r *SessionStatistics) GetOrCreate(phase string, stepID int, name string, startTime int64) *Statistics {
	k := key{phase: phase, stepID: stepID, name: name}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.cells[k]
	if !ok {
		s = New(startTime)
		r.cells[k] = s
	}
	return s
}

// Visit calls fn for every cell. The callback must not call back into the
// registry.
func (r *SessionStatistics) Visit(fn func(phase string, stepID int, name string, stats *Statistics)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.cells {
		fn(k.phase, k.stepID, k.name, s)
	}
}

// Prune drops every cell belonging to the given phase.
func (r *SessionStatistics) Prune(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.cells {
		if k.phase == phase {
			delete(r.cells, k)
		}
	}
}

package runner

import (
	"sort"
	"time"

	"yqhp/session-engine/internal/statistics"
)

// Report is the aggregated result of one run.
type Report struct {
	RunID      string        `json:"run_id"`
	Benchmark  string        `json:"benchmark"`
	Status     Status        `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Phases     []PhaseReport `json:"phases"`
	Metrics    []MetricCell  `json:"metrics"`
}

// PhaseReport summarizes one phase of the run.
type PhaseReport struct {
	Name             string        `json:"name"`
	Duration         time.Duration `json:"duration_ns"`
	FinishedSessions int64         `json:"finished_sessions"`
	Error            string        `json:"error,omitempty"`
}

// MetricCell is the cross-thread aggregate for one (phase, metric) pair.
type MetricCell struct {
	Phase  string              `json:"phase"`
	Name   string              `json:"name"`
	Totals statistics.Snapshot `json:"totals"`
}

// Report merges the per-thread statistics registries into one snapshot per
// (phase, metric) pair. Safe to call while the run is still in flight; the
// numbers are then a live partial view.
func (r *Run) Report() Report {
	r.mu.Lock()
	report := Report{
		RunID:     r.id,
		Benchmark: r.benchmark.Name,
		Status:    r.status,
		StartedAt: r.startedAt,
		Phases:    append([]PhaseReport(nil), r.phaseReports...),
	}
	if r.err != nil {
		report.Error = r.err.Error()
	}
	if !r.startedAt.IsZero() {
		end := r.finishedAt
		if end.IsZero() {
			end = time.Now()
		}
		report.Duration = end.Sub(r.startedAt)
	}
	threads := r.threads
	r.mu.Unlock()

	type cellKey struct {
		phase string
		name  string
	}
	merged := make(map[cellKey]*statistics.Statistics)
	for _, tc := range threads {
		tc.stats.Visit(func(phase string, stepID int, name string, stats *statistics.Statistics) {
			k := cellKey{phase, name}
			agg, ok := merged[k]
			if !ok {
				agg = statistics.New(stats.Snapshot().StartTime)
				merged[k] = agg
			}
			agg.Merge(stats)
		})
	}

	for k, agg := range merged {
		report.Metrics = append(report.Metrics, MetricCell{
			Phase:  k.phase,
			Name:   k.name,
			Totals: agg.Snapshot(),
		})
	}
	sort.Slice(report.Metrics, func(i, j int) bool {
		if report.Metrics[i].Phase != report.Metrics[j].Phase {
			return report.Metrics[i].Phase < report.Metrics[j].Phase
		}
		return report.Metrics[i].Name < report.Metrics[j].Name
	})
	return report
}

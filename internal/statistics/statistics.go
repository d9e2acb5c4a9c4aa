// Package statistics collects per-step counters and response-time
// distributions for a group of sessions running on one executor thread.
package statistics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds: 1 microsecond to 1 minute, 2 significant digits.
const (
	minRecordable = int64(time.Microsecond)
	maxRecordable = int64(time.Minute)
	sigFigures    = 2
)

// Statistics is the counter cell for one (phase, step, name) triple. The
// writing side is a single executor thread; the mutex exists only for
// concurrent readers (control surface, final report).
type Statistics struct {
	mu            sync.Mutex
	histogram     *hdrhistogram.Histogram
	startTime     int64
	requestCount  int64
	responseCount int64
	connectErrs   int64
	invalid       int64
	custom        map[string]*IntValue
}

// New creates a statistics cell anchored at the phase start (Unix millis).
func New(startTime int64) *Statistics {
	return &Statistics{
		histogram: hdrhistogram.New(minRecordable, maxRecordable, sigFigures),
		startTime: startTime,
		custom:    make(map[string]*IntValue),
	}
}

// IncrementRequests counts one issued request.
func (s *Statistics) IncrementRequests() {
	s.mu.Lock()
	s.requestCount++
	s.mu.Unlock()
}

// RecordResponse counts one response and records its latency.
func (s *Statistics) RecordResponse(latency time.Duration) {
	s.mu.Lock()
	s.responseCount++
	ns := latency.Nanoseconds()
	if ns < minRecordable {
		ns = minRecordable
	} else if ns > maxRecordable {
		ns = maxRecordable
	}
	// RecordValue only fails outside the clamped bounds.
	_ = s.histogram.RecordValue(ns)
	s.mu.Unlock()
}

// IncrementConnectionErrors counts one failed connection attempt.
func (s *Statistics) IncrementConnectionErrors() {
	s.mu.Lock()
	s.connectErrs++
	s.mu.Unlock()
}

// AddInvalid counts one response that failed validation.
func (s *Statistics) AddInvalid() {
	s.mu.Lock()
	s.invalid++
	s.mu.Unlock()
}

// Custom returns the named custom counter, creating it on first use.
func (s *Statistics) Custom(name string) *IntValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.custom[name]
	if !ok {
		v = &IntValue{}
		s.custom[name] = v
	}
	return v
}

// Snapshot captures the current counters for reporting.
func (s *Statistics) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		StartTime:        s.startTime,
		RequestCount:     s.requestCount,
		ResponseCount:    s.responseCount,
		ConnectionErrors: s.connectErrs,
		Invalid:          s.invalid,
	}
	if s.histogram.TotalCount() > 0 {
		snap.MeanLatency = time.Duration(s.histogram.Mean())
		snap.MaxLatency = time.Duration(s.histogram.Max())
		snap.P50Latency = time.Duration(s.histogram.ValueAtQuantile(50))
		snap.P90Latency = time.Duration(s.histogram.ValueAtQuantile(90))
		snap.P99Latency = time.Duration(s.histogram.ValueAtQuantile(99))
	}
	if len(s.custom) > 0 {
		snap.Custom = make(map[string]int, len(s.custom))
		for name, v := range s.custom {
			snap.Custom[name] = v.Value()
		}
	}
	return snap
}

// Merge folds another cell's counters and distribution into this one. Used
// when the per-thread cells are combined into a run report.
func (s *Statistics) Merge(other *Statistics) {
	other.mu.Lock()
	defer other.mu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestCount += other.requestCount
	s.responseCount += other.responseCount
	s.connectErrs += other.connectErrs
	s.invalid += other.invalid
	s.histogram.Merge(other.histogram)
	for name, v := range other.custom {
		agg, ok := s.custom[name]
		if !ok {
			agg = &IntValue{}
			s.custom[name] = agg
		}
		agg.Add(v.Value())
	}
}

// Reset clears all counters, the distribution, and custom values.
func (s *Statistics) Reset() {
	s.mu.Lock()
	s.requestCount = 0
	s.responseCount = 0
	s.connectErrs = 0
	s.invalid = 0
	s.histogram.Reset()
	for _, v := range s.custom {
		v.Reset()
	}
	s.mu.Unlock()
}

// Snapshot is a point-in-time copy of one cell's counters.
type Snapshot struct {
	StartTime        int64          `json:"start_time"`
	RequestCount     int64          `json:"request_count"`
	ResponseCount    int64          `json:"response_count"`
	ConnectionErrors int64          `json:"connection_errors"`
	Invalid          int64          `json:"invalid"`
	MeanLatency      time.Duration  `json:"mean_latency_ns"`
	MaxLatency       time.Duration  `json:"max_latency_ns"`
	P50Latency       time.Duration  `json:"p50_latency_ns"`
	P90Latency       time.Duration  `json:"p90_latency_ns"`
	P99Latency       time.Duration  `json:"p99_latency_ns"`
	Custom           map[string]int `json:"custom,omitempty"`
}

// IntValue is a plain additive custom counter.
type IntValue struct {
	value int
}

func (v *IntValue) Add(increment int) { v.value += increment }

func (v *IntValue) Value() int { return v.value }

func (v *IntValue) Reset() { v.value = 0 }

package session

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"yqhp/session-engine/internal/statistics"
)

// TestSpawnReleaseInvariantProperty checks that no matter how many spawns a
// scenario attempts under the warn policy, the number of live instances never
// exceeds the concurrency factor, and that after a stop the session is back
// to its pristine state: empty bitset, full pool.
func TestSpawnReleaseInvariantProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("spawn bounded by concurrency, clean after stop", prop.ForAll(
		func(concurrency int, attempts int) bool {
			spawned := 0
			scenario := NewScenario(nil, nil)
			scenario.AddSequence("worker", concurrency, []Step{blockedStep()})
			spawner := scenario.AddSequence("spawner", 0, []Step{
				stepFunc(func(s *Session) (bool, error) {
					for i := 0; i < attempts; i++ {
						if _, ok := s.StartSequenceByName("worker", false, ConcurrencyWarn); ok {
							spawned++
						}
					}
					return true, nil
				}),
			})
			scenario.MarkInitial(spawner)

			exec := &testExecutor{}
			s := New(scenario, 0, 0, 1)
			s.Reserve(scenario)
			s.Attach(exec, statistics.NewSessionStatistics())
			phase := newTestPhase(scenario)
			s.Start(phase)
			exec.drain()

			if len(phase.failures) > 0 {
				return false
			}
			limit := attempts
			if limit > concurrency {
				limit = concurrency
			}
			if spawned != limit {
				return false
			}
			if s.usedSequences.Count() != spawned {
				return false
			}

			s.Stop()
			s.Call()
			return s.usedSequences.IsEmpty() && s.sequencePool.IsFull() && phase.finished == 1
		},
		gen.IntRange(1, 16).WithLabel("concurrency"),
		gen.IntRange(0, 32).WithLabel("attempts"),
	))

	properties.TestingRun(t)
}

// TestCompletionOrderProperty runs a batch of counting sequences spawned in a
// random interleaving and checks every step runs exactly once.
func TestCompletionOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("every spawned sequence runs all its steps once", prop.ForAll(
		func(count int, stepsPer int) bool {
			total := 0
			scenario := NewScenario(nil, nil)
			steps := make([]Step, stepsPer)
			for i := range steps {
				steps[i] = countingStep(&total)
			}
			scenario.AddSequence("work", count, steps)
			spawner := scenario.AddSequence("spawner", 0, []Step{
				stepFunc(func(s *Session) (bool, error) {
					for i := 0; i < count; i++ {
						if _, ok := s.StartSequenceByName("work", false, ConcurrencyFail); !ok {
							return false, nil
						}
					}
					return true, nil
				}),
			})
			scenario.MarkInitial(spawner)

			exec := &testExecutor{}
			s := New(scenario, 0, 0, 1)
			s.Reserve(scenario)
			s.Attach(exec, statistics.NewSessionStatistics())
			phase := newTestPhase(scenario)
			s.Start(phase)
			exec.drain()

			return len(phase.failures) == 0 &&
				total == count*stepsPer &&
				phase.finished == 1 &&
				s.usedSequences.IsEmpty() &&
				s.sequencePool.IsFull()
		},
		gen.IntRange(1, 8).WithLabel("count"),
		gen.IntRange(1, 5).WithLabel("stepsPer"),
	))

	properties.TestingRun(t)
}

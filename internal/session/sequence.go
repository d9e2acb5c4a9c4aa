package session

import (
	"fmt"

	"yqhp/session-engine/pkg/logger"
)

// Step is one scripted action inside a sequence. Invoke returns true when the
// step ran and the cursor may advance, false when the step cannot proceed yet
// (for example it is waiting for a response); the session's run loop will
// retry it on a later pass. A returned error is fatal to the session.
type Step interface {
	Invoke(s *Session) (bool, error)
}

// ReserveStep is implemented by steps that declare variables or resources.
// Reserve runs once per session, before any start, with the owning sequence
// bound as current so declarations observe the right concurrency factor.
type ReserveStep interface {
	Reserve(s *Session)
}

// Sequence is a named, statically defined ordered list of steps with a
// concurrency factor (maximum simultaneous instances; zero means the sequence
// cannot run concurrently with itself).
type Sequence struct {
	name        string
	id          int
	offset      int
	concurrency int
	steps       []Step
}

func (seq *Sequence) Name() string { return seq.name }

// Offset is the sequence's base slot in the session's used bitset; instance
// index i of this sequence occupies bit offset+i.
func (seq *Sequence) Offset() int { return seq.offset }

func (seq *Sequence) Concurrency() int { return seq.concurrency }

func (seq *Sequence) Steps() []Step { return seq.steps }

// Reserve invokes the reservation hook of every step that has one.
func (seq *Sequence) Reserve(s *Session) {
	for _, step := range seq.steps {
		if r, ok := step.(ReserveStep); ok {
			r.Reserve(s)
		}
	}
}

// SequenceInstance is a live cursor into a Sequence's steps, bound to one
// concurrency index. Instances are pooled: Reset rebinds a recycled instance,
// and the instance goes back to the pool when its ref count drops to zero.
type SequenceInstance struct {
	definition *Sequence
	index      int
	steps      []Step
	cursor     int
	refCnt     int32
	release    func(*SequenceInstance)
}

// Reset binds the instance to a definition and concurrency index and arms the
// release callback. The ref count starts at one: the run loop's own
// completion reference.
func (si *SequenceInstance) Reset(definition *Sequence, index int, steps []Step, release func(*SequenceInstance)) *SequenceInstance {
	si.definition = definition
	si.index = index
	si.steps = steps
	si.cursor = 0
	si.refCnt = 1
	si.release = release
	return si
}

func (si *SequenceInstance) Definition() *Sequence { return si.definition }

// Index is the concurrency index this instance occupies (0 for
// non-concurrent sequences).
func (si *SequenceInstance) Index() int { return si.index }

func (si *SequenceInstance) IsCompleted() bool { return si.cursor >= len(si.steps) }

// Restart rewinds the cursor to the first step. Progress detects the rewind
// and does not advance past it.
func (si *SequenceInstance) Restart() { si.cursor = 0 }

// IncRef registers an additional reference, e.g. an in-flight request
// handle. The instance is not recycled until every reference is dropped.
func (si *SequenceInstance) IncRef() { si.refCnt++ }

// DecRef drops one reference and releases the instance to the pool when none
// remain.
func (si *SequenceInstance) DecRef(s *Session) {
	si.refCnt--
	if si.refCnt == 0 {
		if si.release != nil {
			si.release(si)
		}
	} else if si.refCnt < 0 {
		logger.Error("#%d sequence %s(%d) released more times than acquired", s.UniqueID(), si.definition.Name(), si.index)
	}
}

// Progress advances the instance step by step until a step blocks, the
// sequence completes, or the session stops. It reports whether any step ran.
func (si *SequenceInstance) Progress(s *Session) (bool, error) {
	progressed := false
	for !si.IsCompleted() {
		s.SetCurrentSequence(si)
		before := si.cursor
		invoked, err := si.steps[si.cursor].Invoke(s)
		if err != nil {
			return progressed, err
		}
		if s.IsStopped() {
			// The step stopped the session; this instance may already be
			// back in the pool, so do not touch the cursor.
			return progressed, nil
		}
		if !invoked {
			break
		}
		progressed = true
		if si.cursor == before {
			si.cursor++
		}
	}
	return progressed, nil
}

func (si *SequenceInstance) String() string {
	if si.definition == nil {
		return "<unbound>"
	}
	return fmt.Sprintf("%s(%d/%d)[%d]", si.definition.Name(), si.cursor, len(si.steps), si.index)
}

package session

// Scenario is the static definition a session executes: its sequences with
// precomputed bitset offsets, the sequences spawned at session start, and the
// names of the variables every session must declare up front.
type Scenario struct {
	sequences      []*Sequence
	initial        []*Sequence
	byName         map[string]*Sequence
	sumConcurrency int
	objectVars     []string
	intVars        []string
}

// NewScenario creates an empty scenario declaring the given variables.
func NewScenario(objectVars, intVars []string) *Scenario {
	return &Scenario{
		byName:     make(map[string]*Sequence),
		objectVars: objectVars,
		intVars:    intVars,
	}
}

// AddSequence appends a sequence definition. Offsets accumulate so that each
// sequence owns max(1, concurrency) bits in the session's used bitset.
func (sc *Scenario) AddSequence(name string, concurrency int, steps []Step) *Sequence {
	seq := &Sequence{
		name:        name,
		id:          len(sc.sequences),
		offset:      sc.sumConcurrency,
		concurrency: concurrency,
		steps:       steps,
	}
	sc.sequences = append(sc.sequences, seq)
	sc.byName[name] = seq
	slots := concurrency
	if slots == 0 {
		slots = 1
	}
	sc.sumConcurrency += slots
	return seq
}

// MarkInitial marks a sequence to be spawned when the session starts.
func (sc *Scenario) MarkInitial(seq *Sequence) {
	sc.initial = append(sc.initial, seq)
}

// Sequence looks up a sequence by name, nil when absent.
func (sc *Scenario) Sequence(name string) *Sequence {
	return sc.byName[name]
}

func (sc *Scenario) Sequences() []*Sequence { return sc.sequences }

func (sc *Scenario) InitialSequences() []*Sequence { return sc.initial }

// MaxSequences is the statically computed maximum number of simultaneously
// live sequence instances, which sizes the instance pool and running table.
func (sc *Scenario) MaxSequences() int { return sc.sumConcurrency }

// SumConcurrency sizes the used bitset: one bit per (sequence, index) pair.
func (sc *Scenario) SumConcurrency() int { return sc.sumConcurrency }

func (sc *Scenario) ObjectVars() []string { return sc.objectVars }

func (sc *Scenario) IntVars() []string { return sc.intVars }

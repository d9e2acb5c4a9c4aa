package session

// InstancePool is a fixed-capacity free list of sequence instances. All
// instances are preallocated at construction; Acquire never blocks and never
// grows the pool. The pool is owned by one session and mutated only on its
// executor, so it needs no locking.
type InstancePool struct {
	free     []*SequenceInstance
	capacity int
}

// NewInstancePool preallocates capacity instances.
func NewInstancePool(capacity int) *InstancePool {
	p := &InstancePool{
		free:     make([]*SequenceInstance, capacity),
		capacity: capacity,
	}
	for i := range p.free {
		p.free[i] = &SequenceInstance{}
	}
	return p
}

// Acquire returns a free instance, or nil when the pool is exhausted.
func (p *InstancePool) Acquire() *SequenceInstance {
	n := len(p.free)
	if n == 0 {
		return nil
	}
	instance := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	return instance
}

// Release returns an instance to the free list.
func (p *InstancePool) Release(instance *SequenceInstance) {
	p.free = append(p.free, instance)
}

// IsFull reports whether no instance is on loan. This must hold after every
// successful session reset.
func (p *InstancePool) IsFull() bool {
	return len(p.free) == p.capacity
}

// Capacity returns the fixed pool capacity.
func (p *InstancePool) Capacity() int {
	return p.capacity
}

// Available returns the number of free instances.
func (p *InstancePool) Available() int {
	return len(p.free)
}

package session

// ResourceKey identifies a declared resource. Steps typically use a private
// pointer or string so keys cannot collide across packages.
type ResourceKey any

// Resource is opaque per-sequence state declared once during reservation and
// reused across runs. OnSessionReset is invoked on every full session reset.
type Resource interface {
	OnSessionReset(s *Session)
}

// DeclareResource declares a resource under key. Redeclaring an existing key
// is a no-op. Unless singleton, a sequence with a non-zero concurrency factor
// gets one resource per concurrency slot; GetResource then indexes the array
// by the executing instance's index.
func (s *Session) DeclareResource(key ResourceKey, supplier func() Resource, singleton bool) {
	if _, ok := s.resources[key]; ok {
		return
	}
	// Current sequence should be nil only during unit testing.
	concurrency := 0
	if s.currentSequence != nil {
		concurrency = s.currentSequence.Definition().Concurrency()
	}
	if !singleton && concurrency > 0 {
		array := make([]Resource, concurrency)
		for i := 0; i < concurrency; i++ {
			r := supplier()
			array[i] = r
			s.allResources = append(s.allResources, r)
		}
		s.resources[key] = array
	} else {
		r := supplier()
		s.resources[key] = r
		s.allResources = append(s.allResources, r)
	}
}

// DeclareSingletonResource declares an already-built resource under key.
// Redeclaring an existing key is a no-op.
func (s *Session) DeclareSingletonResource(key ResourceKey, r Resource) {
	if _, ok := s.resources[key]; ok {
		return
	}
	s.resources[key] = r
	s.allResources = append(s.allResources, r)
}

// GetResource returns the resource declared under key, or the array entry at
// the currently executing sequence instance's concurrency index. Returns nil
// for an undeclared key.
func (s *Session) GetResource(key ResourceKey) Resource {
	res, ok := s.resources[key]
	if !ok {
		return nil
	}
	if array, ok := res.([]Resource); ok {
		return array[s.currentSequence.Index()]
	}
	return res.(Resource)
}

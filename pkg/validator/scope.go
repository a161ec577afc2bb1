package validator

// ScopeSet tracks the variables guaranteed defined at a point in execution.
// Sequences and loop bodies thread one scope forward; branch arms and
// parallel branches work on explicit clones so sibling definitions never
// leak sideways.
type ScopeSet map[string]struct{}

// NewScope returns an empty scope.
func NewScope() ScopeSet {
	return make(ScopeSet)
}

// Add marks a variable as defined.
func (s ScopeSet) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether a variable is defined.
func (s ScopeSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Clone returns an independent copy of the scope.
func (s ScopeSet) Clone() ScopeSet {
	c := make(ScopeSet, len(s))
	for name := range s {
		c[name] = struct{}{}
	}
	return c
}

// Union folds every variable of other into s.
func (s ScopeSet) Union(other ScopeSet) {
	for name := range other {
		s[name] = struct{}{}
	}
}

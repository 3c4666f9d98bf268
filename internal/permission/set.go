package permission

import "sort"

// Set is an unordered collection of actions. The zero value is usable.
type Set map[Action]struct{}

// NewSet builds a set from the given actions.
func NewSet(actions ...Action) Set {
	s := make(Set, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// Add inserts an action.
func (s Set) Add(a Action) { s[a] = struct{}{} }

// Has reports membership of a single action.
func (s Set) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// HasAny reports whether at least one of the actions is present. Empty input
// is vacuously true.
func (s Set) HasAny(actions ...Action) bool {
	if len(actions) == 0 {
		return true
	}
	for _, a := range actions {
		if s.Has(a) {
			return true
		}
	}
	return false
}

// HasAll reports whether every action is present.
func (s Set) HasAll(actions ...Action) bool {
	for _, a := range actions {
		if !s.Has(a) {
			return false
		}
	}
	return true
}

// Union merges another set into a copy of this one.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for a := range s {
		out[a] = struct{}{}
	}
	for a := range other {
		out[a] = struct{}{}
	}
	return out
}

// List returns the actions sorted by their string value.
func (s Set) List() []Action {
	out := make([]Action, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

package values

import "sort"

// TypeSet is an insertion-ordered set of distinct values. The zero value and
// nil are both usable as empty sets for reading.
type TypeSet struct {
	vals []Value
	idx  map[uint64]struct{}
}

func NewTypeSet(vs ...Value) *TypeSet {
	s := &TypeSet{}
	for _, v := range vs {
		s.Add(v)
	}
	return s
}

// UnknownSet returns a fresh set holding only Unknown.
func UnknownSet() *TypeSet {
	return NewTypeSet(Unknown)
}

// Add inserts v. Unknown is kept only while the set has nothing else in it.
func (s *TypeSet) Add(v Value) bool {
	if v == nil {
		return false
	}
	if s.idx == nil {
		s.idx = make(map[uint64]struct{})
	}
	if IsUnknown(v) {
		if len(s.vals) > 0 {
			return false
		}
	} else if len(s.vals) == 1 && IsUnknown(s.vals[0]) {
		s.vals = s.vals[:0]
		delete(s.idx, Unknown.ID())
	}
	if _, ok := s.idx[v.ID()]; ok {
		return false
	}
	s.idx[v.ID()] = struct{}{}
	s.vals = append(s.vals, v)
	return true
}

// Union adds every value of o and reports whether s grew.
func (s *TypeSet) Union(o *TypeSet) bool {
	return s.UnionLimited(o, 0)
}

// UnionLimited is Union that stops adding once s holds max values; max <= 0
// means no limit.
func (s *TypeSet) UnionLimited(o *TypeSet, max int) bool {
	if o == nil {
		return false
	}
	changed := false
	for _, v := range o.vals {
		if max > 0 && len(s.vals) >= max && !IsUnknown(v) {
			break
		}
		if s.Add(v) {
			changed = true
		}
	}
	return changed
}

func (s *TypeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.vals)
}

func (s *TypeSet) IsEmpty() bool { return s.Len() == 0 }

// IsUnknown reports whether the set carries no information.
func (s *TypeSet) IsUnknown() bool {
	return s.Len() == 0 || (len(s.vals) == 1 && IsUnknown(s.vals[0]))
}

// Values returns a copy of the members in insertion order.
func (s *TypeSet) Values() []Value {
	if s == nil {
		return nil
	}
	out := make([]Value, len(s.vals))
	copy(out, s.vals)
	return out
}

func (s *TypeSet) Contains(v Value) bool {
	if s == nil || v == nil {
		return false
	}
	_, ok := s.idx[v.ID()]
	return ok
}

// Equal compares membership, ignoring order.
func (s *TypeSet) Equal(o *TypeSet) bool {
	if s.Len() != o.Len() {
		return false
	}
	if s == nil {
		return true
	}
	for _, v := range s.vals {
		if !o.Contains(v) {
			return false
		}
	}
	return true
}

func (s *TypeSet) Clone() *TypeSet {
	c := &TypeSet{}
	if s != nil {
		c.Union(s)
	}
	return c
}

// OrUnknown returns s, or a set with Unknown when s is empty.
func (s *TypeSet) OrUnknown() *TypeSet {
	if s.Len() == 0 {
		return UnknownSet()
	}
	return s
}

// Sorted returns the members ordered by short description, for stable output.
func (s *TypeSet) Sorted() []Value {
	out := s.Values()
	sort.SliceStable(out, func(i, j int) bool {
		return ShortDescription(out[i]) < ShortDescription(out[j])
	})
	return out
}

// Filter returns the values for which keep returns true.
func (s *TypeSet) Filter(keep func(Value) bool) *TypeSet {
	out := &TypeSet{}
	if s == nil {
		return out
	}
	for _, v := range s.vals {
		if keep(v) {
			out.Add(v)
		}
	}
	return out
}

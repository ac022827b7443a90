package prune

import (
	"fmt"

	"github.com/emirpasic/gods/sets/treeset"
)

// IndexSet is a mutable, ordered set of output-channel indices.
//
// Parametrizations hold it by pointer; paired layers hold the same pointer, so a
// change made through one is seen by the other.
type IndexSet struct {
	set *treeset.Set
}

// NewIndexSet returns a set holding indices.
func NewIndexSet(indices ...int) *IndexSet {
	s := &IndexSet{set: treeset.NewWithIntComparator()}
	s.Add(indices...)
	return s
}

// Add inserts indices.
func (s *IndexSet) Add(indices ...int) {
	for _, i := range indices {
		s.set.Add(i)
	}
}

// Remove deletes indices.
func (s *IndexSet) Remove(indices ...int) {
	for _, i := range indices {
		s.set.Remove(i)
	}
}

// Has reports whether i is in the set.
func (s *IndexSet) Has(i int) bool {
	return s.set.Contains(i)
}

// Len returns the number of indices.
func (s *IndexSet) Len() int {
	return s.set.Size()
}

// Clear removes every index.
func (s *IndexSet) Clear() {
	s.set.Clear()
}

// Slice returns the indices in ascending order.
func (s *IndexSet) Slice() []int {
	values := s.set.Values()
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = v.(int)
	}
	return out
}

// Complement returns the indices in [0, n) that are not in the set, ascending.
func (s *IndexSet) Complement(n int) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !s.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

// Equal reports whether both sets hold the same indices.
func (s *IndexSet) Equal(other *IndexSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, i := range s.Slice() {
		if !other.Has(i) {
			return false
		}
	}
	return true
}

// String returns e.g. "[1 4]".
func (s *IndexSet) String() string {
	return fmt.Sprint(s.Slice())
}

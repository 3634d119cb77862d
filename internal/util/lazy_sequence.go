package util

import "sync"

// NextFunc pulls the next value from an underlying sequence. ok is
// false once the sequence is exhausted; a NextFunc must not be called
// again after returning ok=false.
type NextFunc func() (value interface{}, ok bool)

// LazySequence is a memoized view over an iterator: random access via
// Get(i) pulls only as many values as needed and caches them under a
// mutex so concurrent callers share one underlying pull. Len forces the
// sequence to drain completely — calling it on an unbounded iterator
// never returns.
type LazySequence struct {
	mu    sync.Mutex
	next  NextFunc
	done  bool
	cache []interface{}
}

// NewLazySequence wraps next in a memoized, randomly-accessible sequence.
func NewLazySequence(next NextFunc) *LazySequence {
	return &LazySequence{next: next}
}

// cacheTo ensures the cache holds at least target+1 elements (or is
// fully drained, if target < 0), returning the resulting cache length.
func (s *LazySequence) cacheTo(target int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.done && (target < 0 || len(s.cache) <= target) {
		v, ok := s.next()
		if !ok {
			s.done = true
			break
		}
		s.cache = append(s.cache, v)
	}
	return len(s.cache)
}

// Get returns the i-th element, pulling from the underlying iterator as
// needed. ok is false if i is out of range.
func (s *LazySequence) Get(i int) (value interface{}, ok bool) {
	available := s.cacheTo(i)
	if i < 0 || i >= available {
		return nil, false
	}
	s.mu.Lock()
	v := s.cache[i]
	s.mu.Unlock()
	return v, true
}

// Len forces the underlying iterator to exhaustion and returns the
// total element count.
func (s *LazySequence) Len() int {
	return s.cacheTo(-1)
}

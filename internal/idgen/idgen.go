// Package idgen allocates unique integer identifiers for scope contexts.
package idgen

import "sync/atomic"

// Provider hands out identifiers that are unique and monotonic within a
// process.
type Provider interface {
	NextID() int
}

// Sequence is the default Provider, backed by an atomic counter. The zero
// value is ready to use; the first id it returns is 1.
type Sequence struct {
	n atomic.Int64
}

// NewSequence returns a fresh Sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NextID returns the next identifier in the sequence.
func (s *Sequence) NextID() int {
	return int(s.n.Add(1))
}

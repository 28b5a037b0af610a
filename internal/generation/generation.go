// Package generation issues supersession tokens for async work.
//
// A caller takes a token before suspending (network I/O, timers) and checks it
// after resuming; if another token was issued or the counter was invalidated in
// between, the result belongs to a superseded operation and must be dropped
// without touching shared state.
package generation

import "sync/atomic"

// Token identifies one generation of an operation.
type Token uint64

// Counter is safe for concurrent use. The zero value is ready to use.
type Counter struct {
	n atomic.Uint64
}

// Next starts a new generation and returns its token. Every token issued
// before it stops being current.
func (c *Counter) Next() Token {
	return Token(c.n.Add(1))
}

// Invalidate supersedes any in-flight token without starting new work.
func (c *Counter) Invalidate() {
	c.n.Add(1)
}

// Current reports whether t is still the latest generation.
func (c *Counter) Current(t Token) bool {
	return Token(c.n.Load()) == t
}

// Peek returns the latest generation without advancing it.
func (c *Counter) Peek() Token {
	return Token(c.n.Load())
}

package audio

import (
	"bufio"
	"io"
	"sync"
)

// LineGestures treats every line read from r as a user gesture. Pending
// callbacks fire once on the next line.
type LineGestures struct {
	mu      sync.Mutex
	pending []func()
}

func NewLineGestures(r io.Reader) *LineGestures {
	g := &LineGestures{}
	go g.read(r)
	return g
}

func (g *LineGestures) read(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		g.Fire()
	}
}

func (g *LineGestures) OnceUserGesture(fn func()) {
	g.mu.Lock()
	g.pending = append(g.pending, fn)
	g.mu.Unlock()
}

// Fire runs and clears every pending callback.
func (g *LineGestures) Fire() {
	g.mu.Lock()
	fns := g.pending
	g.pending = nil
	g.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

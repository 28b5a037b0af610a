package audio

import (
	"context"
	"sync"
	"time"
)

// SimTrack is a Track with no audio output. It tracks position against the
// wall clock and fires its ended callback after Length of playback, which is
// enough to drive the scheduler from a headless client.
type SimTrack struct {
	Length time.Duration

	mu      sync.Mutex
	src     string
	volume  float64
	paused  bool
	pos     time.Duration
	started time.Time
	timer   *time.Timer
	run     int
	ended   func()
}

func NewSimTrack(length time.Duration) *SimTrack {
	return &SimTrack{Length: length, paused: true, volume: 1}
}

func (t *SimTrack) SetSource(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.src = url
	t.pos = 0
}

func (t *SimTrack) Source() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.src
}

func (t *SimTrack) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.paused {
		return nil
	}
	t.paused = false
	t.armLocked(t.Length - t.pos)
	return nil
}

func (t *SimTrack) armLocked(remaining time.Duration) {
	if remaining < 0 {
		remaining = 0
	}
	t.run++
	run := t.run
	t.started = time.Now()
	t.timer = time.AfterFunc(remaining, func() { t.finish(run) })
}

func (t *SimTrack) finish(run int) {
	t.mu.Lock()
	if t.paused || run != t.run {
		t.mu.Unlock()
		return
	}
	t.paused = true
	t.pos = t.Length
	fn := t.ended
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (t *SimTrack) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *SimTrack) stopLocked() {
	if t.paused {
		return
	}
	t.paused = true
	t.pos += time.Since(t.started)
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *SimTrack) Rewind() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pos = 0
	if !t.paused {
		t.timer.Stop()
		t.armLocked(t.Length)
	}
}

func (t *SimTrack) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

func (t *SimTrack) Volume() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

func (t *SimTrack) SetVolume(v float64) {
	t.mu.Lock()
	t.volume = v
	t.mu.Unlock()
}

func (t *SimTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.ended = fn
	t.mu.Unlock()
}

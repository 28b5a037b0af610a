// Package audio schedules background music over two track slots: a switch
// loads the idle slot and crossfades into it, map music is drawn from a
// shuffle bag, and a newer switch always supersedes an older one.
package audio

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"cultivationworld.ai/internal/generation"
)

// ErrAutoplayBlocked is returned by Track.Play when playback needs a user
// gesture first.
var ErrAutoplayBlocked = errors.New("audio: autoplay blocked")

type Kind string

const (
	KindNone   Kind = ""
	KindSplash Kind = "splash"
	KindMap    Kind = "map"
)

// Track is one playable audio handle. The scheduler serializes all calls
// except Play, which may block until playback starts.
type Track interface {
	SetSource(url string)
	Play(ctx context.Context) error
	Pause()
	Rewind()
	Paused() bool
	Volume() float64
	SetVolume(v float64)
	// OnEnded registers the callback fired when playback reaches the end.
	OnEnded(fn func())
}

// VolumeSource is the live music volume setting.
type VolumeSource interface {
	BGMVolume() float64
	OnBGMVolumeChange(fn func(float64)) (unsubscribe func())
}

// Gestures delivers the next user interaction once.
type Gestures interface {
	OnceUserGesture(fn func())
}

type Playlist struct {
	Splash []string
	Map    []string
}

var DefaultPlaylist = Playlist{
	Splash: []string{"Eastminster.mp3"},
	Map: []string{
		"Healing.mp3",
		"Ishikari_20Lore.mp3",
		"PerituneMaterial_Sakuya2.mp3",
		"PerituneMaterial_Wuxia2_Guzheng_Pipa.mp3",
	},
}

const (
	DefaultBaseURL       = "/bgm/"
	DefaultFade          = 2 * time.Second
	DefaultStopFade      = time.Second
	DefaultFrameInterval = 16 * time.Millisecond
)

type Options struct {
	Playlist      Playlist
	BaseURL       string
	Fade          time.Duration
	StopFade      time.Duration
	FrameInterval time.Duration

	// NewTrack builds a track handle; it is called twice by Init.
	NewTrack func() Track
	Volume   VolumeSource
	Gestures Gestures
	Logger   *log.Logger
	// Rand drives the shuffle; nil uses a randomly seeded source.
	Rand *rand.Rand
}

type Scheduler struct {
	opts Options
	log  *log.Logger
	rng  *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	initialized bool
	tracks      [2]Track
	// owner[i] is the switch that last loaded slot i; fading[i] is the
	// switch currently animating it, zero when none.
	owner       [2]generation.Token
	fading      [2]generation.Token
	active      int
	kind        Kind
	bag         []string
	unsubscribe func()

	switches generation.Counter
}

func NewScheduler(opts Options) *Scheduler {
	if opts.Playlist.Splash == nil && opts.Playlist.Map == nil {
		opts.Playlist = DefaultPlaylist
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Fade <= 0 {
		opts.Fade = DefaultFade
	}
	if opts.StopFade <= 0 {
		opts.StopFade = DefaultStopFade
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{opts: opts, log: logger, rng: rng, ctx: ctx, cancel: cancel}
}

// Init builds the two track slots and follows the volume setting. Calling
// it again does nothing.
func (s *Scheduler) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return
	}
	for i := range s.tracks {
		t := s.opts.NewTrack()
		t.OnEnded(func() {
			s.spawn(func() { s.onTrackEnded(i) })
		})
		s.tracks[i] = t
	}
	s.unsubscribe = s.opts.Volume.OnBGMVolumeChange(s.updateVolume)
	s.setIdleVolumesLocked(s.opts.Volume.BGMVolume())
	s.initialized = true
}

// Close stops all animations and playback and detaches from the volume
// setting.
func (s *Scheduler) Close() {
	s.cancel()
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	for _, t := range s.tracks {
		t.Pause()
	}
}

func (s *Scheduler) spawn(fn func()) {
	if s.ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Scheduler) updateVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setIdleVolumesLocked(v)
}

// Slots being animated are left to the animation.
func (s *Scheduler) setIdleVolumesLocked(v float64) {
	for i, t := range s.tracks {
		if s.fading[i] == 0 {
			t.SetVolume(v)
		}
	}
}

// Kind returns the logical music type currently selected.
func (s *Scheduler) Kind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// ActiveTrack returns the slot index holding the current music.
func (s *Scheduler) ActiveTrack() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Play switches to kind. Asking for the kind already playing does nothing;
// KindNone stops playback.
func (s *Scheduler) Play(ctx context.Context, kind Kind) error {
	s.Init()
	if kind == KindNone {
		s.Stop()
		return nil
	}
	s.mu.Lock()
	if s.kind == kind {
		s.mu.Unlock()
		return nil
	}
	s.kind = kind
	song, ok := s.nextSongLocked(kind)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.switchTrack(ctx, song, true)
}

// PlayNextRandom advances to another map song. It does nothing unless map
// music is selected.
func (s *Scheduler) PlayNextRandom(ctx context.Context, crossfadeOutgoing bool) error {
	s.mu.Lock()
	if s.kind != KindMap {
		s.mu.Unlock()
		return nil
	}
	song, ok := s.nextSongLocked(KindMap)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.switchTrack(ctx, song, crossfadeOutgoing)
}

func (s *Scheduler) nextSongLocked(kind Kind) (string, bool) {
	if kind == KindSplash {
		if len(s.opts.Playlist.Splash) == 0 {
			return "", false
		}
		return s.opts.Playlist.Splash[0], true
	}
	if len(s.bag) == 0 {
		s.refillBagLocked()
	}
	if len(s.bag) == 0 {
		return "", false
	}
	song := s.bag[len(s.bag)-1]
	s.bag = s.bag[:len(s.bag)-1]
	return song, true
}

// Fisher-Yates over a fresh copy of the map playlist.
func (s *Scheduler) refillBagLocked() {
	s.bag = append(s.bag[:0], s.opts.Playlist.Map...)
	for i := len(s.bag) - 1; i > 0; i-- {
		j := s.rng.IntN(i + 1)
		s.bag[i], s.bag[j] = s.bag[j], s.bag[i]
	}
}

func (s *Scheduler) switchTrack(ctx context.Context, song string, crossfadeOutgoing bool) error {
	s.mu.Lock()
	next := (s.active + 1) % 2
	prev := s.active
	in, out := s.tracks[next], s.tracks[prev]
	in.SetSource(s.opts.BaseURL + song)
	in.SetVolume(0)
	tok := s.switches.Next()
	s.owner[next] = tok
	// Hold the slot at zero until the crossfade takes over.
	s.fading[next] = tok
	s.mu.Unlock()

	err := in.Play(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.releaseLocked(next, tok)
		s.log.Printf("WARN track switch to %s: %v", song, err)
		if !s.switches.Current(tok) {
			return nil
		}
		if errors.Is(err, ErrAutoplayBlocked) {
			out.Pause()
			s.awaitGestureLocked(song, crossfadeOutgoing)
			return nil
		}
		return err
	}
	if !s.switches.Current(tok) {
		s.releaseLocked(next, tok)
		// Leave the slot alone if a newer switch has already reloaded it.
		if s.owner[next] == tok {
			in.Pause()
		}
		return nil
	}
	s.active = next
	s.crossfadeLocked(next, prev, crossfadeOutgoing, tok)
	return nil
}

func (s *Scheduler) awaitGestureLocked(song string, crossfadeOutgoing bool) {
	if s.opts.Gestures == nil {
		s.log.Printf("autoplay blocked and no gesture source; %s stays silent", song)
		return
	}
	s.log.Printf("waiting for user interaction to resume audio")
	s.opts.Gestures.OnceUserGesture(func() {
		s.spawn(func() {
			if err := s.switchTrack(s.ctx, song, crossfadeOutgoing); err != nil {
				s.log.Printf("resume audio: %v", err)
			}
		})
	})
}

func (s *Scheduler) crossfadeLocked(in, out int, fadeOut bool, tok generation.Token) {
	s.fading[in] = tok
	if fadeOut {
		s.fading[out] = tok
	}
	fadeIn, fadeOutTrack := s.tracks[in], s.tracks[out]
	s.spawn(func() {
		s.animate(s.opts.Fade, func(progress float64) bool {
			if !s.switches.Current(tok) {
				s.releaseLocked(in, tok)
				if fadeOut {
					s.releaseLocked(out, tok)
				}
				return true
			}
			target := s.opts.Volume.BGMVolume()
			fadeIn.SetVolume(progress * target)
			if fadeOut && !fadeOutTrack.Paused() {
				fadeOutTrack.SetVolume(max(0, (1-progress)*target))
			}
			if progress < 1 {
				return false
			}
			s.releaseLocked(in, tok)
			if fadeOut {
				s.releaseLocked(out, tok)
				fadeOutTrack.Pause()
				fadeOutTrack.Rewind()
			}
			// Pin to the live setting, not the value seen at fade start.
			fadeIn.SetVolume(s.opts.Volume.BGMVolume())
			return true
		})
	})
}

func (s *Scheduler) releaseLocked(slot int, tok generation.Token) {
	if s.fading[slot] == tok {
		s.fading[slot] = 0
	}
}

// animate calls step once per frame with the elapsed fraction of d, holding
// the scheduler lock, until step returns true or the scheduler closes.
func (s *Scheduler) animate(d time.Duration, step func(progress float64) bool) {
	start := time.Now()
	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		progress := min(float64(time.Since(start))/float64(d), 1)
		s.mu.Lock()
		done := step(progress)
		s.mu.Unlock()
		if done {
			return
		}
	}
}

// Stop supersedes any switch in progress and fades every playing track out,
// then pauses and rewinds it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return
	}
	s.kind = KindNone
	tok := s.switches.Next()
	for i, t := range s.tracks {
		if t.Paused() {
			continue
		}
		startVol := t.Volume()
		s.fading[i] = tok
		s.spawn(func() {
			s.animate(s.opts.StopFade, func(progress float64) bool {
				if !s.switches.Current(tok) {
					s.releaseLocked(i, tok)
					return true
				}
				t.SetVolume(max(0, startVol*(1-progress)))
				if progress < 1 {
					return false
				}
				t.Pause()
				t.Rewind()
				s.releaseLocked(i, tok)
				return true
			})
		})
	}
}

func (s *Scheduler) onTrackEnded(slot int) {
	s.mu.Lock()
	if slot != s.active {
		s.mu.Unlock()
		return
	}
	kind := s.kind
	t := s.tracks[slot]
	s.mu.Unlock()

	switch kind {
	case KindMap:
		// The finished track has nothing left to fade.
		if err := s.PlayNextRandom(s.ctx, false); err != nil {
			s.log.Printf("WARN next track: %v", err)
		}
	case KindSplash:
		s.mu.Lock()
		t.Rewind()
		s.mu.Unlock()
		if err := t.Play(s.ctx); err != nil {
			s.log.Printf("WARN replay: %v", err)
		}
	}
}

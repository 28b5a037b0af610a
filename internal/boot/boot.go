// Package boot polls the backend's initialization status and brings the
// client up as the backend progresses: prefetching the map and avatars during
// the later phases, then connecting and loading the world once it is ready.
package boot

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"cultivationworld.ai/internal/protocol"
)

const DefaultInterval = time.Second

// Backend phases after which the map can be prefetched.
var MapReadyPhases = []string{
	"initializing_sects",
	"generating_avatars",
	"checking_llm",
	"generating_initial_events",
}

// Backend phases after which the avatars can be prefetched.
var AvatarReadyPhases = []string{
	"checking_llm",
	"generating_initial_events",
}

type World interface {
	Reset()
	Initialize(ctx context.Context)
	PreloadMap(ctx context.Context) error
	PreloadAvatars(ctx context.Context)
}

type System interface {
	Status() (protocol.InitStatus, bool)
	FetchInitStatus(ctx context.Context) (protocol.InitStatus, bool)
	Initialized() bool
	SetInitialized(v bool)
}

type Socket interface {
	Connected() bool
	Connect()
}

type Spawner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type Options struct {
	Interval time.Duration
	// OnIdle runs when the backend enters the idle state.
	OnIdle func()
	// OnReady runs after the world has been initialized.
	OnReady func(ctx context.Context)
	Logger  *log.Logger
}

type Poller struct {
	world  World
	system System
	socket Socket
	tasks  Spawner
	opts   Options
	log    *log.Logger

	mu               sync.Mutex
	mapPreloaded     bool
	avatarsPreloaded bool
}

func NewPoller(world World, system System, socket Socket, tasks Spawner, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{world: world, system: system, socket: socket, tasks: tasks, opts: opts, log: logger}
}

// Run polls immediately and then every interval until ctx is done. Polling
// continues after the game is ready so a later reset is noticed.
func (p *Poller) Run(ctx context.Context) {
	p.Poll(ctx)
	t := time.NewTicker(p.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Poll(ctx)
		}
	}
}

// Poll performs one status check and reacts to it.
func (p *Poller) Poll(ctx context.Context) {
	prev, _ := p.system.Status()
	st, ok := p.system.FetchInitStatus(ctx)
	if !ok {
		return
	}

	if st.Status == protocol.StatusIdle {
		if prev.Status != protocol.StatusIdle && p.opts.OnIdle != nil {
			p.opts.OnIdle()
		}
		if p.system.Initialized() {
			p.system.SetInitialized(false)
			p.world.Reset()
		}
		p.mu.Lock()
		p.mapPreloaded = false
		p.avatarsPreloaded = false
		p.mu.Unlock()
	}

	p.mu.Lock()
	preloadMap := !p.mapPreloaded && slices.Contains(MapReadyPhases, st.PhaseName)
	if preloadMap {
		p.mapPreloaded = true
	}
	preloadAvatars := !p.avatarsPreloaded && slices.Contains(AvatarReadyPhases, st.PhaseName)
	if preloadAvatars {
		p.avatarsPreloaded = true
	}
	p.mu.Unlock()

	if preloadMap {
		p.tasks.Go("preload map", p.world.PreloadMap)
	}
	if preloadAvatars {
		p.tasks.Go("preload avatars", func(ctx context.Context) error {
			p.world.PreloadAvatars(ctx)
			return nil
		})
	}

	if prev.Status != protocol.StatusReady && st.Status == protocol.StatusReady {
		p.initializeGame(ctx)
	}
}

func (p *Poller) initializeGame(ctx context.Context) {
	if p.system.Initialized() {
		// A reloaded save: start over from a clean world.
		p.world.Reset()
	}
	if !p.socket.Connected() {
		p.socket.Connect()
	}
	p.world.Initialize(ctx)
	p.system.SetInitialized(true)
	p.log.Printf("game initialized")
	if p.opts.OnReady != nil {
		p.opts.OnReady(ctx)
	}
}

// Preloaded reports which prefetches have been started since the last idle.
func (p *Poller) Preloaded() (mapStarted, avatarsStarted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapPreloaded, p.avatarsPreloaded
}

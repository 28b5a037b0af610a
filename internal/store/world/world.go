// Package world is the aggregate store: simulation time, the current
// phenomenon and open domains, plus the avatar, map and event sub-stores it
// drives from snapshots and ticks.
package world

import (
	"context"
	"fmt"
	"log"
	"sync"

	"cultivationworld.ai/internal/generation"
	"cultivationworld.ai/internal/protocol"
	"cultivationworld.ai/internal/store/avatar"
	"cultivationworld.ai/internal/store/event"
	"cultivationworld.ai/internal/store/mapstore"
)

// API is the slice of the backend the aggregate talks to.
type API interface {
	FetchInitialState(ctx context.Context) (protocol.InitialState, error)
	FetchPhenomena(ctx context.Context) ([]protocol.Phenomenon, error)
	SetPhenomenon(ctx context.Context, id int) error
	FetchRankings(ctx context.Context) (protocol.Rankings, error)
}

type Store struct {
	api API
	log *log.Logger

	maps    *mapstore.Store
	avatars *avatar.Store
	events  *event.Store

	// tickMu makes a tick, a snapshot and a reset mutually exclusive, so
	// sub-store updates never outlive the loaded check that allowed them.
	tickMu sync.Mutex

	mu        sync.Mutex
	year      int
	month     int
	current   *protocol.Phenomenon
	phenomena []protocol.Phenomenon
	domains   []protocol.Domain
	loaded    bool

	fetches generation.Counter

	// afterTickGate runs once a tick has passed the loaded check; tests only.
	afterTickGate func()
}

func New(api API, maps *mapstore.Store, avatars *avatar.Store, events *event.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		api:     api,
		log:     logger,
		maps:    maps,
		avatars: avatars,
		events:  events,
		domains: []protocol.Domain{},
	}
}

func (s *Store) Maps() *mapstore.Store      { return s.maps }
func (s *Store) AvatarStore() *avatar.Store { return s.avatars }
func (s *Store) EventStore() *event.Store   { return s.events }

// HandleTick applies a live tick. Ticks are ignored until a snapshot has
// been applied.
func (s *Store) HandleTick(t protocol.TickMsg) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return
	}
	s.year, s.month = t.Year, t.Month
	if t.Phenomenon.Present {
		s.current = t.Phenomenon.Value
	}
	// Domains only live for one tick: absence clears them.
	if t.ActiveDomains != nil {
		s.domains = t.ActiveDomains
	} else {
		s.domains = []protocol.Domain{}
	}
	year, month := s.year, s.month
	s.mu.Unlock()

	if s.afterTickGate != nil {
		s.afterTickGate()
	}

	if len(t.Avatars) > 0 {
		s.avatars.UpdateAvatars(t.Avatars)
	}
	if len(t.Events) > 0 {
		s.events.AddEvents(t.Events, year, month)
	}
}

// ApplySnapshot replaces time, avatars and phenomenon from a full state,
// clears the event timeline and marks the world loaded.
func (s *Store) ApplySnapshot(state protocol.InitialState) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.avatars.SetAvatarsFromState(state)
	s.events.Reset()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.year, s.month = state.Year, state.Month
	s.current = state.Phenomenon
	s.loaded = true
	s.domains = []protocol.Domain{}
}

// Initialize loads a snapshot, and the map when it is not loaded yet, then
// the first page of events. Failures are logged and leave the prior state.
func (s *Store) Initialize(ctx context.Context) {
	if err := s.initialize(ctx); err != nil {
		s.log.Printf("initialize: %v", err)
	}
}

func (s *Store) initialize(ctx context.Context) error {
	var (
		state    protocol.InitialState
		stateErr error
		mapErr   error
		wg       sync.WaitGroup
	)
	if !s.maps.Loaded() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mapErr = s.maps.PreloadMap(ctx)
		}()
	}
	state, stateErr = s.api.FetchInitialState(ctx)
	wg.Wait()
	if stateErr != nil {
		return fmt.Errorf("fetch state: %w", stateErr)
	}
	if mapErr != nil {
		return fmt.Errorf("fetch map: %w", mapErr)
	}
	s.ApplySnapshot(state)
	s.events.ResetEvents(ctx, protocol.EventFilter{})
	return nil
}

// FetchState re-applies a fresh snapshot. A response overtaken by a later
// call is dropped, including its error.
func (s *Store) FetchState(ctx context.Context) error {
	tok := s.fetches.Next()
	state, err := s.api.FetchInitialState(ctx)
	if !s.fetches.Current(tok) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch state: %w", err)
	}
	s.ApplySnapshot(state)
	return nil
}

// PreloadMap warms the map store. Errors are returned.
func (s *Store) PreloadMap(ctx context.Context) error {
	return s.maps.PreloadMap(ctx)
}

// PreloadAvatars warms the avatar store and adopts the snapshot's time.
// Errors are logged only.
func (s *Store) PreloadAvatars(ctx context.Context) {
	year, month, err := s.avatars.PreloadAvatars(ctx)
	if err != nil {
		s.log.Printf("WARN preload avatars: %v", err)
		return
	}
	s.mu.Lock()
	s.year, s.month = year, month
	s.mu.Unlock()
}

// Reset returns the aggregate and every sub-store to the initial state.
func (s *Store) Reset() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.fetches.Invalidate()
	s.mu.Lock()
	s.year, s.month = 0, 0
	s.current = nil
	s.domains = []protocol.Domain{}
	s.loaded = false
	s.mu.Unlock()

	s.avatars.Reset()
	s.events.Reset()
	s.maps.Reset()
}

// GetPhenomenaList returns the cached phenomena, fetching them on first use.
// A failed fetch yields an empty list.
func (s *Store) GetPhenomenaList(ctx context.Context) []protocol.Phenomenon {
	s.mu.Lock()
	cached := s.phenomena
	s.mu.Unlock()
	if len(cached) > 0 {
		return cached
	}
	list, err := s.api.FetchPhenomena(ctx)
	if err != nil {
		s.log.Printf("fetch phenomena: %v", err)
		return []protocol.Phenomenon{}
	}
	s.mu.Lock()
	s.phenomena = list
	s.mu.Unlock()
	return list
}

// ChangePhenomenon asks the backend to switch phenomenon. On success the
// matching cached entry becomes current; an id missing from the cache leaves
// the current phenomenon alone.
func (s *Store) ChangePhenomenon(ctx context.Context, id int) error {
	if err := s.api.SetPhenomenon(ctx, id); err != nil {
		return fmt.Errorf("set phenomenon %d: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.phenomena {
		if s.phenomena[i].ID == id {
			p := s.phenomena[i]
			s.current = &p
			break
		}
	}
	return nil
}

// FetchRankings loads the leaderboards with missing lists normalized to empty.
func (s *Store) FetchRankings(ctx context.Context) (protocol.Rankings, error) {
	r, err := s.api.FetchRankings(ctx)
	if err != nil {
		return protocol.Rankings{}, fmt.Errorf("fetch rankings: %w", err)
	}
	return NormalizeRankings(r), nil
}

func NormalizeRankings(r protocol.Rankings) protocol.Rankings {
	if r.Heaven == nil {
		r.Heaven = []protocol.RankingAvatar{}
	}
	if r.Earth == nil {
		r.Earth = []protocol.RankingAvatar{}
	}
	if r.Human == nil {
		r.Human = []protocol.RankingAvatar{}
	}
	if r.Sect == nil {
		r.Sect = []protocol.RankingSect{}
	}
	return r
}

func (s *Store) Time() (year, month int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.year, s.month
}

func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// CurrentPhenomenon returns nil when no phenomenon is active.
func (s *Store) CurrentPhenomenon() *protocol.Phenomenon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) ActiveDomains() []protocol.Domain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domains
}

func (s *Store) Avatars() map[string]protocol.AvatarSummary { return s.avatars.Avatars() }
func (s *Store) AvatarList() []protocol.AvatarSummary       { return s.avatars.List() }
func (s *Store) MapData() protocol.MapMatrix                { return s.maps.Data() }
func (s *Store) Regions() map[string]protocol.Region        { return s.maps.Regions() }
func (s *Store) FrontendConfig() protocol.FrontendConfig    { return s.maps.Config() }
func (s *Store) Events() []event.GameEvent                  { return s.events.Events() }
func (s *Store) EventsHasMore() bool                        { return s.events.HasMore() }
func (s *Store) EventsLoading() bool                        { return s.events.Loading() }
func (s *Store) EventsFilter() protocol.EventFilter         { return s.events.Filter() }

func (s *Store) LoadEvents(ctx context.Context, filter protocol.EventFilter, appendPage bool) {
	s.events.LoadEvents(ctx, filter, appendPage)
}

func (s *Store) LoadMoreEvents(ctx context.Context) { s.events.LoadMoreEvents(ctx) }

func (s *Store) ResetEvents(ctx context.Context, filter protocol.EventFilter) {
	s.events.ResetEvents(ctx, filter)
}

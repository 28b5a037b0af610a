package event

import (
	"context"
	"log"
	"sync"
	"time"

	"cultivationworld.ai/internal/generation"
	"cultivationworld.ai/internal/protocol"
)

const DefaultPageLimit = 100

// Fetcher loads one page of the events listing, newest first.
type Fetcher interface {
	FetchEvents(ctx context.Context, filter protocol.EventFilter, cursor string, limit int) (protocol.EventsPage, error)
}

type Store struct {
	api   Fetcher
	log   *log.Logger
	limit int

	mu      sync.Mutex
	events  []GameEvent
	cursor  *string
	hasMore bool
	loading bool
	filter  protocol.EventFilter

	lastMerge time.Duration
	lastLoad  time.Duration

	requests generation.Counter
}

func NewStore(api Fetcher, pageLimit int, logger *log.Logger) *Store {
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Store{api: api, log: logger, limit: pageLimit, events: []GameEvent{}}
}

// Events returns the timeline oldest-first. The slice is shared; callers
// must not modify it. A new slice is returned only after a change.
func (s *Store) Events() []GameEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Cursor returns the pagination cursor, if any.
func (s *Store) Cursor() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == nil {
		return "", false
	}
	return *s.cursor, true
}

func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) Filter() protocol.EventFilter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *Store) LastMergeDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMerge
}

func (s *Store) LastLoadDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLoad
}

// AddEvents merges a live batch into the timeline, keeping only events that
// pass the active filter. Nothing changes when no event survives.
func (s *Store) AddEvents(raw []protocol.EventDTO, currentYear, currentMonth int) {
	if len(raw) == 0 {
		return
	}
	start := time.Now()
	incoming := ProcessNewEvents(raw, currentYear, currentMonth)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := incoming[:0]
	for _, e := range incoming {
		if Matches(s.filter, e) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		return
	}
	s.events = MergeAndSortEvents(s.events, kept)
	s.lastMerge = time.Since(start)
}

// LoadEvents fetches one page. With appendPage the page holds older events
// and goes in front of the timeline; otherwise it replaces the timeline and
// filter becomes the active filter. A load already in flight makes this a
// no-op, and a response superseded by a later request is dropped entirely.
func (s *Store) LoadEvents(ctx context.Context, filter protocol.EventFilter, appendPage bool) {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return
	}
	tok := s.requests.Next()
	s.loading = true
	cursor := ""
	if appendPage && s.cursor != nil {
		cursor = *s.cursor
	}
	s.mu.Unlock()

	start := time.Now()
	page, err := s.api.FetchEvents(ctx, filter, cursor, s.limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requests.Current(tok) {
		return
	}
	s.loading = false
	if err != nil {
		s.log.Printf("load events: %v", err)
		return
	}

	older := TimelineFromPage(page.Events)
	if appendPage {
		merged := make([]GameEvent, 0, len(older)+len(s.events))
		merged = append(merged, older...)
		merged = append(merged, s.events...)
		s.events = merged
	} else {
		s.events = older
		s.filter = filter
	}
	s.cursor = page.NextCursor
	s.hasMore = page.HasMore
	s.lastLoad = time.Since(start)
}

// LoadMoreEvents pages further back under the active filter.
func (s *Store) LoadMoreEvents(ctx context.Context) {
	s.mu.Lock()
	if !s.hasMore || s.loading {
		s.mu.Unlock()
		return
	}
	filter := s.filter
	s.mu.Unlock()
	s.LoadEvents(ctx, filter, true)
}

// ResetEvents drops the timeline, adopts filter right away so live batches
// are filtered correctly during the reload, and loads the first page.
func (s *Store) ResetEvents(ctx context.Context, filter protocol.EventFilter) {
	s.mu.Lock()
	s.clearLocked()
	s.filter = filter
	s.mu.Unlock()
	s.LoadEvents(ctx, filter, false)
}

// Reset clears everything without loading.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.filter = protocol.EventFilter{}
}

func (s *Store) clearLocked() {
	s.requests.Invalidate()
	s.loading = false
	s.cursor = nil
	s.hasMore = false
	s.events = []GameEvent{}
}

// Package avatar holds the avatar set keyed by id. The map is copy-on-write:
// a new map is published only when an update changes something, so readers
// can detect changes by identity.
package avatar

import (
	"context"
	"sort"
	"sync"

	"cultivationworld.ai/internal/protocol"
)

type StateFetcher interface {
	FetchInitialState(ctx context.Context) (protocol.InitialState, error)
}

type Store struct {
	api StateFetcher

	mu      sync.Mutex
	avatars map[string]protocol.AvatarSummary
}

func NewStore(api StateFetcher) *Store {
	return &Store{api: api, avatars: map[string]protocol.AvatarSummary{}}
}

// Avatars returns the current map. Callers must not modify it.
func (s *Store) Avatars() map[string]protocol.AvatarSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avatars
}

// List returns the avatars ordered by id.
func (s *Store) List() []protocol.AvatarSummary {
	s.mu.Lock()
	m := s.avatars
	s.mu.Unlock()
	out := make([]protocol.AvatarSummary, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Get(id string) (protocol.AvatarSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.avatars[id]
	return a, ok
}

// UpdateAvatars applies tick patches. A patch without an id is ignored; a
// patch for an unknown id creates the avatar only when it carries a name.
// It reports whether anything changed.
func (s *Store) UpdateAvatars(patches []protocol.AvatarPatch) bool {
	if len(patches) == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var next map[string]protocol.AvatarSummary
	for _, p := range patches {
		if p.ID == "" {
			continue
		}
		cur, known := s.avatars[p.ID]
		if next != nil {
			cur, known = next[p.ID]
		}
		if !known && p.Name == nil {
			continue
		}
		if !known {
			cur = protocol.AvatarSummary{ID: p.ID}
		}
		upd := applyPatch(cur, p)
		if known && equal(cur, upd) {
			continue
		}
		if next == nil {
			next = make(map[string]protocol.AvatarSummary, len(s.avatars)+1)
			for k, v := range s.avatars {
				next[k] = v
			}
		}
		next[p.ID] = upd
	}
	if next == nil {
		return false
	}
	s.avatars = next
	return true
}

func applyPatch(a protocol.AvatarSummary, p protocol.AvatarPatch) protocol.AvatarSummary {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.X != nil {
		a.X = *p.X
	}
	if p.Y != nil {
		a.Y = *p.Y
	}
	if p.Action != nil {
		a.Action = *p.Action
	}
	if p.Gender != nil {
		a.Gender = *p.Gender
	}
	if p.PicID != nil {
		v := *p.PicID
		a.PicID = &v
	}
	if p.IsDead != nil {
		a.IsDead = *p.IsDead
	}
	return a
}

func equal(a, b protocol.AvatarSummary) bool {
	if (a.PicID == nil) != (b.PicID == nil) {
		return false
	}
	if a.PicID != nil && *a.PicID != *b.PicID {
		return false
	}
	a.PicID, b.PicID = nil, nil
	return a == b
}

// SetAvatarsFromState replaces the whole set from a snapshot.
func (s *Store) SetAvatarsFromState(state protocol.InitialState) {
	m := make(map[string]protocol.AvatarSummary, len(state.Avatars))
	for _, a := range state.Avatars {
		if a.ID == "" {
			continue
		}
		m[a.ID] = a
	}
	s.mu.Lock()
	s.avatars = m
	s.mu.Unlock()
}

// PreloadAvatars fetches a snapshot ahead of full initialization and returns
// its simulation time. Errors are returned to the caller.
func (s *Store) PreloadAvatars(ctx context.Context) (year, month int, err error) {
	state, err := s.api.FetchInitialState(ctx)
	if err != nil {
		return 0, 0, err
	}
	s.SetAvatarsFromState(state)
	return state.Year, state.Month, nil
}

func (s *Store) Reset() {
	s.mu.Lock()
	s.avatars = map[string]protocol.AvatarSummary{}
	s.mu.Unlock()
}

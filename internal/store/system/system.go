// Package system tracks backend initialization progress and the user's
// pause toggle.
package system

import (
	"context"
	"log"
	"sync"

	"cultivationworld.ai/internal/generation"
	"cultivationworld.ai/internal/protocol"
)

type API interface {
	FetchInitStatus(ctx context.Context) (protocol.InitStatus, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

type Store struct {
	api API
	log *log.Logger

	mu          sync.Mutex
	status      *protocol.InitStatus
	initialized bool
	paused      bool
	running     bool

	requests generation.Counter
}

func NewStore(api API, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	// The game starts paused until the user resumes it.
	return &Store{api: api, log: logger, paused: true}
}

// FetchInitStatus polls the backend. It returns false when the call failed
// or was overtaken by a later poll.
func (s *Store) FetchInitStatus(ctx context.Context) (protocol.InitStatus, bool) {
	tok := s.requests.Next()
	st, err := s.api.FetchInitStatus(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requests.Current(tok) {
		return protocol.InitStatus{}, false
	}
	if err != nil {
		s.log.Printf("fetch init status: %v", err)
		return protocol.InitStatus{}, false
	}
	s.status = &st
	s.running = st.Status == protocol.StatusReady
	return st, true
}

// Status returns the last accepted init status.
func (s *Store) Status() (protocol.InitStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return protocol.InitStatus{}, false
	}
	return *s.status, true
}

func (s *Store) SetInitialized(v bool) {
	s.mu.Lock()
	s.initialized = v
	s.mu.Unlock()
}

func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Store) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Store) ManualPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Loading reports whether the client is still waiting on the backend.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.status == nil:
		return true
	case s.status.Status == protocol.StatusIdle:
		return false
	case s.status.Status == protocol.StatusReady && s.initialized:
		return false
	}
	return true
}

func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status != nil && s.status.Status == protocol.StatusReady && s.initialized
}

// TogglePause flips the manual pause flag and tells the backend. The flag is
// rolled back when the call fails.
func (s *Store) TogglePause(ctx context.Context) {
	s.mu.Lock()
	want := !s.paused
	s.paused = want
	s.mu.Unlock()

	var err error
	if want {
		err = s.api.Pause(ctx)
	} else {
		err = s.api.Resume(ctx)
	}
	if err != nil {
		s.mu.Lock()
		s.paused = !want
		s.mu.Unlock()
		s.log.Printf("toggle pause: %v", err)
	}
}

// Pause and Resume only call the backend; the manual flag is left alone.
func (s *Store) Pause(ctx context.Context) {
	if err := s.api.Pause(ctx); err != nil {
		s.log.Printf("pause: %v", err)
	}
}

func (s *Store) Resume(ctx context.Context) {
	if err := s.api.Resume(ctx); err != nil {
		s.log.Printf("resume: %v", err)
	}
}

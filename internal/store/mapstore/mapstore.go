// Package mapstore caches the static world map: the tile matrix, the region
// index and the rendering hints sent alongside it.
package mapstore

import (
	"context"
	"log"
	"sync"

	"cultivationworld.ai/internal/protocol"
)

// Rendering hint defaults applied when the server omits them.
const (
	DefaultWaterSpeed = "high"
	DefaultCloudFreq  = "none"
)

type Fetcher interface {
	FetchMap(ctx context.Context) (protocol.MapResponse, error)
}

type Store struct {
	api Fetcher
	log *log.Logger

	mu      sync.RWMutex
	data    protocol.MapMatrix
	regions map[string]protocol.Region
	config  protocol.FrontendConfig
	loaded  bool
}

func NewStore(api Fetcher, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	s := &Store{api: api, log: logger}
	s.resetLocked()
	return s
}

// NormalizeConfig fills missing rendering hints with their defaults.
func NormalizeConfig(c *protocol.FrontendConfig) protocol.FrontendConfig {
	out := protocol.FrontendConfig{WaterSpeed: DefaultWaterSpeed, CloudFreq: DefaultCloudFreq}
	if c == nil {
		return out
	}
	if c.WaterSpeed != "" {
		out.WaterSpeed = c.WaterSpeed
	}
	if c.CloudFreq != "" {
		out.CloudFreq = c.CloudFreq
	}
	return out
}

// Apply installs a fetched map and marks the store loaded.
func (s *Store) Apply(m protocol.MapResponse) {
	regions := make(map[string]protocol.Region, len(m.Regions))
	for _, r := range m.Regions {
		regions[string(r.ID)] = r
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = m.Data
	s.regions = regions
	s.config = NormalizeConfig(m.Config)
	s.loaded = true
}

// PreloadMap fetches and installs the map. Failures are logged and returned.
func (s *Store) PreloadMap(ctx context.Context) error {
	m, err := s.api.FetchMap(ctx)
	if err != nil {
		s.log.Printf("WARN preload map: %v", err)
		return err
	}
	s.Apply(m)
	return nil
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *Store) Data() protocol.MapMatrix {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Regions returns the region index keyed by id. Callers must not modify it.
func (s *Store) Regions() map[string]protocol.Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regions
}

func (s *Store) Region(id string) (protocol.Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.regions[id]
	return r, ok
}

func (s *Store) Config() protocol.FrontendConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Size returns the grid width and height.
func (s *Store) Size() (w, h int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data) == 0 {
		return 0, 0
	}
	return len(s.data[0]), len(s.data)
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.data = protocol.MapMatrix{}
	s.regions = map[string]protocol.Region{}
	s.config = NormalizeConfig(nil)
	s.loaded = false
}

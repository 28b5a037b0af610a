// Package ui holds client-side UI state the sync layer touches: the current
// selection and its detail payload, the system menu, and toasts.
package ui

import (
	"context"
	"fmt"
	"sync"

	"cultivationworld.ai/internal/generation"
	"cultivationworld.ai/internal/protocol"
)

type SelectionType string

const (
	SelectAvatar SelectionType = "avatar"
	SelectRegion SelectionType = "region"
	SelectSect   SelectionType = "sect"
)

type Selection struct {
	Type SelectionType
	ID   string
}

type MenuTab string

const (
	TabSave     MenuTab = "save"
	TabLoad     MenuTab = "load"
	TabCreate   MenuTab = "create"
	TabDelete   MenuTab = "delete"
	TabLLM      MenuTab = "llm"
	TabStart    MenuTab = "start"
	TabSettings MenuTab = "settings"
	TabAbout    MenuTab = "about"
	TabOther    MenuTab = "other"
)

// DetailFetcher loads the detail payload of one avatar, region or sect.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, kind, id string) (protocol.Detail, error)
}

// Notifier displays toasts.
type Notifier interface {
	Error(msg string)
	Warning(msg string)
	Success(msg string)
	Info(msg string)
}

type Store struct {
	api    DetailFetcher
	notify Notifier

	mu            sync.Mutex
	selected      *Selection
	detail        protocol.Detail
	loadingDetail bool
	detailErr     string

	menuVisible  bool
	menuTab      MenuTab
	menuClosable bool

	requests generation.Counter
}

func NewStore(api DetailFetcher, notify Notifier) *Store {
	return &Store{api: api, notify: notify, menuTab: TabLoad, menuClosable: true}
}

// Select makes sel the current selection and loads its detail. Selecting
// the current target again does nothing.
func (s *Store) Select(ctx context.Context, typ SelectionType, id string) error {
	s.mu.Lock()
	if s.selected != nil && s.selected.Type == typ && s.selected.ID == id {
		s.mu.Unlock()
		return nil
	}
	s.selected = &Selection{Type: typ, ID: id}
	s.detail = nil
	s.mu.Unlock()
	return s.RefreshDetail(ctx)
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = nil
	s.detail = nil
	s.detailErr = ""
}

// ClearDetailCache drops the loaded detail so the next selection reloads it.
func (s *Store) ClearDetailCache() {
	s.mu.Lock()
	s.detail = nil
	s.mu.Unlock()
}

func (s *Store) Selected() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return Selection{}, false
	}
	return *s.selected, true
}

func (s *Store) HasSelection() bool {
	_, ok := s.Selected()
	return ok
}

// RefreshDetail reloads the detail of the current selection. The result is
// kept only if no later refresh started and the selection is unchanged.
func (s *Store) RefreshDetail(ctx context.Context) error {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return nil
	}
	tok := s.requests.Next()
	target := *s.selected
	s.loadingDetail = true
	s.detailErr = ""
	s.mu.Unlock()

	data, err := s.api.FetchDetail(ctx, string(target.Type), target.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.requests.Current(tok) || s.selected == nil || *s.selected != target {
		return nil
	}
	s.loadingDetail = false
	if err != nil {
		s.detailErr = err.Error()
		return fmt.Errorf("detail %s %s: %w", target.Type, target.ID, err)
	}
	s.detail = data
	return nil
}

func (s *Store) Detail() protocol.Detail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detail
}

func (s *Store) DetailError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detailErr
}

func (s *Store) LoadingDetail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingDetail
}

func (s *Store) OpenSystemMenu(tab MenuTab, closable bool) {
	if tab == "" {
		tab = TabLoad
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.menuTab = tab
	s.menuClosable = closable
	s.menuVisible = true
}

// CloseSystemMenu hides the menu unless it was opened as non-closable.
func (s *Store) CloseSystemMenu() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.menuClosable {
		s.menuVisible = false
	}
}

func (s *Store) SetSystemMenuClosable(closable bool) {
	s.mu.Lock()
	s.menuClosable = closable
	s.mu.Unlock()
}

func (s *Store) SystemMenu() (visible bool, tab MenuTab, closable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menuVisible, s.menuTab, s.menuClosable
}

func (s *Store) ToastError(msg string)   { s.notify.Error(msg) }
func (s *Store) ToastWarning(msg string) { s.notify.Warning(msg) }
func (s *Store) ToastSuccess(msg string) { s.notify.Success(msg) }
func (s *Store) ToastInfo(msg string)    { s.notify.Info(msg) }

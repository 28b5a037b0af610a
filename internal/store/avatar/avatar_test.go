package avatar

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"cultivationworld.ai/internal/protocol"
)

type stateFetcher struct {
	state protocol.InitialState
	err   error
}

func (f stateFetcher) FetchInitialState(context.Context) (protocol.InitialState, error) {
	return f.state, f.err
}

func strp(s string) *string { return &s }
func intp(v int) *int       { return &v }

func mapID(m map[string]protocol.AvatarSummary) uintptr {
	return reflect.ValueOf(m).Pointer()
}

func seeded() *Store {
	s := NewStore(stateFetcher{})
	s.SetAvatarsFromState(protocol.InitialState{Avatars: []protocol.AvatarSummary{
		{ID: "a1", Name: "Li", X: 1, Y: 2, Action: "meditate"},
	}})
	return s
}

func TestUpdateMergesSuppliedFieldsOnly(t *testing.T) {
	s := seeded()
	before := mapID(s.Avatars())
	if !s.UpdateAvatars([]protocol.AvatarPatch{{ID: "a1", X: intp(9)}}) {
		t.Fatalf("expected change")
	}
	a, _ := s.Get("a1")
	if a.X != 9 || a.Y != 2 || a.Name != "Li" || a.Action != "meditate" {
		t.Fatalf("merged avatar=%+v", a)
	}
	if mapID(s.Avatars()) == before {
		t.Fatalf("changed map should be a new map")
	}
}

func TestUpdateWithoutEffectKeepsMapIdentity(t *testing.T) {
	s := seeded()
	before := mapID(s.Avatars())
	changed := s.UpdateAvatars([]protocol.AvatarPatch{
		{ID: "unknown-id"},     // no name: not a creation
		{Name: strp("No ID")},  // no id: ignored
		{ID: "a1", X: intp(1)}, // same value
		{ID: "a1", Action: strp("meditate")},
	})
	if changed {
		t.Fatalf("expected no change")
	}
	if mapID(s.Avatars()) != before {
		t.Fatalf("map replaced without a change")
	}
	if len(s.Avatars()) != 1 {
		t.Fatalf("len=%d", len(s.Avatars()))
	}
}

func TestUpdateCreatesNamedAvatar(t *testing.T) {
	s := seeded()
	s.UpdateAvatars([]protocol.AvatarPatch{{ID: "new-1", Name: strp("New"), X: intp(3), PicID: intp(4)}})
	a, ok := s.Get("new-1")
	if !ok || a.Name != "New" || a.X != 3 || a.PicID == nil || *a.PicID != 4 {
		t.Fatalf("created avatar=%+v ok=%v", a, ok)
	}
	if len(s.List()) != 2 || s.List()[0].ID != "a1" {
		t.Fatalf("list=%+v", s.List())
	}
}

func TestPreloadAvatars(t *testing.T) {
	s := NewStore(stateFetcher{state: protocol.InitialState{Year: 100, Month: 3, Avatars: []protocol.AvatarSummary{{ID: "a1"}}}})
	y, m, err := s.PreloadAvatars(context.Background())
	if err != nil || y != 100 || m != 3 || len(s.Avatars()) != 1 {
		t.Fatalf("y=%d m=%d err=%v avatars=%d", y, m, err, len(s.Avatars()))
	}

	failing := NewStore(stateFetcher{err: errors.New("network")})
	if _, _, err := failing.PreloadAvatars(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

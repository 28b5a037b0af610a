package ui

import (
	"context"
	"errors"
	"testing"

	"cultivationworld.ai/internal/protocol"
)

type detailCall struct {
	sel   Selection
	reply chan detailReply
}

type detailReply struct {
	data protocol.Detail
	err  error
}

type gatedDetails struct{ calls chan detailCall }

func (g *gatedDetails) FetchDetail(_ context.Context, kind, id string) (protocol.Detail, error) {
	c := detailCall{sel: Selection{Type: SelectionType(kind), ID: id}, reply: make(chan detailReply, 1)}
	g.calls <- c
	r := <-c.reply
	return r.data, r.err
}

type staticDetails struct {
	data protocol.Detail
	err  error
	n    int
}

func (s *staticDetails) FetchDetail(context.Context, string, string) (protocol.Detail, error) {
	s.n++
	return s.data, s.err
}

type recordingNotifier struct{ got []string }

func (r *recordingNotifier) Error(m string)   { r.got = append(r.got, "error:"+m) }
func (r *recordingNotifier) Warning(m string) { r.got = append(r.got, "warning:"+m) }
func (r *recordingNotifier) Success(m string) { r.got = append(r.got, "success:"+m) }
func (r *recordingNotifier) Info(m string)    { r.got = append(r.got, "info:"+m) }

func TestSelectLoadsDetailOnce(t *testing.T) {
	api := &staticDetails{data: protocol.Detail{"name": "Li"}}
	s := NewStore(api, &recordingNotifier{})
	if err := s.Select(context.Background(), SelectAvatar, "a1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if s.Detail()["name"] != "Li" || s.LoadingDetail() {
		t.Fatalf("detail=%v loading=%v", s.Detail(), s.LoadingDetail())
	}
	s.Select(context.Background(), SelectAvatar, "a1")
	if api.n != 1 {
		t.Fatalf("reselect fetched again: %d", api.n)
	}
}

func TestRefreshDetailError(t *testing.T) {
	s := NewStore(&staticDetails{err: errors.New("gone")}, &recordingNotifier{})
	if err := s.Select(context.Background(), SelectRegion, "12"); err == nil {
		t.Fatalf("expected error")
	}
	if s.DetailError() != "gone" || s.LoadingDetail() {
		t.Fatalf("err=%q loading=%v", s.DetailError(), s.LoadingDetail())
	}
}

func TestRefreshDetailDropsChangedSelection(t *testing.T) {
	api := &gatedDetails{calls: make(chan detailCall)}
	s := NewStore(api, &recordingNotifier{})

	done := make(chan error, 1)
	go func() { done <- s.Select(context.Background(), SelectAvatar, "a1") }()
	first := <-api.calls

	s.ClearSelection()
	first.reply <- detailReply{data: protocol.Detail{"name": "Li"}}
	<-done
	if s.Detail() != nil {
		t.Fatalf("detail for a cleared selection was kept: %v", s.Detail())
	}
}

func TestRefreshDetailLatestWins(t *testing.T) {
	api := &gatedDetails{calls: make(chan detailCall)}
	s := NewStore(api, &recordingNotifier{})

	firstDone := make(chan error, 1)
	go func() { firstDone <- s.Select(context.Background(), SelectAvatar, "a1") }()
	first := <-api.calls

	secondDone := make(chan error, 1)
	go func() { secondDone <- s.RefreshDetail(context.Background()) }()
	second := <-api.calls

	second.reply <- detailReply{data: protocol.Detail{"v": 2.0}}
	<-secondDone
	first.reply <- detailReply{data: protocol.Detail{"v": 1.0}}
	<-firstDone

	if s.Detail()["v"] != 2.0 {
		t.Fatalf("detail=%v", s.Detail())
	}
}

func TestSystemMenuClosable(t *testing.T) {
	s := NewStore(&staticDetails{}, &recordingNotifier{})
	s.OpenSystemMenu(TabLLM, false)
	s.CloseSystemMenu()
	if visible, tab, closable := s.SystemMenu(); !visible || tab != TabLLM || closable {
		t.Fatalf("visible=%v tab=%s closable=%v", visible, tab, closable)
	}
	s.SetSystemMenuClosable(true)
	s.CloseSystemMenu()
	if visible, _, _ := s.SystemMenu(); visible {
		t.Fatalf("menu still visible")
	}
}

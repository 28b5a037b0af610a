package system

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"cultivationworld.ai/internal/protocol"
)

type fakeAPI struct {
	status  protocol.InitStatus
	err     error
	gate    chan chan statusReply
	pauseE  error
	resumeE error
	calls   []string
}

type statusReply struct {
	st  protocol.InitStatus
	err error
}

func (f *fakeAPI) FetchInitStatus(context.Context) (protocol.InitStatus, error) {
	if f.gate != nil {
		r := make(chan statusReply, 1)
		f.gate <- r
		got := <-r
		return got.st, got.err
	}
	return f.status, f.err
}

func (f *fakeAPI) Pause(context.Context) error {
	f.calls = append(f.calls, "pause")
	return f.pauseE
}

func (f *fakeAPI) Resume(context.Context) error {
	f.calls = append(f.calls, "resume")
	return f.resumeE
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestFetchInitStatusTracksRunning(t *testing.T) {
	api := &fakeAPI{status: protocol.InitStatus{Status: protocol.StatusReady}}
	s := NewStore(api, quiet())
	if !s.Loading() {
		t.Fatalf("no status yet should be loading")
	}
	if _, ok := s.FetchInitStatus(context.Background()); !ok {
		t.Fatalf("fetch failed")
	}
	if !s.Running() || s.Ready() {
		t.Fatalf("running=%v ready=%v", s.Running(), s.Ready())
	}
	s.SetInitialized(true)
	if !s.Ready() || s.Loading() {
		t.Fatalf("ready=%v loading=%v", s.Ready(), s.Loading())
	}
}

func TestFetchInitStatusDropsStale(t *testing.T) {
	api := &fakeAPI{gate: make(chan chan statusReply)}
	s := NewStore(api, quiet())

	first := make(chan bool, 1)
	go func() { _, ok := s.FetchInitStatus(context.Background()); first <- ok }()
	r1 := <-api.gate
	second := make(chan bool, 1)
	go func() { _, ok := s.FetchInitStatus(context.Background()); second <- ok }()
	r2 := <-api.gate

	r2 <- statusReply{st: protocol.InitStatus{Status: protocol.StatusInProgress, Phase: 3}}
	if !<-second {
		t.Fatalf("latest poll rejected")
	}
	r1 <- statusReply{st: protocol.InitStatus{Status: protocol.StatusIdle}}
	if <-first {
		t.Fatalf("stale poll accepted")
	}
	if st, _ := s.Status(); st.Status != protocol.StatusInProgress {
		t.Fatalf("status=%+v", st)
	}
}

func TestTogglePauseRollsBack(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api, quiet())
	s.TogglePause(context.Background())
	if s.ManualPaused() {
		t.Fatalf("expected resumed")
	}
	api.pauseE = errors.New("offline")
	s.TogglePause(context.Background())
	if s.ManualPaused() {
		t.Fatalf("failed pause must roll back")
	}
	if len(api.calls) != 2 || api.calls[0] != "resume" || api.calls[1] != "pause" {
		t.Fatalf("calls=%v", api.calls)
	}
}

func TestPauseResumeLeaveFlag(t *testing.T) {
	api := &fakeAPI{resumeE: errors.New("offline")}
	s := NewStore(api, quiet())
	s.Resume(context.Background())
	s.Pause(context.Background())
	if !s.ManualPaused() {
		t.Fatalf("flag changed")
	}
}

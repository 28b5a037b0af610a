package boot

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"cultivationworld.ai/internal/protocol"
)

type journal struct{ calls []string }

func (j *journal) add(s string) { j.calls = append(j.calls, s) }

type fakeWorld struct{ j *journal }

func (w fakeWorld) Reset()                         { w.j.add("reset") }
func (w fakeWorld) Initialize(context.Context)     { w.j.add("initialize") }
func (w fakeWorld) PreloadAvatars(context.Context) { w.j.add("preload avatars") }
func (w fakeWorld) PreloadMap(context.Context) error {
	w.j.add("preload map")
	return nil
}

// fakeSystem serves a scripted sequence of statuses.
type fakeSystem struct {
	j           *journal
	script      []protocol.InitStatus
	last        *protocol.InitStatus
	initialized bool
}

func (s *fakeSystem) Status() (protocol.InitStatus, bool) {
	if s.last == nil {
		return protocol.InitStatus{}, false
	}
	return *s.last, true
}

func (s *fakeSystem) FetchInitStatus(context.Context) (protocol.InitStatus, bool) {
	if len(s.script) == 0 {
		return protocol.InitStatus{}, false
	}
	st := s.script[0]
	s.script = s.script[1:]
	s.last = &st
	return st, true
}

func (s *fakeSystem) Initialized() bool { return s.initialized }
func (s *fakeSystem) SetInitialized(v bool) {
	s.initialized = v
	if v {
		s.j.add("initialized")
	} else {
		s.j.add("uninitialized")
	}
}

type fakeSocket struct {
	j         *journal
	connected bool
}

func (s *fakeSocket) Connected() bool { return s.connected }
func (s *fakeSocket) Connect() {
	s.connected = true
	s.j.add("connect")
}

type inline struct{}

func (inline) Go(_ string, fn func(context.Context) error) { _ = fn(context.Background()) }

func status(st, phase string) protocol.InitStatus {
	return protocol.InitStatus{Status: st, PhaseName: phase}
}

func newPoller(j *journal, sys *fakeSystem, sock *fakeSocket, opts Options) *Poller {
	opts.Logger = log.New(io.Discard, "", 0)
	return NewPoller(fakeWorld{j: j}, sys, sock, inline{}, opts)
}

func TestPollWalksThroughPhases(t *testing.T) {
	j := &journal{}
	sys := &fakeSystem{j: j, script: []protocol.InitStatus{
		status(protocol.StatusInProgress, "loading_config"),
		status(protocol.StatusInProgress, "initializing_sects"),
		status(protocol.StatusInProgress, "generating_avatars"),
		status(protocol.StatusInProgress, "checking_llm"),
		status(protocol.StatusInProgress, "generating_initial_events"),
		status(protocol.StatusReady, "complete"),
		status(protocol.StatusReady, "complete"),
	}}
	sock := &fakeSocket{j: j}
	ready := 0
	p := newPoller(j, sys, sock, Options{OnReady: func(context.Context) { ready++ }})
	for i := 0; i < 7; i++ {
		p.Poll(context.Background())
	}

	want := "preload map,preload avatars,connect,initialize,initialized"
	if got := strings.Join(j.calls, ","); got != want {
		t.Fatalf("calls=%s want %s", got, want)
	}
	if ready != 1 {
		t.Fatalf("OnReady ran %d times", ready)
	}
}

func TestIdleResetsInitializedWorld(t *testing.T) {
	j := &journal{}
	sys := &fakeSystem{j: j, initialized: true, script: []protocol.InitStatus{
		status(protocol.StatusIdle, ""),
		status(protocol.StatusIdle, ""),
	}}
	sys.last = &protocol.InitStatus{Status: protocol.StatusReady}
	idle := 0
	p := newPoller(j, sys, &fakeSocket{j: j, connected: true}, Options{OnIdle: func() { idle++ }})
	p.mapPreloaded, p.avatarsPreloaded = true, true

	p.Poll(context.Background())
	p.Poll(context.Background())

	if got := strings.Join(j.calls, ","); got != "uninitialized,reset" {
		t.Fatalf("calls=%s", got)
	}
	if idle != 1 {
		t.Fatalf("OnIdle ran %d times", idle)
	}
	if m, a := p.Preloaded(); m || a {
		t.Fatalf("preload flags not cleared")
	}
}

func TestReadyAgainAfterReloadResetsFirst(t *testing.T) {
	j := &journal{}
	sys := &fakeSystem{j: j, initialized: true, script: []protocol.InitStatus{
		status(protocol.StatusInProgress, "loading_save"),
		status(protocol.StatusReady, ""),
	}}
	sys.last = &protocol.InitStatus{Status: protocol.StatusReady}
	p := newPoller(j, sys, &fakeSocket{j: j, connected: true}, Options{})
	p.Poll(context.Background())
	p.Poll(context.Background())
	if got := strings.Join(j.calls, ","); got != "reset,initialize,initialized" {
		t.Fatalf("calls=%s", got)
	}
}

func TestFailedPollDoesNothing(t *testing.T) {
	j := &journal{}
	p := newPoller(j, &fakeSystem{j: j}, &fakeSocket{j: j}, Options{})
	p.Poll(context.Background())
	if len(j.calls) != 0 {
		t.Fatalf("calls=%v", j.calls)
	}
}

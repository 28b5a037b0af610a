package ws

import (
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cultivationworld.ai/internal/protocol"
)

type failingDialer struct {
	calls atomic.Int32
}

func (d *failingDialer) Dial(string, http.Header) (Conn, error) {
	d.calls.Add(1)
	return nil, errors.New("connection refused")
}

type fakeTimer struct{ stopped atomic.Bool }

func (t *fakeTimer) Stop() bool { return !t.stopped.Swap(true) }

type scheduled struct {
	delay time.Duration
	fire  func()
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{9, 10 * time.Second},
	}
	for _, c := range cases {
		if got := BackoffDelay(time.Second, c.attempts); got != c.want {
			t.Fatalf("attempts=%d: got %v want %v", c.attempts, got, c.want)
		}
	}
}

func TestReconnectScheduleDoublesAndStopsAtMax(t *testing.T) {
	sched := make(chan scheduled, 16)
	d := &failingDialer{}
	s := NewSocket(Options{
		URL:                  "ws://example.invalid/ws",
		MaxReconnectAttempts: 3,
		Dialer:               d,
		Logger:               quietLogger(),
		AfterFunc: func(delay time.Duration, f func()) Timer {
			sched <- scheduled{delay: delay, fire: f}
			return &fakeTimer{}
		},
	})

	var statuses []bool
	var mu sync.Mutex
	s.OnStatusChange(func(c bool) {
		mu.Lock()
		statuses = append(statuses, c)
		mu.Unlock()
	})

	s.Connect()
	want := []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond, 4000 * time.Millisecond}
	for i, w := range want {
		select {
		case sc := <-sched:
			if sc.delay != w {
				t.Fatalf("attempt %d: delay %v want %v", i, sc.delay, w)
			}
			sc.fire()
		case <-time.After(2 * time.Second):
			t.Fatalf("attempt %d: no reconnect scheduled", i)
		}
	}

	select {
	case sc := <-sched:
		t.Fatalf("unexpected reconnect scheduled after max attempts: %v", sc.delay)
	case <-time.After(100 * time.Millisecond):
	}
	if got := d.calls.Load(); got != 4 {
		t.Fatalf("expected 4 dials (initial + 3 retries), got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, c := range statuses {
		if c {
			t.Fatalf("failed dials must never report connected")
		}
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	sched := make(chan scheduled, 4)
	timer := &fakeTimer{}
	d := &failingDialer{}
	s := NewSocket(Options{
		Dialer: d,
		Logger: quietLogger(),
		AfterFunc: func(delay time.Duration, f func()) Timer {
			sched <- scheduled{delay: delay, fire: f}
			return timer
		},
	})

	s.Connect()
	var sc scheduled
	select {
	case sc = <-sched:
	case <-time.After(2 * time.Second):
		t.Fatalf("no reconnect scheduled")
	}

	var last atomic.Value
	s.OnStatusChange(func(c bool) { last.Store(c) })
	s.Disconnect()
	if !timer.stopped.Load() {
		t.Fatalf("pending reconnect timer not stopped")
	}
	if v, _ := last.Load().(bool); v {
		t.Fatalf("Disconnect should emit false")
	}

	// A timer that fires anyway must not reconnect.
	sc.fire()
	time.Sleep(50 * time.Millisecond)
	if got := d.calls.Load(); got != 1 {
		t.Fatalf("expected no dial after Disconnect, got %d dials", got)
	}
}

func TestStaleReconnectTimerIgnoredAfterReconnect(t *testing.T) {
	sched := make(chan scheduled, 4)
	d := &failingDialer{}
	s := NewSocket(Options{
		Dialer: d,
		Logger: quietLogger(),
		AfterFunc: func(delay time.Duration, f func()) Timer {
			sched <- scheduled{delay: delay, fire: f}
			return &fakeTimer{}
		},
	})

	next := func() scheduled {
		t.Helper()
		select {
		case sc := <-sched:
			return sc
		case <-time.After(2 * time.Second):
			t.Fatalf("no reconnect scheduled")
		}
		return scheduled{}
	}

	s.Connect()
	stale := next()
	s.Disconnect()
	s.Connect()
	fresh := next()
	if fresh.delay != time.Second {
		t.Fatalf("fresh connect should start backoff over, got %v", fresh.delay)
	}

	stale.fire()
	time.Sleep(50 * time.Millisecond)
	if got := d.calls.Load(); got != 2 {
		t.Fatalf("stale timer redialed: %d dials", got)
	}
	select {
	case sc := <-sched:
		t.Fatalf("stale timer scheduled another reconnect: %v", sc.delay)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	s := NewSocket(Options{Dialer: &failingDialer{}, Logger: quietLogger()})
	var a, b atomic.Int32
	offA := s.OnStatusChange(func(bool) { a.Add(1) })
	s.OnStatusChange(func(bool) { b.Add(1) })
	s.Disconnect()
	offA()
	s.Disconnect()
	if a.Load() != 1 || b.Load() != 2 {
		t.Fatalf("a=%d b=%d", a.Load(), b.Load())
	}
}

// wsServer pushes the given frames to every connection, then optionally
// drops it.
type wsServer struct {
	srv      *httptest.Server
	accepted atomic.Int32
	drop     chan struct{}
}

func newWSServer(t *testing.T, frames []string) *wsServer {
	t.Helper()
	ws := &wsServer{drop: make(chan struct{}, 4)}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ws.srv = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		ws.accepted.Add(1)
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		<-ws.drop
	}))
	t.Cleanup(ws.srv.Close)
	return ws
}

func (w *wsServer) url() string {
	return "ws" + strings.TrimPrefix(w.srv.URL, "http") + "/ws"
}

func TestSocketDeliversParsedMessagesInOrderAndReconnects(t *testing.T) {
	srv := newWSServer(t, []string{
		`{"type":"toast","level":"info","message":"first"}`,
		`{oops`,
		`{"type":"tick","year":1,"month":2}`,
	})

	s := NewSocket(Options{URL: srv.url(), ReconnectInterval: 10 * time.Millisecond, Logger: quietLogger()})
	msgs := make(chan protocol.Message, 16)
	status := make(chan bool, 16)
	s.On(func(m protocol.Message) { msgs <- m })
	s.OnStatusChange(func(c bool) { status <- c })

	s.Connect()
	expectStatus(t, status, true)
	for _, want := range []string{protocol.TypeToast, protocol.TypeTick} {
		select {
		case m := <-msgs:
			if m.Type != want {
				t.Fatalf("got %q want %q", m.Type, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}

	srv.drop <- struct{}{}
	expectStatus(t, status, false)
	expectStatus(t, status, true)
	waitFor(t, func() bool { return srv.accepted.Load() == 2 })

	if err := s.Send(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	s.Disconnect()
	expectStatus(t, status, false)
	time.Sleep(50 * time.Millisecond)
	if srv.accepted.Load() != 2 {
		t.Fatalf("reconnected after intentional disconnect")
	}
	if err := s.Send(map[string]string{"type": "ping"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func expectStatus(t *testing.T, ch <-chan bool, want bool) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("status %v want %v", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for status %v", want)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

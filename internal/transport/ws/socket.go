package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"cultivationworld.ai/internal/protocol"
)

const (
	DefaultURL                  = "ws://127.0.0.1:8002/ws"
	DefaultReconnectInterval    = time.Second
	DefaultMaxReconnectAttempts = 10

	maxReconnectDelay = 10 * time.Second
)

var ErrNotConnected = errors.New("ws: not connected")

// Conn is the subset of *websocket.Conn the socket needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type Dialer interface {
	Dial(url string, header http.Header) (Conn, error)
}

// Timer is satisfied by *time.Timer.
type Timer interface {
	Stop() bool
}

type MessageHandler func(protocol.Message)
type StatusHandler func(connected bool)

type Options struct {
	URL                  string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	Dialer    Dialer
	Logger    *log.Logger
	AfterFunc func(d time.Duration, f func()) Timer
}

type gorillaDialer struct {
	d websocket.Dialer
}

func (g gorillaDialer) Dial(url string, header http.Header) (Conn, error) {
	conn, resp, err := g.d.Dial(url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NewDialer returns the gorilla-backed dialer used outside tests.
func NewDialer() Dialer {
	return gorillaDialer{d: websocket.Dialer{HandshakeTimeout: 5 * time.Second}}
}

// Socket owns a single reconnecting connection and fans inbound messages and
// connectivity changes out to subscribers.
type Socket struct {
	opts Options
	log  *log.Logger

	mu          sync.Mutex
	conn        Conn
	connGen     uint64
	attempts    int
	intentional bool
	timer       Timer

	nextSub        int
	handlers       map[int]MessageHandler
	statusHandlers map[int]StatusHandler

	writeMu sync.Mutex
}

func NewSocket(opts Options) *Socket {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = NewDialer()
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Socket{
		opts:           opts,
		log:            logger,
		handlers:       map[int]MessageHandler{},
		statusHandlers: map[int]StatusHandler{},
	}
}

// Connect replaces any existing connection with a fresh one. Dialing happens
// in the background; subscribers learn the outcome via status events.
func (s *Socket) Connect() {
	s.mu.Lock()
	s.intentional = false
	s.cleanupLocked()
	gen := s.connGen
	s.mu.Unlock()

	go s.run(gen)
}

// Disconnect closes the connection for good: no reconnect is scheduled until
// the next Connect.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	s.intentional = true
	s.cleanupLocked()
	s.mu.Unlock()
	s.notifyStatus(false)
}

// On subscribes to parsed inbound messages. The returned func unsubscribes.
func (s *Socket) On(h MessageHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.handlers[id] = h
	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// OnStatusChange subscribes to connectivity transitions.
func (s *Socket) OnStatusChange(h StatusHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.statusHandlers[id] = h
	return func() {
		s.mu.Lock()
		delete(s.statusHandlers, id)
		s.mu.Unlock()
	}
}

// Send writes v as a JSON text frame on the live connection.
func (s *Socket) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// Connected reports whether a connection is currently open.
func (s *Socket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// cleanupLocked cancels any pending reconnect and retires the current
// connection. Bumping connGen makes the old read loop's close a no-op.
func (s *Socket) cleanupLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.connGen++
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *Socket) run(gen uint64) {
	conn, err := s.opts.Dialer.Dial(s.opts.URL, http.Header{})
	if err != nil {
		s.log.Printf("connect %s: %v", s.opts.URL, err)
		s.handleClose(gen)
		return
	}

	s.mu.Lock()
	if gen != s.connGen {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.attempts = 0
	s.mu.Unlock()
	s.notifyStatus(true)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(gen)
			return
		}
		m, err := protocol.ParseMessage(msg)
		if err != nil {
			s.log.Printf("drop unparsable message: %v", err)
			continue
		}
		for _, h := range s.messageHandlers() {
			h(m)
		}
	}
}

func (s *Socket) handleClose(gen uint64) {
	s.mu.Lock()
	if gen != s.connGen {
		// Superseded by Connect or Disconnect, which already cleaned up.
		s.mu.Unlock()
		return
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	intentional := s.intentional
	s.mu.Unlock()

	s.notifyStatus(false)
	if !intentional {
		s.scheduleReconnect()
	}
}

func (s *Socket) scheduleReconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts >= s.opts.MaxReconnectAttempts {
		s.log.Printf("giving up after %d reconnect attempts", s.attempts)
		return
	}
	delay := BackoffDelay(s.opts.ReconnectInterval, s.attempts)
	gen := s.connGen
	s.timer = s.opts.AfterFunc(delay, func() {
		s.mu.Lock()
		// A Connect or Disconnect since scheduling owns the socket now.
		if s.intentional || gen != s.connGen {
			s.mu.Unlock()
			return
		}
		s.attempts++
		s.mu.Unlock()
		s.Connect()
	})
}

// BackoffDelay is base*2^attempts, capped at ten seconds.
func BackoffDelay(base time.Duration, attempts int) time.Duration {
	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}

func (s *Socket) messageHandlers() []MessageHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MessageHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		out = append(out, h)
	}
	return out
}

func (s *Socket) notifyStatus(connected bool) {
	s.mu.Lock()
	hs := make([]StatusHandler, 0, len(s.statusHandlers))
	for _, h := range s.statusHandlers {
		hs = append(hs, h)
	}
	s.mu.Unlock()
	for _, h := range hs {
		h(connected)
	}
}

// Package recording keeps a compressed log of inbound socket frames and state
// snapshots so a session can be replayed through the stores later.
package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"cultivationworld.ai/internal/protocol"
)

const FilePrefix = "frames"

// Entry kinds.
const (
	KindHeader   = "header"
	KindFrame    = "frame"
	KindSnapshot = "snapshot"
)

// Header opens every segment file.
type Header struct {
	Format   int       `json:"format"`
	Session  string    `json:"session"`
	Segment  string    `json:"segment"`
	OpenedAt time.Time `json:"opened_at"`
}

type Entry struct {
	Session string          `json:"session"`
	Seq     uint64          `json:"seq"`
	At      time.Time       `json:"at"`
	Kind    string          `json:"kind"`
	Type    string          `json:"type,omitempty"`
	Data    json.RawMessage `json:"data"`
}

type Recorder struct {
	w       *segmentWriter
	session string
}

func NewRecorder(dir string) *Recorder {
	session := uuid.NewString()
	return &Recorder{w: newSegmentWriter(dir, FilePrefix, session), session: session}
}

func (r *Recorder) Session() string { return r.session }

// RecordFrame stores one inbound socket frame verbatim.
func (r *Recorder) RecordFrame(msg protocol.Message) error {
	return r.w.append(KindFrame, msg.Type, msg.Raw)
}

func (r *Recorder) RecordSnapshot(state protocol.InitialState) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.w.append(KindSnapshot, "", b)
}

func (r *Recorder) Close() error { return r.w.close() }

// ListFiles returns the recording segments in dir ordered by hour, then
// by session.
func ListFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, FilePrefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadFile calls fn for every entry in path, stopping at the first error.
func ReadFile(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s:%d: unmarshal: %w", filepath.Base(path), line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Message turns a frame entry back into a routable message.
func (e Entry) Message() (protocol.Message, error) {
	if e.Kind != KindFrame {
		return protocol.Message{}, fmt.Errorf("entry %d is a %s, not a frame", e.Seq, e.Kind)
	}
	return protocol.ParseMessage(e.Data)
}

func (e Entry) Header() (Header, error) {
	var h Header
	if e.Kind != KindHeader {
		return h, fmt.Errorf("entry %d is a %s, not a header", e.Seq, e.Kind)
	}
	err := json.Unmarshal(e.Data, &h)
	return h, err
}

func (e Entry) Snapshot() (protocol.InitialState, error) {
	var st protocol.InitialState
	if e.Kind != KindSnapshot {
		return st, fmt.Errorf("entry %d is a %s, not a snapshot", e.Seq, e.Kind)
	}
	err := json.Unmarshal(e.Data, &st)
	return st, err
}

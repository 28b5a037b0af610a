package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// FormatVersion is written into every segment header.
const FormatVersion = 1

// segmentWriter appends the entries of one session to hourly zstd segments
// named <prefix>-YYYY-MM-DD-HH-<session>.jsonl.zst. Every segment opens with
// a header entry, so a single file can be replayed on its own. Sequence
// numbers are assigned under the lock and follow file order.
type segmentWriter struct {
	dir     string
	prefix  string
	session string
	now     func() time.Time

	mu      sync.Mutex
	seq     uint64
	segment string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func newSegmentWriter(dir, prefix, session string) *segmentWriter {
	return &segmentWriter{dir: dir, prefix: prefix, session: session, now: time.Now}
}

func (w *segmentWriter) append(kind, typ string, data json.RawMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	at := w.now().UTC()
	segment := at.Format("2006-01-02-15")
	if segment != w.segment {
		if err := w.openLocked(segment, at); err != nil {
			return err
		}
	}
	if err := w.writeLocked(at, kind, typ, data); err != nil {
		return err
	}
	return w.flushLocked()
}

func (w *segmentWriter) openLocked(segment string, at time.Time) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathFor(segment), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.segment = segment

	hdr, err := json.Marshal(Header{Format: FormatVersion, Session: w.session, Segment: segment, OpenedAt: at})
	if err != nil {
		return err
	}
	return w.writeLocked(at, KindHeader, "", hdr)
}

func (w *segmentWriter) writeLocked(at time.Time, kind, typ string, data json.RawMessage) error {
	w.seq++
	b, err := json.Marshal(Entry{
		Session: w.session,
		Seq:     w.seq,
		At:      at,
		Kind:    kind,
		Type:    typ,
		Data:    data,
	})
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// flushLocked pushes buffered lines through the compressor so a crash loses
// at most the entry being written.
func (w *segmentWriter) flushLocked() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *segmentWriter) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *segmentWriter) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.segment = ""
	return err
}

func (w *segmentWriter) pathFor(segment string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s-%s.jsonl.zst", w.prefix, segment, shortSession(w.session)))
}

func shortSession(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

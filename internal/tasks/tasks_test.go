package tasks

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunnerLogsErrorsAndPanics(t *testing.T) {
	var out syncBuffer
	r := NewRunner(context.Background(), log.New(&out, "", 0))

	r.Go("refresh detail", func(context.Context) error { return errors.New("boom") })
	r.Go("explode", func(context.Context) error { panic("kaput") })
	r.Go("fine", func(context.Context) error { return nil })
	r.Wait()

	got := out.String()
	if !strings.Contains(got, "refresh detail: boom") {
		t.Fatalf("missing error log: %q", got)
	}
	if !strings.Contains(got, "explode: panic: kaput") {
		t.Fatalf("missing panic log: %q", got)
	}
	if strings.Contains(got, "fine") {
		t.Fatalf("successful task should not log: %q", got)
	}
}

func TestRunnerPassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(ctx, log.New(&syncBuffer{}, "", 0))
	var seen error
	r.Go("ctx", func(ctx context.Context) error {
		seen = ctx.Err()
		return nil
	})
	r.Wait()
	if !errors.Is(seen, context.Canceled) {
		t.Fatalf("expected canceled ctx, got %v", seen)
	}
}

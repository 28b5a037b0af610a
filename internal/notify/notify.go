// Package notify prints toasts to a terminal.
package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type Terminal struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time

	stamp  lipgloss.Style
	levels map[string]lipgloss.Style
}

func NewTerminal(out io.Writer) *Terminal {
	r := lipgloss.NewRenderer(out)
	badge := func(color string) lipgloss.Style {
		return r.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("0")).Background(lipgloss.Color(color))
	}
	return &Terminal{
		out:   out,
		now:   time.Now,
		stamp: r.NewStyle().Faint(true),
		levels: map[string]lipgloss.Style{
			"error":   badge("9"),
			"warning": badge("11"),
			"success": badge("10"),
			"info":    badge("12"),
		},
	}
}

func (t *Terminal) show(level, msg string) {
	st, ok := t.levels[level]
	if !ok {
		level, st = "info", t.levels["info"]
	}
	line := fmt.Sprintf("%s %s %s\n",
		t.stamp.Render(t.now().Format("15:04:05")),
		st.Render(strings.ToUpper(level)),
		msg)
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.out, line)
}

func (t *Terminal) Error(msg string)   { t.show("error", msg) }
func (t *Terminal) Warning(msg string) { t.show("warning", msg) }
func (t *Terminal) Success(msg string) { t.show("success", msg) }
func (t *Terminal) Info(msg string)    { t.show("info", msg) }

package ui

import (
	"fmt"
	"io"
	"sync"
)

// Progress reports a fixed sequence of stages as "[n/total] label" lines.
type Progress struct {
	out    io.Writer
	total  int
	done   int
	styles Styles
	mu     sync.Mutex
}

// NewProgress creates a progress reporter for total stages.
func NewProgress(out io.Writer, total int) *Progress {
	return &Progress{out: out, total: total, styles: NewStyles(out)}
}

// Done marks the next stage as completed.
func (p *Progress) Done(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	_, _ = fmt.Fprintf(p.out, "[%d/%d] %s %s\n", p.done, p.total, label, p.styles.Good("ok"))
}

// Fail reports the stage after the last completed one as failed.
func (p *Progress) Fail(label string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, "[%d/%d] %s %s: %v\n", p.done+1, p.total, label, p.styles.Bad("failed"), err)
}

// Log prints an informational message within the progress context.
func (p *Progress) Log(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.out, format+"\n", args...)
}

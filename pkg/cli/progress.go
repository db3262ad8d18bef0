package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress across a batch of policy runs.
type ProgressReporter interface {
	Start(total int)
	Done(label string, ok bool)
	Finish()
}

// SimpleProgress renders a single updating progress line.
type SimpleProgress struct {
	mu      sync.Mutex
	total   int
	current int
	failed  int
	last    string
	started time.Time
	writer  io.Writer
}

// NewProgressReporter creates a new progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr so stdout stays machine readable.
func NewProgressReporter(w io.Writer) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{
		writer: w,
	}
}

// Start resets the reporter for total runs.
func (p *SimpleProgress) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.current = 0
	p.failed = 0
	p.last = ""
	p.started = time.Now()

	p.render()
}

// Done records one finished run.
func (p *SimpleProgress) Done(label string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current++
	if !ok {
		p.failed++
	}
	p.last = label
	p.render()
}

// Finish ends the progress line with a summary.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.last = ""
	p.render()
	fmt.Fprintf(p.writer, "\n%d runs, %d failed in %s\n",
		p.current, p.failed, time.Since(p.started).Round(time.Millisecond))
}

func (p *SimpleProgress) render() {
	if p.total == 0 {
		return
	}

	percent := float64(p.current) / float64(p.total) * 100
	barWidth := 30
	filled := int(float64(barWidth) * percent / 100)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	fmt.Fprintf(p.writer, "\rPolicies: [%s] %.0f%% (%d/%d) %s",
		bar, percent, p.current, p.total, p.last)
}

package printer

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const progressBarWidth = 40

// ProgressBar renders the progress of a sequence of labeled steps on a single
// updated line per step.
type ProgressBar struct {
	w       io.Writer
	noColor bool

	mu     sync.Mutex
	label  string
	active bool
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(w io.Writer, noColor bool) *ProgressBar {
	return &ProgressBar{w: w, noColor: noColor}
}

// Update renders the progress percentage (0-100) of the labeled step. A
// different label finishes the previous step line.
func (p *ProgressBar) Update(label string, percentage float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active && label != p.label {
		fmt.Fprintln(p.w)
	}
	p.label = label
	p.active = true

	switch {
	case percentage < 0:
		percentage = 0
	case percentage > 100:
		percentage = 100
	}
	filled := int(percentage / 100 * progressBarWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled)
	fmt.Fprintf(p.w, "\r  %s [%s] %3.0f%%", label, bar, percentage)
}

// Finish ends the current step line with its final status.
func (p *ProgressBar) Finish(label string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := p.colorize("done", colorGreen)
	if !ok {
		status = p.colorize("failed", colorRed)
	}

	if p.active && label == p.label {
		fmt.Fprintf(p.w, " %s\n", status)
	} else {
		if p.active {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintf(p.w, "  %s %s\n", label, status)
	}
	p.active = false
	p.label = ""
}

const (
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

func (p *ProgressBar) colorize(s, color string) string {
	if p.noColor {
		return s
	}
	return color + s + colorReset
}

package ui

import (
	"io"
	"strings"
)

type flusher interface {
	Flush() error
}

// Printer writes streamed tokens to the terminal as they arrive. It stops
// the spinner on the first token and, when the writer is buffered, flushes
// after every token so nothing waits for the end of the stream.
type Printer struct {
	w       io.Writer
	spinner *Spinner

	started     bool
	written     int
	lastNewline bool
}

// NewPrinter returns a Printer writing to w. sp may be nil.
func NewPrinter(w io.Writer, sp *Spinner) *Printer {
	return &Printer{w: w, spinner: sp}
}

// Token implements stream.TokenSink.
func (p *Printer) Token(s string) error {
	if s == "" {
		return nil
	}
	if !p.started {
		p.started = true
		p.spinner.Stop()
	}

	if _, err := io.WriteString(p.w, s); err != nil {
		return err
	}
	p.written += len(s)
	p.lastNewline = strings.HasSuffix(s, "\n")

	return p.flush()
}

// Finish stops the spinner if no token arrived and ends the output with a
// newline.
func (p *Printer) Finish() error {
	if !p.started {
		p.started = true
		p.spinner.Stop()
	}
	if p.written > 0 && !p.lastNewline {
		if _, err := io.WriteString(p.w, "\n"); err != nil {
			return err
		}
		p.lastNewline = true
	}
	return p.flush()
}

// Written returns the number of answer bytes written so far.
func (p *Printer) Written() int {
	return p.written
}

func (p *Printer) flush() error {
	if f, ok := p.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Package ui provides terminal UI helpers.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// Spinner wraps a terminal spinner for loading states. A nil *Spinner is
// valid and does nothing, which is what NewSpinner returns when stderr is
// not a terminal.
type Spinner struct {
	s *spinner.Spinner
}

// NewSpinner creates a spinner on stderr with the given message, or nil when
// stderr is not a terminal.
func NewSpinner(msg string) *Spinner {
	if !IsTerminal(os.Stderr) {
		return nil
	}
	return NewSpinnerTo(os.Stderr, msg)
}

// NewSpinnerTo creates a spinner that draws on w.
func NewSpinnerTo(w io.Writer, msg string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = "  " + msg
	_ = s.Color("cyan")
	return &Spinner{s: s}
}

// Start begins the spinner animation.
func (sp *Spinner) Start() {
	if sp == nil {
		return
	}
	sp.s.Start()
}

// Stop halts the spinner and clears the line.
func (sp *Spinner) Stop() {
	if sp == nil {
		return
	}
	sp.s.Stop()
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

package gather

import (
	"context"
	"strings"

	"github.com/arin/mimir/internal/executor"
)

// ManReader renders the manual page of a command as plain text.
type ManReader interface {
	Read(ctx context.Context, command string) (string, error)
}

// ManReaderFunc adapts a function to ManReader.
type ManReaderFunc func(ctx context.Context, command string) (string, error)

func (f ManReaderFunc) Read(ctx context.Context, command string) (string, error) {
	return f(ctx, command)
}

// SystemMan runs the man program.
type SystemMan struct{}

// manEnv keeps man from paging and pins the line width.
var manEnv = []string{"MANPAGER=cat", "PAGER=cat", "MANWIDTH=80"}

// Read returns the page for command. An error means man could not be
// started; a missing page (man exits non-zero) yields empty text.
func (SystemMan) Read(ctx context.Context, command string) (string, error) {
	res, err := executor.Run(ctx, manEnv, "man", command)
	if err != nil {
		return "", err
	}
	if !res.Success() {
		return "", nil
	}
	return StripOverstrike(strings.ToValidUTF8(string(res.Stdout), "\uFFFD")), nil
}

// StripOverstrike removes the backspace sequences nroff uses for bold
// ("c\bc") and underline ("_\bc"), keeping the character that is shown.
func StripOverstrike(s string) string {
	if !strings.ContainsRune(s, '\b') {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '\b' {
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// Package gather collects optional local context for the prompt: system
// logs, shell history and a man page. A source that cannot be read is
// replaced by a short placeholder; collecting never fails the run.
package gather

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultSyslogPath  = "/var/log/syslog"
	historyFileName    = ".bash_history"
	logsPlaceholder    = "Could not read system logs."
	historyPlaceholder = "Could not read bash history."
	truncationMarker   = "... (truncated)"
)

// Request selects which sources to include.
type Request struct {
	Logs    bool
	History bool
	Man     string // command whose manual page to include; empty for none
}

// Collector reads the requested sources. The zero value is not usable;
// construct one with NewCollector and override paths in tests.
type Collector struct {
	SyslogPath string
	// HistoryPath overrides <home>/.bash_history when set.
	HistoryPath string
	// MaxBytes caps each section; zero or less means no limit.
	MaxBytes int
	Man      ManReader

	homeDir func() (string, error)
	logger  *slog.Logger
}

// NewCollector returns a Collector for the real system paths.
func NewCollector(maxBytes int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{
		SyslogPath: DefaultSyslogPath,
		MaxBytes:   maxBytes,
		Man:        SystemMan{},
		homeDir:    os.UserHomeDir,
		logger:     logger,
	}
}

// Collect returns the labelled sections in a fixed order: logs, history,
// man page. Each section is "\n<Header>:\n<body>".
func (c *Collector) Collect(ctx context.Context, req Request) string {
	var sb strings.Builder

	if req.Logs {
		sb.WriteString("\nLogs:\n")
		sb.WriteString(c.readTail(c.SyslogPath, logsPlaceholder))
	}

	if req.History {
		if path, ok := c.historyPath(); ok {
			sb.WriteString("\nHistory:\n")
			sb.WriteString(c.readTail(path, historyPlaceholder))
		}
	}

	if name := strings.TrimSpace(req.Man); name != "" {
		fmt.Fprintf(&sb, "\nMan Page for %s:\n", name)
		sb.WriteString(headOf(c.manPage(ctx, name), c.MaxBytes))
	}

	return sb.String()
}

// historyPath resolves the history file. ok is false when no home directory
// can be determined, in which case the section is left out.
func (c *Collector) historyPath() (string, bool) {
	if c.HistoryPath != "" {
		return c.HistoryPath, true
	}
	home, err := c.homeDir()
	if err != nil || home == "" {
		c.logger.Debug("no home directory, skipping shell history", "err", err)
		return "", false
	}
	return filepath.Join(home, historyFileName), true
}

func (c *Collector) readTail(path, placeholder string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("could not read context source", "path", path, "err", err)
		return placeholder
	}
	return tailOf(strings.ToValidUTF8(string(data), "\uFFFD"), c.MaxBytes)
}

func (c *Collector) manPage(ctx context.Context, name string) string {
	page, err := c.Man.Read(ctx, name)
	if err != nil {
		c.logger.Warn("could not read man page", "command", name, "err", err)
		return fmt.Sprintf("Could not run man %s.", name)
	}
	if strings.TrimSpace(page) == "" {
		return fmt.Sprintf("No manual entry for %s.", name)
	}
	return page
}

// tailOf keeps the last limit bytes of s, starting at a line boundary.
func tailOf(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := s[len(s)-limit:]
	if i := strings.IndexByte(cut, '\n'); i >= 0 && i < len(cut)-1 {
		cut = cut[i+1:]
	}
	return truncationMarker + "\n" + strings.ToValidUTF8(cut, "")
}

// headOf keeps the first limit bytes of s, ending at a line boundary.
func headOf(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return strings.ToValidUTF8(cut, "") + "\n" + truncationMarker
}

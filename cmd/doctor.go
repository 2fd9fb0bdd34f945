package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arin/mimir/internal/ai"
	"github.com/arin/mimir/internal/config"
	"github.com/arin/mimir/internal/gather"
)

// errWarn marks a check that is not fatal for asking questions.
var errWarn = errors.New("warn")

func warnf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errWarn}, args...)...)
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system health and configuration",
	Long: `Run a health check on your mimir setup.
Verifies Ollama connectivity, model availability and access to the
local context sources (system logs, shell history, man).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFlags(cmd.Flags())
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		out := cmd.ErrOrStderr()
		ctx := cmd.Context()

		color.New(color.FgCyan, color.Bold).Fprintf(out, "\n  mimir doctor\n\n")

		r := &report{out: out}
		client := ai.NewClient(cfg, logger)

		reachable := r.check("Ollama server reachable", func() (string, error) {
			v, err := client.Version(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s (version %s)", client.Host(), v), nil
		})

		r.check(fmt.Sprintf("Model available (%s)", cfg.Model), func() (string, error) {
			if !reachable {
				return "", warnf("skipped, server not reachable")
			}
			ok, err := client.HasModel(ctx, cfg.Model)
			if err != nil {
				return "", err
			}
			if !ok {
				return "", fmt.Errorf("model not found, run: ollama pull %s", cfg.Model)
			}
			return "ready", nil
		})

		r.check("man installed", func() (string, error) {
			path, err := exec.LookPath("man")
			if err != nil {
				return "", warnf("man not found, --man will report that it could not run")
			}
			return path, nil
		})

		r.check("System logs readable", func() (string, error) {
			return readable(gather.DefaultSyslogPath, "--logs")
		})

		r.check("Shell history readable", func() (string, error) {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", warnf("no home directory, --history is skipped")
			}
			return readable(filepath.Join(home, ".bash_history"), "--history")
		})

		r.check("Config directory", func() (string, error) {
			dir := config.Dir()
			info, err := os.Stat(dir)
			if err != nil {
				return "", warnf("%s not found, defaults are used", dir)
			}
			if !info.IsDir() {
				return "", fmt.Errorf("%s exists but is not a directory", dir)
			}
			return dir, nil
		})

		r.check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
		})

		r.summary()
		return nil
	},
}

type report struct {
	out              io.Writer
	pass, fail, warn int
}

// check runs fn and prints its outcome. It reports whether fn succeeded.
func (r *report) check(name string, fn func() (string, error)) bool {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	dim := color.New(color.FgHiBlack)

	detail, err := fn()
	switch {
	case errors.Is(err, errWarn):
		yellow.Fprintf(r.out, "  ! %s\n", name)
		dim.Fprintf(r.out, "    %s\n", strings.TrimPrefix(err.Error(), errWarn.Error()+": "))
		r.warn++
		return false
	case err != nil:
		red.Fprintf(r.out, "  ✗ %s\n", name)
		dim.Fprintf(r.out, "    %s\n", err.Error())
		r.fail++
		return false
	}

	green.Fprintf(r.out, "  ✓ %s", name)
	if detail != "" {
		dim.Fprintf(r.out, ": %s", detail)
	}
	fmt.Fprintln(r.out)
	r.pass++
	return true
}

func (r *report) summary() {
	fmt.Fprintln(r.out)
	total := r.pass + r.fail + r.warn
	switch {
	case r.fail == 0 && r.warn == 0:
		color.New(color.FgGreen).Fprintf(r.out, "  All %d checks passed. You're good to go.\n\n", total)
	case r.fail == 0:
		color.New(color.FgYellow).Fprintf(r.out, "  %d passed, %d warnings. Questions work, some context flags may not.\n\n", r.pass, r.warn)
	default:
		color.New(color.FgRed).Fprintf(r.out, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", r.pass, r.fail, r.warn)
	}
}

func readable(path, flag string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", warnf("cannot read %s, %s will send a placeholder", path, flag)
	}
	f.Close()
	return path, nil
}

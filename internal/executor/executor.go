// Package executor runs external programs whose output feeds the prompt.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Result is the captured outcome of a program that was started.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success reports whether the program exited with status zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}

// Run starts name with args and waits for it. A non-zero exit status is not
// an error: it is reported through Result.ExitCode. The error is non-nil only
// when the program could not be started or was interrupted through ctx.
//
// extraEnv entries ("KEY=value") are appended to the current environment.
func Run(ctx context.Context, extraEnv []string, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), extraEnv...)
	cmd.Dir, _ = os.Getwd()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, ctx.Err()
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return nil, fmt.Errorf("failed to run %s: %w", name, err)
	}
}

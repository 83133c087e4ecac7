// Package collector runs external analysis tools against a candidate's
// repository and turns their output into rubric signal readings.
package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process is killed.
const waitDelay = 2 * time.Second

// Execution is the captured result of one process run.
type Execution struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Output returns stdout followed by stderr.
func (e Execution) Output() string {
	if e.Stderr == "" {
		return e.Stdout
	}
	return e.Stdout + "\n" + e.Stderr
}

// Runner executes a process in dir and kills it once timeout elapses.
type Runner interface {
	Run(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) (Execution, error)
}

// ExecRunner runs local processes with os/exec.
type ExecRunner struct {
	Env []string // extra KEY=VALUE pairs appended to the parent environment
}

// Run starts the process and waits for it. A non-zero exit code is not an
// error; ErrTimeout and ErrToolFailure are.
func (r ExecRunner) Run(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) (Execution, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	start := time.Now()
	err := cmd.Run()
	ex := Execution{
		Command:  strings.TrimSpace(name + " " + strings.Join(args, " ")),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		ex.ExitCode = -1
		return ex, fmt.Errorf("%w: %s after %s", ErrTimeout, ex.Command, timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			ex.ExitCode = exitErr.ExitCode()
			return ex, nil
		}
		ex.ExitCode = -1
		return ex, fmt.Errorf("%w: %s: %w", ErrToolFailure, ex.Command, err)
	}
	return ex, nil
}

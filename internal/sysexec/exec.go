// Package sysexec wraps best-effort subprocess shell-outs behind an
// injectable Runner so tests never fork real processes.
package sysexec

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type OSRunner struct{}

func (OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

type Executor struct {
	runner  Runner
	timeout time.Duration
}

func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{runner: OSRunner{}, timeout: timeout}
}

func NewExecutorWithRunner(timeout time.Duration, runner Runner) *Executor {
	return &Executor{runner: runner, timeout: timeout}
}

// GitBranch returns the current branch of the repository containing dir.
// Failure degrades to an empty branch, never an error: a missing git repo
// must not block the caller.
func (e *Executor) GitBranch(ctx context.Context, dir string) string {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.runner.Run(runCtx, "git", "-C", dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ""
	}
	branch := strings.TrimSpace(string(out))
	if branch == "HEAD" {
		// Detached head; not a named branch.
		return ""
	}
	return branch
}

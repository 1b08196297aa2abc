package supervisor

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// procHandle abstracts one live pseudo-terminal process. Injectable so
// tests never fork real processes.
type procHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(cols, rows uint16) error
	Kill() error
	// Wait blocks until the process exits and returns its exit code.
	Wait() int
	Close() error
}

// startProcFunc spawns an interactive shell in dir and returns its handle.
type startProcFunc func(dir string) (procHandle, error)

type realProc struct {
	ptmx *os.File
	cmd  *exec.Cmd
}

func startShellProc(dir string) (procHandle, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}
	cmd := exec.Command(shell)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("start pty: %w", err)
	}
	return &realProc{ptmx: ptmx, cmd: cmd}, nil
}

func (p *realProc) Read(b []byte) (int, error)  { return p.ptmx.Read(b) }
func (p *realProc) Write(b []byte) (int, error) { return p.ptmx.Write(b) }

func (p *realProc) Resize(cols, rows uint16) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

func (p *realProc) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *realProc) Wait() int {
	if err := p.cmd.Wait(); err != nil {
		if p.cmd.ProcessState != nil {
			return p.cmd.ProcessState.ExitCode()
		}
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

func (p *realProc) Close() error { return p.ptmx.Close() }

package sysexec_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentden/agentden/internal/sysexec"
)

type fakeRunner struct {
	output string
	err    error
}

func (r fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.output), nil
}

func TestGitBranch(t *testing.T) {
	tests := []struct {
		name   string
		runner fakeRunner
		want   string
	}{
		{name: "branch", runner: fakeRunner{output: "main\n"}, want: "main"},
		{name: "detached-head", runner: fakeRunner{output: "HEAD\n"}, want: ""},
		{name: "not-a-repo-degrades", runner: fakeRunner{err: errors.New("exit 128")}, want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := sysexec.NewExecutorWithRunner(time.Second, tc.runner)
			if got := exec.GitBranch(context.Background(), "/tmp"); got != tc.want {
				t.Fatalf("GitBranch()=%q want=%q", got, tc.want)
			}
		})
	}
}

package rrd

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandRunner abstracts command execution for testability. A non-zero
// exit is reported through exitCode with a nil err; err is reserved for
// failures to run the command at all (binary missing, context cancelled).
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (exitCode int, stdout, stderr string, err error)
}

// ExecCommandRunner implements CommandRunner using exec.CommandContext.
type ExecCommandRunner struct{}

func (ExecCommandRunner) Run(ctx context.Context, name string, args ...string) (int, string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), stdoutBuf.String(), stderrBuf.String(), nil
	}
	if err != nil {
		return -1, stdoutBuf.String(), stderrBuf.String(), err
	}
	return 0, stdoutBuf.String(), stderrBuf.String(), nil
}

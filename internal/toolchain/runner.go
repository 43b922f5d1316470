package toolchain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// CommandRunner executes external commands. Allows mocking in tests.
type CommandRunner interface {
	// Output runs the command and captures both output streams.
	Output(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)
	// Attach runs the command connected to the terminal.
	Attach(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner is the default CommandRunner using os/exec.
type ExecRunner struct{}

// Output runs a command in dir and returns what it printed.
func (r *ExecRunner) Output(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Attach runs a command in dir with the process's standard streams.
func (r *ExecRunner) Attach(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

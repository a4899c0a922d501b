package invoke

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

// Command is a fully prepared child process invocation.
type Command struct {
	Path  string
	Args  []string
	Env   []string
	Stdin io.Reader
}

// Output is what a finished child process produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands. The default implementation starts a real process; tests
// substitute their own.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts cmd and waits for it. A non-zero exit is reported through the returned
// error together with the captured output.
func (ExecRunner) Run(ctx context.Context, command Command) (Output, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, command.Path, command.Args...) //nolint:gosec
	cmd.Env = command.Env
	cmd.Stdin = command.Stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
	} else {
		out.ExitCode = -1
	}
	return out, err
}

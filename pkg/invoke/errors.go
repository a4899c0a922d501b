package invoke

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument marks calls rejected before any process was started.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// ExecutionError reports a plugin run that failed to start or exited non-zero. Stdout
// and Stderr are kept verbatim.
type ExecutionError struct {
	Plugin   string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, "plugin %s exited with code %d", e.Plugin, e.ExitCode)
	} else {
		fmt.Fprintf(&b, "plugin %s failed to run: %v", e.Plugin, e.Err)
	}
	if e.Stdout != "" {
		b.WriteString("\nOutput: " + e.Stdout)
	}
	if e.Stderr != "" {
		b.WriteString("\nStderr: " + e.Stderr)
	}
	return b.String()
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

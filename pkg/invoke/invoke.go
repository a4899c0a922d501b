// Package invoke turns a decoded tool call into a reptor child process: argv, environment,
// standard input and staged files are owned by the call and discarded afterwards.
package invoke

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tb0hdan/reptor-mcp/pkg/signature"
	"github.com/tb0hdan/reptor-mcp/pkg/specialcase"
)

const defaultBinary = "reptor"

// Options configures an Adapter.
type Options struct {
	// Binary is the reptor executable. Defaults to "reptor".
	Binary string
	Config Config
	// Env is the base environment of every child. Defaults to os.Environ().
	Env    []string
	Runner Runner
	// TempDir holds staged inline files. Empty means the system default.
	TempDir string
}

// Adapter executes plugins on behalf of generated operations.
type Adapter struct {
	binary  string
	config  Config
	baseEnv []string
	runner  Runner
	tempDir string
	logger  zerolog.Logger
}

// NewAdapter creates an Adapter.
func NewAdapter(logger zerolog.Logger, opts Options) *Adapter {
	if opts.Binary == "" {
		opts.Binary = defaultBinary
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	return &Adapter{
		binary:  opts.Binary,
		config:  opts.Config,
		baseEnv: opts.Env,
		runner:  opts.Runner,
		tempDir: opts.TempDir,
		logger:  logger.With().Str("component", "invoke").Logger(),
	}
}

// Request is one plugin invocation.
type Request struct {
	Plugin string
	Params []signature.Parameter
	Rule   specialcase.Rule
	Call   *Call
}

// Context is the per-call state of an invocation.
type Context struct {
	Config    Config
	Argv      []string
	Env       []string
	Stdin     string
	TempFiles []string
	Output    Output
}

// Result is the output of a successful invocation.
type Result struct {
	Stdout string
	Stderr string
}

// Invoke runs the plugin described by req. Argument errors wrap ErrInvalidArgument and
// are returned before any process starts; process failures are *ExecutionError.
func (a *Adapter) Invoke(ctx context.Context, req Request) (*Result, error) {
	call := req.Call
	if call == nil {
		call = &Call{Values: map[string]any{}}
	}

	ic := &Context{Config: a.config.WithOverrides(call.Overrides)}
	defer a.cleanup(ic)

	staged, err := a.stage(ic, req.Params, call.Values)
	if err != nil {
		return nil, err
	}

	ic.Argv, err = Argv{
		Plugin: req.Plugin,
		Params: req.Params,
		Rule:   req.Rule,
		Config: ic.Config,
		Values: call.Values,
		Staged: staged,
	}.Build()
	if err != nil {
		return nil, err
	}
	ic.Env = ic.Config.Env(a.baseEnv)
	ic.Stdin = stdinPayload(req.Params, call.Values)

	a.logger.Debug().Str("plugin", req.Plugin).Strs("argv", ic.Argv).Msg("running plugin")

	started := time.Now()
	ic.Output, err = a.runner.Run(ctx, Command{
		Path:  a.binary,
		Args:  ic.Argv,
		Env:   ic.Env,
		Stdin: strings.NewReader(ic.Stdin),
	})
	a.logger.Debug().Str("plugin", req.Plugin).Int("exit_code", ic.Output.ExitCode).
		Dur("duration", time.Since(started)).Msg("plugin finished")

	if err != nil {
		return nil, &ExecutionError{
			Plugin:   req.Plugin,
			ExitCode: ic.Output.ExitCode,
			Stdout:   ic.Output.Stdout,
			Stderr:   ic.Output.Stderr,
			Err:      err,
		}
	}
	return &Result{Stdout: ic.Output.Stdout, Stderr: ic.Output.Stderr}, nil
}

func stdinPayload(params []signature.Parameter, values map[string]any) string {
	for _, p := range params {
		if p.Role != signature.RoleStdin {
			continue
		}
		if value, ok := values[p.Name]; ok {
			return signature.Stringify(value)
		}
	}
	return ""
}

func (a *Adapter) stage(ic *Context, params []signature.Parameter, values map[string]any) (map[string][]string, error) {
	staged := make(map[string][]string)
	for _, p := range params {
		if p.Role != signature.RoleInlineFile {
			continue
		}
		contents, _ := values[p.Name].([]string)
		for _, content := range contents {
			path, err := a.writeTemp(content)
			if err != nil {
				return nil, err
			}
			ic.TempFiles = append(ic.TempFiles, path)
			staged[p.Target] = append(staged[p.Target], path)
		}
	}
	return staged, nil
}

func (a *Adapter) writeTemp(content string) (string, error) {
	tempFile, err := os.CreateTemp(a.tempDir, "reptor-mcp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := tempFile.Name()

	if _, err := tempFile.WriteString(content); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return path, nil
}

func (a *Adapter) cleanup(ic *Context) {
	for _, path := range ic.TempFiles {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			a.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove temp file")
		}
	}
}

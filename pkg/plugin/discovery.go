package plugin

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

//go:embed introspect.py
var introspectScript string

const defaultPython = "python3"

// Diagnostic records why a plugin was left out of the discovered set.
type Diagnostic struct {
	Plugin string `json:"plugin"`
	Reason string `json:"reason"`
}

// Result is the outcome of one discovery run.
type Result struct {
	Plugins     []Descriptor `json:"plugins"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Names returns the discovered plugin names in order.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Plugins))
	for _, p := range r.Plugins {
		names = append(names, p.Name)
	}
	return names
}

// CommandFunc runs name with args and env and returns its standard output.
type CommandFunc func(ctx context.Context, name string, args, env []string) ([]byte, error)

// Options configures a Discoverer.
type Options struct {
	// Python is the interpreter that has reptor installed.
	Python string
	// MainPath is prepended to PYTHONPATH when set.
	MainPath string
	// Env is the base environment of the introspection process.
	Env []string
}

// Discoverer enumerates installed reptor plugins and their argument parsers.
type Discoverer struct {
	logger zerolog.Logger
	python string
	env    []string
	run    CommandFunc
}

// NewDiscoverer creates a discoverer that introspects plugins with the given interpreter.
func NewDiscoverer(logger zerolog.Logger, opts Options) *Discoverer {
	python := opts.Python
	if python == "" {
		python = defaultPython
	}
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	return &Discoverer{
		logger: logger.With().Str("component", "discovery").Logger(),
		python: python,
		env:    WithPythonPath(env, opts.MainPath),
		run:    runCommand,
	}
}

// Discover runs the introspection script and decodes its report.
func (d *Discoverer) Discover(ctx context.Context) (*Result, error) {
	d.logger.Debug().Msgf("introspecting plugins with %s", d.python)

	output, err := d.run(ctx, d.python, []string{"-c", introspectScript}, d.env)
	if err != nil {
		return nil, fmt.Errorf("plugin introspection failed: %w", err)
	}

	result, err := Decode(bytes.NewReader(output))
	if err != nil {
		return nil, err
	}

	for _, diag := range result.Diagnostics {
		d.logger.Warn().Str("plugin", diag.Plugin).Msgf("plugin skipped: %s", diag.Reason)
	}
	d.logger.Info().Msgf("discovered %d plugins", len(result.Plugins))

	return result, nil
}

type rawPlugin struct {
	Name    string   `json:"name"`
	Summary string   `json:"summary"`
	Actions []Action `json:"actions"`
	Error   string   `json:"error"`
}

type rawReport struct {
	Plugins []json.RawMessage `json:"plugins"`
}

// Decode parses an introspection report. Plugins that failed introspection or carry
// malformed definitions are reported as diagnostics instead of failing the whole report.
func Decode(r io.Reader) (*Result, error) {
	var report rawReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode introspection report: %w", err)
	}

	result := &Result{}
	seen := make(map[string]bool, len(report.Plugins))

	for idx, raw := range report.Plugins {
		var entry rawPlugin
		if err := json.Unmarshal(raw, &entry); err != nil {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Plugin: fmt.Sprintf("#%d", idx),
				Reason: fmt.Sprintf("malformed plugin entry: %v", err),
			})
			continue
		}

		descriptor, err := buildDescriptor(entry)
		if err != nil {
			name := entry.Name
			if name == "" {
				name = fmt.Sprintf("#%d", idx)
			}
			result.Diagnostics = append(result.Diagnostics, Diagnostic{Plugin: name, Reason: err.Error()})
			continue
		}

		if seen[descriptor.Name] {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{
				Plugin: descriptor.Name,
				Reason: "duplicate plugin name",
			})
			continue
		}
		seen[descriptor.Name] = true
		result.Plugins = append(result.Plugins, descriptor)
	}

	sort.SliceStable(result.Plugins, func(i, j int) bool {
		return result.Plugins[i].Name < result.Plugins[j].Name
	})

	return result, nil
}

func buildDescriptor(entry rawPlugin) (Descriptor, error) {
	if strings.TrimSpace(entry.Name) == "" {
		return Descriptor{}, fmt.Errorf("plugin has no name")
	}
	if entry.Error != "" {
		return Descriptor{}, fmt.Errorf("argument definition failed: %s", entry.Error)
	}

	descriptor := Descriptor{
		Name:    entry.Name,
		Summary: entry.Summary,
	}

	index := make(map[string]int)
	for _, action := range entry.Actions {
		if action.Dest == "" {
			return Descriptor{}, fmt.Errorf("action %v has no destination", action.Flags)
		}
		if action.Dest == "help" {
			continue
		}
		pos, ok := index[action.Dest]
		if !ok {
			index[action.Dest] = len(descriptor.Arguments)
			descriptor.Arguments = append(descriptor.Arguments, Argument{Dest: action.Dest})
			pos = len(descriptor.Arguments) - 1
		}
		descriptor.Arguments[pos].Actions = append(descriptor.Arguments[pos].Actions, action)
	}

	return descriptor, nil
}

// WithPythonPath returns env with mainPath prepended to PYTHONPATH. An empty mainPath
// leaves env unchanged apart from moving PYTHONPATH to the end.
func WithPythonPath(env []string, mainPath string) []string {
	out := make([]string, 0, len(env)+1)
	existing := ""
	for _, kv := range env {
		if strings.HasPrefix(kv, "PYTHONPATH=") {
			existing = strings.TrimPrefix(kv, "PYTHONPATH=")
			continue
		}
		out = append(out, kv)
	}

	switch {
	case mainPath != "" && existing != "":
		out = append(out, "PYTHONPATH="+mainPath+string(filepath.ListSeparator)+existing)
	case mainPath != "":
		out = append(out, "PYTHONPATH="+mainPath)
	case existing != "":
		out = append(out, "PYTHONPATH="+existing)
	}

	return out
}

func runCommand(ctx context.Context, name string, args, env []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Env = env
	cmd.Stdin = strings.NewReader("")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w\nOutput: %s", err, strings.TrimSpace(stderr.String()))
	}

	return stdout.Bytes(), nil
}

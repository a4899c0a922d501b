package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"github.com/tb0hdan/reptor-mcp/pkg/plugin"
	"github.com/tb0hdan/reptor-mcp/pkg/signature"
	"github.com/tb0hdan/reptor-mcp/pkg/specialcase"
)

type recorded struct {
	command Command
	stdin   string
	files   map[string]string
}

// fakeRunner records commands instead of starting processes.
type fakeRunner struct {
	mu    sync.Mutex
	calls []recorded
	out   Output
	err   error
}

func (f *fakeRunner) Run(_ context.Context, cmd Command) (Output, error) {
	stdin, _ := io.ReadAll(cmd.Stdin)
	files := make(map[string]string)
	for _, arg := range cmd.Args {
		if data, err := os.ReadFile(arg); err == nil { //nolint:gosec
			files[arg] = string(data)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recorded{command: cmd, stdin: string(stdin), files: files})
	return f.out, f.err
}

func (f *fakeRunner) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type InvokeTestSuite struct {
	suite.Suite
	runner  *fakeRunner
	adapter *Adapter
	tempDir string
}

func (s *InvokeTestSuite) SetupTest() {
	s.runner = &fakeRunner{out: Output{Stdout: "ok\n"}}
	s.tempDir = s.T().TempDir()
	s.adapter = NewAdapter(zerolog.Nop(), Options{
		Binary:  "/usr/bin/reptor",
		Config:  Config{Server: "https://base.example", Token: "base-token", ProjectID: "p-base"},
		Env:     []string{"PATH=/usr/bin", "REPTOR_TOKEN=leaked", "HOME=/root"},
		Runner:  s.runner,
		TempDir: s.tempDir,
	})
}

func (s *InvokeTestSuite) fileParams() []signature.Parameter {
	descriptor := plugin.Descriptor{Name: "file", Arguments: []plugin.Argument{
		{Dest: "file", Actions: []plugin.Action{{Dest: "file", Kind: plugin.KindStore, Nargs: "*", Type: plugin.TypeFile}}},
	}}
	params := specialcase.Default().Lookup("file").Apply(signature.TranslateAll(descriptor))
	return append(params, ControlParameters()...)
}

func (s *InvokeTestSuite) invoke(plugin string, params []signature.Parameter, rule specialcase.Rule, raw string) (*Result, error) {
	call, err := Decode(params, json.RawMessage(raw))
	if err != nil {
		return nil, err
	}
	return s.adapter.Invoke(context.Background(), Request{Plugin: plugin, Params: params, Rule: rule, Call: call})
}

func (s *InvokeTestSuite) tempEntries() []os.DirEntry {
	entries, err := os.ReadDir(s.tempDir)
	s.Require().NoError(err)
	return entries
}

func (s *InvokeTestSuite) TestStdinAndEnvironment() {
	rule := specialcase.Default().Lookup("note")
	params := append(noteParams(), ControlParameters()...)

	result, err := s.invoke("note", params, rule, `{"_stdin_content":"hello","title":"T","_token":"call-token"}`)

	s.Require().NoError(err)
	s.Equal("ok\n", result.Stdout)

	call := s.runner.last()
	s.Equal("/usr/bin/reptor", call.command.Path)
	s.Equal([]string{"--notetitle=T", "note"}, call.command.Args)
	s.Equal("hello", call.stdin)
	s.ElementsMatch([]string{
		"PATH=/usr/bin", "HOME=/root",
		"REPTOR_SERVER=https://base.example", "REPTOR_TOKEN=call-token", "REPTOR_PROJECT_ID=p-base",
	}, call.command.Env)
	s.NotEqual("call-token", os.Getenv(EnvToken))
}

func (s *InvokeTestSuite) TestMainPathReachesChild() {
	adapter := NewAdapter(zerolog.Nop(), Options{
		Config: Config{Server: "https://base.example", Token: "t"},
		Env:    plugin.WithPythonPath([]string{"PATH=/usr/bin", "PYTHONPATH=/site"}, "/src/reptor"),
		Runner: s.runner,
	})
	params := append(noteParams(), ControlParameters()...)
	call, err := Decode(params, json.RawMessage(`{"_stdin_content":"x"}`))
	s.Require().NoError(err)

	_, err = adapter.Invoke(context.Background(), Request{
		Plugin: "note", Params: params, Rule: specialcase.Default().Lookup("note"), Call: call,
	})

	s.Require().NoError(err)
	s.Contains(s.runner.last().command.Env, "PYTHONPATH=/src/reptor"+string(filepath.ListSeparator)+"/site")
}

func (s *InvokeTestSuite) TestEmptyStdinWithoutPayload() {
	_, err := s.invoke("file", s.fileParams(), specialcase.Rule{}, `{"file":["a"]}`)

	s.Require().NoError(err)
	s.Equal("", s.runner.last().stdin)
}

func (s *InvokeTestSuite) TestInlineFilesRemovedOnSuccess() {
	_, err := s.invoke("file", s.fileParams(), specialcase.Default().Lookup("file"),
		`{"file_content":["first","second"]}`)

	s.Require().NoError(err)
	call := s.runner.last()
	s.Require().Len(call.command.Args, 3)
	s.Len(call.files, 2)
	s.Equal("first", call.files[call.command.Args[1]])
	s.Equal("second", call.files[call.command.Args[2]])
	s.Empty(s.tempEntries())
}

func (s *InvokeTestSuite) TestInlineFilesRemovedOnFailure() {
	s.runner.out = Output{Stdout: "partial", Stderr: "boom", ExitCode: 2}
	s.runner.err = errors.New("exit status 2")

	_, err := s.invoke("file", s.fileParams(), specialcase.Rule{}, `{"file_content":["x"]}`)

	var execErr *ExecutionError
	s.Require().ErrorAs(err, &execErr)
	s.Equal(2, execErr.ExitCode)
	s.Equal("boom", execErr.Stderr)
	s.Contains(err.Error(), "partial")
	s.Contains(err.Error(), "boom")
	s.Empty(s.tempEntries())
}

func (s *InvokeTestSuite) TestMissingRequiredNeverExecutes() {
	params := append(noteParams(), ControlParameters()...)

	_, err := s.invoke("note", params, specialcase.Default().Lookup("note"), `{"title":"T"}`)

	s.ErrorIs(err, ErrInvalidArgument)
	s.Empty(s.runner.calls)
}

func (s *InvokeTestSuite) TestInsecureOverride() {
	_, err := s.invoke("file", s.fileParams(), specialcase.Rule{}, `{"_insecure":true}`)

	s.Require().NoError(err)
	s.Equal([]string{"--insecure", "file"}, s.runner.last().command.Args)
}

func (s *InvokeTestSuite) TestConcurrentOverridesStayIsolated() {
	params := s.fileParams()
	const workers = 16

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw := fmt.Sprintf(`{"_project_id":"p-%d","file":["f-%d"]}`, i, i)
			if _, err := s.invoke("file", params, specialcase.Rule{}, raw); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	s.Require().Len(s.runner.calls, workers)
	for _, call := range s.runner.calls {
		file := call.command.Args[1]
		var n int
		_, err := fmt.Sscanf(file, "f-%d", &n)
		s.Require().NoError(err)
		s.Contains(call.command.Env, fmt.Sprintf("REPTOR_PROJECT_ID=p-%d", n))
	}
	s.Equal("p-base", s.adapter.config.ProjectID)
}

func TestInvokeTestSuite(t *testing.T) {
	suite.Run(t, new(InvokeTestSuite))
}

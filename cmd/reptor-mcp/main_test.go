package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tb0hdan/reptor-mcp/pkg/config"
)

// unreachablePython makes any attempt to discover plugins fail loudly, so a config error
// proves startup stopped before discovery.
func unreachablePython(t *testing.T) {
	t.Helper()
	t.Setenv("REPTOR_MCP_PYTHON", filepath.Join(t.TempDir(), "no-python"))
}

func TestRun_MissingServerStopsStartup(t *testing.T) {
	unreachablePython(t)
	t.Setenv("REPTOR_SERVER", "")
	t.Setenv("REPTOR_TOKEN", "token")

	err := run(context.Background(), nil, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "REPTOR_SERVER")
	assert.NotContains(t, err.Error(), "discover")
}

func TestRun_MissingTokenStopsStartup(t *testing.T) {
	unreachablePython(t)
	t.Setenv("REPTOR_SERVER", "https://demo.sysre.pt")
	t.Setenv("REPTOR_TOKEN", "")

	err := run(context.Background(), nil, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required environment variable REPTOR_TOKEN")
}

func TestRun_DiscoveryFailureStopsStartup(t *testing.T) {
	unreachablePython(t)
	t.Setenv("REPTOR_SERVER", "https://demo.sysre.pt")
	t.Setenv("REPTOR_TOKEN", "token")

	err := run(context.Background(), nil, &bytes.Buffer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to discover reptor plugins")
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"-version"}, &out))
	assert.Equal(t, ServiceName+" Version: "+strings.TrimSpace(Version)+"\n", out.String())
}

func TestRun_UnknownFlag(t *testing.T) {
	assert.Error(t, run(context.Background(), []string{"-bogus"}, &bytes.Buffer{}))
}

func TestAdapterOptions_SharesDiscoveryPythonPath(t *testing.T) {
	cfg := &config.Config{
		Server:    "https://demo.sysre.pt",
		Token:     "token",
		ProjectID: "p1",
		ReptorBin: "/opt/reptor/bin/reptor",
		MainPath:  "/src/reptor",
	}

	opts := adapterOptions(cfg, []string{"PATH=/usr/bin", "PYTHONPATH=/site"})

	assert.Equal(t, "/opt/reptor/bin/reptor", opts.Binary)
	assert.Equal(t, "p1", opts.Config.ProjectID)
	assert.Contains(t, opts.Env, "PYTHONPATH=/src/reptor"+string(filepath.ListSeparator)+"/site")
	assert.Contains(t, opts.Env, "PATH=/usr/bin")
}

package server

import (
	"context"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tb0hdan/reptor-mcp/pkg/models"
	"github.com/tb0hdan/reptor-mcp/pkg/storage"
)

func setupTestStorage(t *testing.T) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(storage.Config{})
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newTestServer(store storage.Storage) *Server {
	return NewServer(&mcp.Implementation{Name: "test-server", Version: "1.0.0"}, store)
}

type echoInput struct {
	Text string `json:"text"`
}

func rawHandler(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "ok"}}}, nil
}

func echoHandler(_ context.Context, _ *mcp.CallToolRequest, in echoInput) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: in.Text}}}, nil, nil
}

func TestServer_Storage(t *testing.T) {
	store := setupTestStorage(t)
	srv := newTestServer(store)

	if srv.Storage() != store {
		t.Fatal("expected Storage() to return the store passed to NewServer")
	}

	exec := &models.ToolExecution{ToolName: "test", Success: true}
	if err := srv.Storage().CreateToolExecution(context.Background(), exec); err != nil {
		t.Fatalf("failed to use retrieved storage: %v", err)
	}
}

func TestServer_AddTool(t *testing.T) {
	srv := newTestServer(nil)
	schema := &jsonschema.Schema{Type: "object"}

	if err := srv.AddTool(&mcp.Tool{Name: "note", InputSchema: schema}, rawHandler); err != nil {
		t.Fatalf("AddTool() returned error: %v", err)
	}
	if err := AddTypedTool(srv, &mcp.Tool{Name: "echo"}, echoHandler); err != nil {
		t.Fatalf("AddTypedTool() returned error: %v", err)
	}

	if !srv.HasTool("note") || !srv.HasTool("echo") {
		t.Error("expected both tools to be registered")
	}
	names := srv.ToolNames()
	if len(names) != 2 || names[0] != "echo" || names[1] != "note" {
		t.Errorf("unexpected tool names: %v", names)
	}
}

func TestServer_AddTool_Duplicate(t *testing.T) {
	srv := newTestServer(nil)
	schema := &jsonschema.Schema{Type: "object"}

	if err := srv.AddTool(&mcp.Tool{Name: "note", InputSchema: schema}, rawHandler); err != nil {
		t.Fatalf("AddTool() returned error: %v", err)
	}
	if err := srv.AddTool(&mcp.Tool{Name: "note", InputSchema: schema}, rawHandler); err == nil {
		t.Error("expected error for duplicate tool name")
	}
	if err := AddTypedTool(srv, &mcp.Tool{Name: "note"}, echoHandler); err == nil {
		t.Error("expected error for duplicate typed tool name")
	}
}

func TestValidToolName(t *testing.T) {
	tests := map[string]bool{
		"note":          true,
		"list_findings": true,
		"deepl-v2.1":    true,
		"":              false,
		"has space":     false,
		"ümlaut":        false,
	}

	for name, want := range tests {
		if got := ValidToolName(name); got != want {
			t.Errorf("ValidToolName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestServer_Shutdown(t *testing.T) {
	if err := newTestServer(setupTestStorage(t)).Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() returned error: %v", err)
	}
	if err := newTestServer(nil).Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() with nil storage returned error: %v", err)
	}
}

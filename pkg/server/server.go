package server

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tb0hdan/reptor-mcp/pkg/storage"
)

var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// ValidToolName reports whether name is accepted as an MCP tool name.
func ValidToolName(name string) bool {
	return toolNamePattern.MatchString(name)
}

// Server is the MCP server together with the execution log. Tool registration goes
// through AddTool or AddTypedTool so names stay unique.
type Server struct {
	*mcp.Server
	storage storage.Storage
	tools   map[string]struct{}
}

func NewServer(impl *mcp.Implementation, store storage.Storage) *Server {
	return &Server{
		Server:  mcp.NewServer(impl, nil),
		storage: store,
		tools:   make(map[string]struct{}),
	}
}

func (s *Server) Storage() storage.Storage {
	return s.storage
}

// HasTool reports whether a tool with name is registered.
func (s *Server) HasTool(name string) bool {
	_, ok := s.tools[name]
	return ok
}

// ToolNames returns the registered tool names in sorted order.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Server) reserve(name string) error {
	if !ValidToolName(name) {
		return fmt.Errorf("invalid tool name %q", name)
	}
	if s.HasTool(name) {
		return fmt.Errorf("tool %q is already registered", name)
	}
	s.tools[name] = struct{}{}
	return nil
}

// AddTool registers a tool with an explicit input schema.
func (s *Server) AddTool(tool *mcp.Tool, handler mcp.ToolHandler) error {
	if err := s.reserve(tool.Name); err != nil {
		return err
	}
	s.Server.AddTool(tool, handler)
	return nil
}

// AddTypedTool registers a tool whose schema is inferred from In.
func AddTypedTool[In, Out any](s *Server, tool *mcp.Tool, handler mcp.ToolHandlerFor[In, Out]) error {
	if err := s.reserve(tool.Name); err != nil {
		return err
	}
	mcp.AddTool(s.Server, tool, handler)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}

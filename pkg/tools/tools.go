package tools

import (
	"github.com/tb0hdan/reptor-mcp/pkg/server"
)

// Tool is a set of operations registered on the server at startup.
type Tool interface {
	Register(srv *server.Server) error
}

package storage

import (
	"context"

	"github.com/tb0hdan/reptor-mcp/pkg/models"
)

// Filter narrows an execution listing. Zero values match everything.
type Filter struct {
	ToolName  string
	SessionID string
	Kind      string
	Limit     int
	Offset    int
}

type Storage interface {
	// Tool execution operations
	CreateToolExecution(ctx context.Context, exec *models.ToolExecution) error
	GetToolExecution(ctx context.Context, id uint) (*models.ToolExecution, error)
	ListToolExecutions(ctx context.Context, filter Filter) ([]models.ToolExecution, int64, error)
	DeleteToolExecution(ctx context.Context, id uint) error
	DeleteAllToolExecutions(ctx context.Context) error

	// Lifecycle
	Close() error
}

package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/tb0hdan/reptor-mcp/pkg/server"
	"github.com/tb0hdan/reptor-mcp/pkg/storage"
	"github.com/tb0hdan/reptor-mcp/pkg/tools"
)

const (
	toolName     = "history"
	defaultLimit = 10
)

type Input struct {
	Action    string `json:"action" jsonschema:"one of list, get, delete, clear" validate:"required,oneof=list get delete clear"`
	ID        uint   `json:"id,omitempty" jsonschema:"execution id for get and delete"`
	Tool      string `json:"tool,omitempty" jsonschema:"only list calls of this tool"`
	SessionID string `json:"session_id,omitempty" jsonschema:"only list calls of this session"`
	Kind      string `json:"kind,omitempty" jsonschema:"only list plugin or custom calls" validate:"omitempty,oneof=plugin custom"`
	Limit     int    `json:"limit,omitempty" validate:"min=0,max=100"`
	Offset    int    `json:"offset,omitempty" validate:"min=0"`
}

type Tool struct {
	logger    zerolog.Logger
	validator *validator.Validate
	store     storage.Storage
}

func (t *Tool) Register(srv *server.Server) error {
	if srv.Storage() == nil {
		return errors.New("history requires an execution log")
	}
	t.store = srv.Storage()

	tool := &mcp.Tool{
		Name:        toolName,
		Description: "Browse and manage the tool execution log. Actions: list (paginated, optionally filtered by tool, session or kind), get (by ID), delete (by ID), clear (all).",
	}

	if err := server.AddTypedTool(srv, tool, t.HistoryHandler); err != nil {
		return fmt.Errorf("failed to register %s: %w", toolName, err)
	}
	t.logger.Debug().Msg("history tool registered")

	return nil
}

func (t *Tool) HistoryHandler(ctx context.Context, _ *mcp.CallToolRequest, input Input) (*mcp.CallToolResult, any, error) {
	if err := t.validator.Struct(input); err != nil {
		return nil, nil, fmt.Errorf("validation error: %w", err)
	}

	var resultText string

	switch input.Action {
	case "list":
		limit := input.Limit
		if limit == 0 {
			limit = defaultLimit
		}
		executions, total, err := t.store.ListToolExecutions(ctx, storage.Filter{
			ToolName:  input.Tool,
			SessionID: input.SessionID,
			Kind:      input.Kind,
			Limit:     limit,
			Offset:    input.Offset,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list executions: %w", err)
		}
		data, _ := json.MarshalIndent(map[string]any{
			"total":      total,
			"limit":      limit,
			"offset":     input.Offset,
			"executions": executions,
		}, "", "  ")
		resultText = string(data)

	case "get":
		if input.ID == 0 {
			return nil, nil, errors.New("id is required for get action")
		}
		exec, err := t.store.GetToolExecution(ctx, input.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("execution %d not found", input.ID)
		}
		if err != nil {
			return nil, nil, err
		}
		data, _ := json.MarshalIndent(exec, "", "  ")
		resultText = string(data)

	case "delete":
		if input.ID == 0 {
			return nil, nil, errors.New("id is required for delete action")
		}
		err := t.store.DeleteToolExecution(ctx, input.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("execution %d not found", input.ID)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to delete execution: %w", err)
		}
		resultText = fmt.Sprintf("Execution %d deleted successfully", input.ID)

	case "clear":
		if err := t.store.DeleteAllToolExecutions(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to clear executions: %w", err)
		}
		resultText = "All execution history cleared"
	}

	return tools.TextResult(resultText), nil, nil
}

func New(logger zerolog.Logger) tools.Tool {
	return &Tool{
		logger:    logger.With().Str("tool", toolName).Logger(),
		validator: validator.New(),
	}
}

package tools

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/tb0hdan/reptor-mcp/pkg/models"
	"github.com/tb0hdan/reptor-mcp/pkg/storage"
	"github.com/tb0hdan/reptor-mcp/pkg/types"
)

const redacted = "[redacted]"

// Recorder writes tool calls to the execution log without blocking the caller.
type Recorder struct {
	store  storage.Storage
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewRecorder creates a recorder. A nil store disables recording.
func NewRecorder(store storage.Storage, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Wait blocks until every pending record has been written.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

type noteKey struct{}

type callNote struct {
	mu       sync.Mutex
	exitCode *int
}

// SetExitCode attaches the exit code of a started process to the current call record.
func SetExitCode(ctx context.Context, code int) {
	note, ok := ctx.Value(noteKey{}).(*callNote)
	if !ok {
		return
	}
	note.mu.Lock()
	note.exitCode = &code
	note.mu.Unlock()
}

// WrapToolHandler wraps a typed tool handler to add execution logging.
func WrapToolHandler[In, Out any](
	r *Recorder,
	toolName string,
	handler mcp.ToolHandlerFor[In, Out],
) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input In) (*mcp.CallToolResult, Out, error) {
		startTime := time.Now()
		inputJSON, _ := json.Marshal(input)

		result, output, err := handler(ctx, req, input)

		r.record(req, toolName, models.KindCustom, inputJSON, nil, time.Since(startTime), result, err)
		return result, output, err
	}
}

// WrapRawHandler wraps a handler that decodes its own arguments.
func (r *Recorder) WrapRawHandler(toolName string, handler mcp.ToolHandler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startTime := time.Now()

		var inputJSON []byte
		if req != nil && req.Params != nil {
			inputJSON = req.Params.Arguments
		}

		note := &callNote{}
		result, err := handler(context.WithValue(ctx, noteKey{}, note), req)

		note.mu.Lock()
		exitCode := note.exitCode
		note.mu.Unlock()

		r.record(req, toolName, models.KindPlugin, inputJSON, exitCode, time.Since(startTime), result, err)
		return result, err
	}
}

func (r *Recorder) record(
	req *mcp.CallToolRequest,
	toolName, kind string,
	inputJSON []byte,
	exitCode *int,
	duration time.Duration,
	result *mcp.CallToolResult,
	err error,
) {
	if r == nil || r.store == nil {
		return
	}

	sessionID := ""
	if req != nil && req.Session != nil {
		sessionID = req.Session.ID()
	}

	exec := &models.ToolExecution{
		SessionID:  sessionID,
		ToolName:   toolName,
		Kind:       kind,
		InputJSON:  redactInput(inputJSON),
		ExitCode:   exitCode,
		DurationMs: duration.Milliseconds(),
		Success:    err == nil,
	}

	switch {
	case err != nil:
		exec.ErrorMessage = err.Error()
	case result != nil:
		outputJSON, _ := json.Marshal(result)
		exec.OutputJSON = string(outputJSON)
		if result.IsError {
			exec.Success = false
			exec.ErrorMessage = ResultText(result)
		}
	}

	// Using background context intentionally - logging should complete even if request is cancelled.
	r.wg.Add(1)
	go func() { //nolint:contextcheck
		defer r.wg.Done()
		if err := r.store.CreateToolExecution(context.Background(), exec); err != nil {
			r.logger.Warn().Err(err).Str("tool", toolName).Msg("Failed to record tool execution")
			return
		}
		r.logger.Debug().
			Uint("id", exec.ID).
			Str("tool", toolName).
			Dur("duration", exec.Duration()).
			Bool("failed", exec.Failed()).
			Msg("tool execution recorded")
	}()
}

// redactInput hides credentials passed as per-call overrides.
func redactInput(input []byte) string {
	if len(input) == 0 {
		return ""
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil {
		return string(input)
	}
	if _, ok := fields[types.ParamToken]; !ok {
		return string(input)
	}
	fields[types.ParamToken], _ = json.Marshal(redacted)
	data, err := json.Marshal(fields)
	if err != nil {
		return string(input)
	}
	return string(data)
}

// ResultText joins the text blocks of a tool result.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

package plugins

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/tb0hdan/reptor-mcp/pkg/invoke"
	"github.com/tb0hdan/reptor-mcp/pkg/plugin"
	"github.com/tb0hdan/reptor-mcp/pkg/signature"
	"github.com/tb0hdan/reptor-mcp/pkg/specialcase"
	"github.com/tb0hdan/reptor-mcp/pkg/tools"
)

// Invoker runs a plugin call.
type Invoker interface {
	Invoke(ctx context.Context, req invoke.Request) (*invoke.Result, error)
}

// Operation is the tool generated for one plugin. It is immutable once built.
type Operation struct {
	name        string
	description string
	params      []signature.Parameter
	schema      *jsonschema.Schema
	rule        specialcase.Rule
	invoker     Invoker
	logger      zerolog.Logger
}

// NewOperation translates a plugin descriptor into an operation.
func NewOperation(descriptor plugin.Descriptor, rule specialcase.Rule, invoker Invoker, logger zerolog.Logger) (*Operation, error) {
	params := rule.Apply(signature.TranslateAll(descriptor))

	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate parameter %q", p.Name)
		}
		seen[p.Name] = true
	}
	description := signature.Describe(descriptor.Summary, params)

	for _, control := range invoke.ControlParameters() {
		if seen[control.Name] {
			return nil, fmt.Errorf("parameter %q clashes with a control parameter", control.Name)
		}
		params = append(params, control)
	}

	return &Operation{
		name:        descriptor.Name,
		description: description,
		params:      params,
		schema:      signature.Schema(params),
		rule:        rule,
		invoker:     invoker,
		logger:      logger.With().Str("tool", descriptor.Name).Logger(),
	}, nil
}

// Name returns the tool name.
func (o *Operation) Name() string {
	return o.name
}

// Params returns the operation's parameters, control parameters included.
func (o *Operation) Params() []signature.Parameter {
	return o.params
}

// Tool returns the MCP tool definition.
func (o *Operation) Tool() *mcp.Tool {
	return &mcp.Tool{
		Name:        o.name,
		Description: o.description,
		InputSchema: o.schema,
	}
}

// Handle serves one call. Argument and execution failures are reported as error
// results so the caller sees the plugin's output.
func (o *Operation) Handle(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var raw []byte
	if req != nil && req.Params != nil {
		raw = req.Params.Arguments
	}

	call, err := invoke.Decode(o.params, raw)
	if err != nil {
		o.logger.Debug().Err(err).Msg("rejected arguments")
		return tools.ErrorResult(err), nil
	}

	result, err := o.invoker.Invoke(ctx, invoke.Request{
		Plugin: o.name,
		Params: o.params,
		Rule:   o.rule,
		Call:   call,
	})
	if err != nil {
		var execErr *invoke.ExecutionError
		if errors.As(err, &execErr) && execErr.ExitCode >= 0 {
			tools.SetExitCode(ctx, execErr.ExitCode)
		}
		o.logger.Warn().Err(err).Msg("plugin call failed")
		return tools.ErrorResult(err), nil
	}

	tools.SetExitCode(ctx, 0)
	return tools.TextResult(tools.Paginate(result.Stdout, call.MaxLines, call.Offset), result.Stderr), nil
}

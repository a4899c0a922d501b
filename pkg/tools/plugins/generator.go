// Package plugins registers one tool per discovered reptor plugin.
package plugins

import (
	"github.com/rs/zerolog"
	"github.com/tb0hdan/reptor-mcp/pkg/plugin"
	"github.com/tb0hdan/reptor-mcp/pkg/server"
	"github.com/tb0hdan/reptor-mcp/pkg/specialcase"
	"github.com/tb0hdan/reptor-mcp/pkg/tools"
)

// Generator turns plugin descriptors into registered tools.
type Generator struct {
	logger      zerolog.Logger
	plugins     []plugin.Descriptor
	table       specialcase.Table
	invoker     Invoker
	recorder    *tools.Recorder
	operations  []*Operation
	diagnostics []plugin.Diagnostic
}

// NewGenerator creates a generator for the given plugins.
func NewGenerator(
	logger zerolog.Logger,
	plugins []plugin.Descriptor,
	table specialcase.Table,
	invoker Invoker,
	recorder *tools.Recorder,
) *Generator {
	return &Generator{
		logger:   logger.With().Str("component", "generator").Logger(),
		plugins:  plugins,
		table:    table,
		invoker:  invoker,
		recorder: recorder,
	}
}

// Register adds one tool per plugin. Plugins that cannot be exposed are skipped and
// reported through Diagnostics. It returns the number of registered tools. Custom
// operations must be registered first so their names take precedence.
func (g *Generator) Register(srv *server.Server) int {
	for _, descriptor := range g.plugins {
		if !server.ValidToolName(descriptor.Name) {
			g.skip(descriptor.Name, "name is not a valid tool name")
			continue
		}
		if srv.HasTool(descriptor.Name) {
			g.skip(descriptor.Name, "name clashes with an existing tool")
			continue
		}

		op, err := NewOperation(descriptor, g.table.Lookup(descriptor.Name), g.invoker, g.logger)
		if err != nil {
			g.skip(descriptor.Name, err.Error())
			continue
		}

		if err := srv.AddTool(op.Tool(), g.recorder.WrapRawHandler(op.Name(), op.Handle)); err != nil {
			g.skip(descriptor.Name, err.Error())
			continue
		}
		g.operations = append(g.operations, op)
		g.logger.Debug().Str("tool", op.Name()).Int("params", len(op.Params())).Msg("plugin tool registered")
	}

	g.logger.Info().Int("registered", len(g.operations)).Int("skipped", len(g.diagnostics)).Msg("plugin tools generated")
	return len(g.operations)
}

func (g *Generator) skip(name, reason string) {
	g.diagnostics = append(g.diagnostics, plugin.Diagnostic{Plugin: name, Reason: reason})
	g.logger.Warn().Str("plugin", name).Str("reason", reason).Msg("Skipping plugin")
}

// Operations returns the registered operations.
func (g *Generator) Operations() []*Operation {
	return g.operations
}

// Diagnostics returns the plugins that were not registered and why.
func (g *Generator) Diagnostics() []plugin.Diagnostic {
	return g.diagnostics
}

// Package templates uploads finding templates to SysReptor.
package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/tb0hdan/reptor-mcp/pkg/server"
	"github.com/tb0hdan/reptor-mcp/pkg/sysreptor"
	"github.com/tb0hdan/reptor-mcp/pkg/tools"
)

const ToolName = "upload_template"

// ErrDuplicate is returned when a template with the same main title already exists.
var ErrDuplicate = errors.New("template already exists")

// Client is the subset of the SysReptor API used here.
type Client interface {
	SearchTemplates(ctx context.Context, search string) ([]sysreptor.FindingTemplate, error)
	CreateTemplate(ctx context.Context, template *sysreptor.FindingTemplate) (*sysreptor.FindingTemplate, error)
}

type Input struct {
	TemplateData string `json:"template_data" jsonschema:"the finding template as JSON or TOML text" validate:"required"`
	Format       string `json:"format,omitempty" jsonschema:"auto (default), json or toml" validate:"omitempty,oneof=auto json toml"`
}

type Tool struct {
	logger    zerolog.Logger
	validator *validator.Validate
	client    Client
	recorder  *tools.Recorder
}

func New(logger zerolog.Logger, client Client, recorder *tools.Recorder) tools.Tool {
	return &Tool{
		logger:    logger.With().Str("tool", ToolName).Logger(),
		validator: validator.New(),
		client:    client,
		recorder:  recorder,
	}
}

func (t *Tool) Register(srv *server.Server) error {
	tool := &mcp.Tool{
		Name: ToolName,
		Description: "Uploads a finding template given as JSON or TOML text. " +
			"The template needs at least one translation with a language and a data.title. " +
			"Templates whose main title already exists are rejected. Returns the created template as JSON.",
	}
	if err := server.AddTypedTool(srv, tool, tools.WrapToolHandler(t.recorder, ToolName, t.UploadHandler)); err != nil {
		return fmt.Errorf("failed to register %s: %w", ToolName, err)
	}
	t.logger.Debug().Msg("upload_template tool registered")
	return nil
}

func (t *Tool) UploadHandler(ctx context.Context, _ *mcp.CallToolRequest, input Input) (*mcp.CallToolResult, any, error) {
	if err := t.validator.Struct(input); err != nil {
		return nil, nil, fmt.Errorf("validation error: %w", err)
	}

	template, err := Parse(input.TemplateData, input.Format)
	if err != nil {
		return nil, nil, err
	}
	if err := t.Prepare(template); err != nil {
		return nil, nil, err
	}

	title := template.Main().Title()
	if err := t.checkDuplicate(ctx, title); err != nil {
		return nil, nil, err
	}

	created, err := t.client.CreateTemplate(ctx, template)
	if err != nil {
		return nil, nil, err
	}
	if created.ID == "" {
		return nil, nil, errors.New("server accepted the template but returned no id")
	}

	data, err := json.MarshalIndent(created, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode template: %w", err)
	}

	t.logger.Info().Str("id", created.ID).Str("title", title).Msg("template uploaded")
	return tools.TextResult(string(data)), nil, nil
}

// Prepare validates a parsed template and marks the first translation main when none is.
func (t *Tool) Prepare(template *sysreptor.FindingTemplate) error {
	template.ID = ""
	if err := t.validator.Struct(template); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	mains := 0
	for _, translation := range template.Translations {
		if translation.IsMain {
			mains++
		}
	}
	switch {
	case mains > 1:
		return errors.New("invalid template: only one translation may be marked is_main")
	case mains == 0:
		template.Translations[0].IsMain = true
	}

	for i, translation := range template.Translations {
		if strings.TrimSpace(translation.Title()) == "" {
			return fmt.Errorf("invalid template: translation %d (%s) has no data.title", i, translation.Language)
		}
	}
	if template.Tags == nil {
		template.Tags = []string{}
	}
	return nil
}

func (t *Tool) checkDuplicate(ctx context.Context, title string) error {
	existing, err := t.client.SearchTemplates(ctx, title)
	if err != nil {
		return err
	}
	for i := range existing {
		main := existing[i].Main()
		if main == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(main.Title()), strings.TrimSpace(title)) {
			return fmt.Errorf("%w: %q (id %s)", ErrDuplicate, title, existing[i].ID)
		}
	}
	return nil
}

// Package findings provides read-only operations over the findings of a SysReptor
// project.
package findings

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

const (
	ListToolName    = "list_findings"
	DetailsToolName = "get_finding_details"

	notAvailable = "N/A"
)

// ErrNoProject is returned when neither the call nor the configuration names a project.
var ErrNoProject = errors.New("project id not provided and no default project id configured (REPTOR_PROJECT_ID)")

// Client is the subset of the SysReptor API used here.
type Client interface {
	ListFindings(ctx context.Context, projectID string) ([]sysreptor.Finding, error)
	GetFinding(ctx context.Context, projectID, findingID string) (*sysreptor.Finding, error)
}

type ListInput struct {
	ProjectID     string `json:"project_id,omitempty" jsonschema:"project id, defaults to REPTOR_PROJECT_ID"`
	Status        string `json:"status,omitempty" jsonschema:"only findings with this status, e.g. open or in-progress"`
	Severity      string `json:"severity,omitempty" jsonschema:"only findings with this severity, e.g. critical or high"`
	TitleContains string `json:"title_contains,omitempty" jsonschema:"only findings whose title contains this text (case-insensitive)"`
}

type DetailsInput struct {
	FindingID string `json:"finding_id" jsonschema:"id of the finding" validate:"required"`
	ProjectID string `json:"project_id,omitempty" jsonschema:"project id, defaults to REPTOR_PROJECT_ID"`
}

// Summary is one entry of the list_findings result.
type Summary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Severity string `json:"severity"`
	CVSS     string `json:"cvss"`
}

type Tool struct {
	logger    zerolog.Logger
	validator *validator.Validate
	client    Client
	projectID string
	recorder  *tools.Recorder
}

func New(logger zerolog.Logger, client Client, defaultProjectID string, recorder *tools.Recorder) tools.Tool {
	return &Tool{
		logger:    logger.With().Str("tool", "findings").Logger(),
		validator: validator.New(),
		client:    client,
		projectID: defaultProjectID,
		recorder:  recorder,
	}
}

func (t *Tool) Register(srv *server.Server) error {
	listTool := &mcp.Tool{
		Name: ListToolName,
		Description: "Lists findings of a project as JSON (id, title, status, severity, cvss). " +
			"Filters are case-insensitive; status and severity must match exactly, title_contains matches a substring.",
	}
	if err := server.AddTypedTool(srv, listTool, tools.WrapToolHandler(t.recorder, ListToolName, t.ListHandler)); err != nil {
		return fmt.Errorf("failed to register %s: %w", ListToolName, err)
	}

	detailsTool := &mcp.Tool{
		Name:        DetailsToolName,
		Description: "Retrieves the full details of one finding as JSON (id, status, order, data).",
	}
	if err := server.AddTypedTool(srv, detailsTool, tools.WrapToolHandler(t.recorder, DetailsToolName, t.DetailsHandler)); err != nil {
		return fmt.Errorf("failed to register %s: %w", DetailsToolName, err)
	}

	t.logger.Debug().Msg("findings tools registered")
	return nil
}

func (t *Tool) project(requested string) (string, error) {
	if id := strings.TrimSpace(requested); id != "" {
		return id, nil
	}
	if t.projectID != "" {
		return t.projectID, nil
	}
	return "", ErrNoProject
}

func (t *Tool) ListHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, any, error) {
	projectID, err := t.project(input.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	findings, err := t.client.ListFindings(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	summaries := Filter(findings, input.Status, input.Severity, input.TitleContains)
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode findings: %w", err)
	}

	t.logger.Debug().Str("project", projectID).Int("total", len(findings)).Int("matched", len(summaries)).Msg("findings listed")
	return tools.TextResult(string(data)), nil, nil
}

// Filter applies the list_findings filters. Empty filters match everything.
func Filter(findings []sysreptor.Finding, status, severity, titleContains string) []Summary {
	summaries := make([]Summary, 0, len(findings))
	for _, f := range findings {
		if status != "" && !strings.EqualFold(f.Status, status) {
			continue
		}
		if severity != "" && !strings.EqualFold(f.Field("severity"), severity) {
			continue
		}
		if titleContains != "" && !strings.Contains(strings.ToLower(f.Field("title")), strings.ToLower(titleContains)) {
			continue
		}
		summaries = append(summaries, Summary{
			ID:       f.ID,
			Title:    orNA(f.Field("title")),
			Status:   f.Status,
			Severity: orNA(f.Field("severity")),
			CVSS:     orNA(f.Field("cvss")),
		})
	}
	return summaries
}

func orNA(value string) string {
	if value == "" {
		return notAvailable
	}
	return value
}

func (t *Tool) DetailsHandler(ctx context.Context, _ *mcp.CallToolRequest, input DetailsInput) (*mcp.CallToolResult, any, error) {
	if err := t.validator.Struct(input); err != nil {
		return nil, nil, fmt.Errorf("validation error: %w", err)
	}
	projectID, err := t.project(input.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	finding, err := t.client.GetFinding(ctx, projectID, input.FindingID)
	if errors.Is(err, sysreptor.ErrNotFound) {
		return nil, nil, fmt.Errorf("finding %q not found in project %q", input.FindingID, projectID)
	}
	if err != nil {
		return nil, nil, err
	}

	data, err := json.MarshalIndent(finding, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode finding: %w", err)
	}
	return tools.TextResult(string(data)), nil, nil
}

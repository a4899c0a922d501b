package sysreptor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Finding is a project finding as returned by the API.
type Finding struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"`
	Order    int            `json:"order"`
	Language string         `json:"language,omitempty"`
	Assignee any            `json:"assignee,omitempty"`
	Template *string        `json:"template,omitempty"`
	Created  string         `json:"created,omitempty"`
	Updated  string         `json:"updated,omitempty"`
	Data     map[string]any `json:"data"`
}

// Field returns a data field rendered as text, or "" when absent.
func (f Finding) Field(name string) string {
	value, ok := f.Data[name]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func findingsPath(projectID string) string {
	return fmt.Sprintf("/api/v1/pentestprojects/%s/findings/", url.PathEscape(projectID))
}

// ListFindings returns every finding of a project.
func (c *Client) ListFindings(ctx context.Context, projectID string) ([]Finding, error) {
	findings, err := list[Finding](ctx, c, findingsPath(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}
	return findings, nil
}

// GetFinding returns one finding. A missing finding yields an error matching ErrNotFound.
func (c *Client) GetFinding(ctx context.Context, projectID, findingID string) (*Finding, error) {
	data, err := c.do(ctx, http.MethodGet, findingsPath(projectID)+url.PathEscape(findingID)+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get finding: %w", err)
	}

	var finding Finding
	if err := json.Unmarshal(data, &finding); err != nil {
		return nil, fmt.Errorf("failed to decode finding: %w", err)
	}
	return &finding, nil
}

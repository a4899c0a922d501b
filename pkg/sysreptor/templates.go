package sysreptor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const templatesPath = "/api/v1/findingtemplates/"

// TemplateTranslation is one language version of a finding template.
type TemplateTranslation struct {
	ID       string         `json:"id,omitempty" toml:"id"`
	Language string         `json:"language" toml:"language" validate:"required"`
	IsMain   bool           `json:"is_main" toml:"is_main"`
	Status   string         `json:"status,omitempty" toml:"status"`
	Data     map[string]any `json:"data" toml:"data" validate:"required"`
}

// Title returns the translation's title field.
func (t TemplateTranslation) Title() string {
	title, _ := t.Data["title"].(string)
	return title
}

// FindingTemplate is a reusable finding template.
type FindingTemplate struct {
	ID           string                `json:"id,omitempty" toml:"id"`
	Tags         []string              `json:"tags" toml:"tags"`
	Translations []TemplateTranslation `json:"translations" toml:"translations" validate:"required,min=1,dive"`
	Created      string                `json:"created,omitempty" toml:"created"`
	Updated      string                `json:"updated,omitempty" toml:"updated"`
}

// Main returns the translation marked as main, or nil.
func (t *FindingTemplate) Main() *TemplateTranslation {
	for i := range t.Translations {
		if t.Translations[i].IsMain {
			return &t.Translations[i]
		}
	}
	return nil
}

// SearchTemplates returns templates matching a free-text search.
func (c *Client) SearchTemplates(ctx context.Context, search string) ([]FindingTemplate, error) {
	path := templatesPath + "?" + url.Values{"search": {search}}.Encode()
	templates, err := list[FindingTemplate](ctx, c, path)
	if err != nil {
		return nil, fmt.Errorf("failed to search templates: %w", err)
	}
	return templates, nil
}

// CreateTemplate uploads a template and returns the server's representation.
func (c *Client) CreateTemplate(ctx context.Context, template *FindingTemplate) (*FindingTemplate, error) {
	data, err := c.do(ctx, http.MethodPost, templatesPath, template)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}

	var created FindingTemplate
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}
	return &created, nil
}

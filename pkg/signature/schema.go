package signature

import (
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

const noHelp = "No help available."

// Schema builds the JSON schema of an operation's input object.
func Schema(params []Parameter) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(params)),
	}

	for _, p := range params {
		schema.Properties[p.Name] = property(p)
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}

	return schema
}

func property(p Parameter) *jsonschema.Schema {
	prop := &jsonschema.Schema{Description: propertyDescription(p)}

	switch p.Type {
	case TypeBoolean:
		prop.Type = "boolean"
	case TypeInteger:
		prop.Type = "integer"
	case TypeList:
		prop.Type = "array"
		prop.Items = &jsonschema.Schema{Type: "string"}
	case TypeEnum:
		prop.Type = "string"
		for _, choice := range p.Choices {
			prop.Enum = append(prop.Enum, choice)
		}
	default:
		prop.Type = "string"
	}

	return prop
}

func propertyDescription(p Parameter) string {
	parts := make([]string, 0, 3)
	if p.Help != "" {
		parts = append(parts, p.Help)
	}
	if p.Caveat != "" {
		parts = append(parts, "Note: "+p.Caveat+".")
	}
	if p.HasDefault() && !isZeroDefault(p) {
		parts = append(parts, fmt.Sprintf("Default: %s.", renderDefault(p.Default)))
	}
	return strings.Join(parts, " ")
}

// Describe renders the tool description: the plugin summary followed by one line per
// parameter.
func Describe(summary string, params []Parameter) string {
	var builder strings.Builder

	if strings.TrimSpace(summary) == "" {
		summary = "No description available."
	}
	builder.WriteString(summary)

	if len(params) == 0 {
		return builder.String()
	}

	builder.WriteString("\n\nArgs:")
	for _, p := range params {
		builder.WriteString(fmt.Sprintf("\n    %s (%s", p.Name, p.TypeName()))
		if p.Required {
			builder.WriteString(", required")
		}
		builder.WriteString(")")
		if p.HasDefault() && !isZeroDefault(p) {
			builder.WriteString(" = " + renderDefault(p.Default))
		}
		help := p.Help
		if help == "" {
			help = noHelp
		}
		builder.WriteString(": " + help)
		if p.Caveat != "" {
			builder.WriteString(" (" + p.Caveat + ")")
		}
	}

	return builder.String()
}

func isZeroDefault(p Parameter) bool {
	switch v := p.Default.(type) {
	case bool:
		return !v
	case []string:
		return len(v) == 0
	}
	return false
}

func renderDefault(value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []string:
		quoted := make([]string, 0, len(v))
		for _, item := range v {
			quoted = append(quoted, fmt.Sprintf("%q", item))
		}
		return "[" + strings.Join(quoted, ", ") + "]"
	default:
		return Stringify(v)
	}
}

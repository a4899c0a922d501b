package templates

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tb0hdan/reptor-mcp/pkg/sysreptor"
)

const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatTOML = "toml"
)

// ErrParse matches every template syntax error.
var ErrParse = errors.New("template could not be parsed")

// ParseError locates a syntax error in the submitted template text.
type ParseError struct {
	Format  string
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("invalid %s template: %s", strings.ToUpper(e.Format), e.Message)
	}
	return fmt.Sprintf("invalid %s template at line %d, column %d: %s", strings.ToUpper(e.Format), e.Line, e.Column, e.Message)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Parse decodes template text. In auto mode text starting with "{" is JSON and anything
// else is TOML.
func Parse(data, format string) (*sysreptor.FindingTemplate, error) {
	if strings.TrimSpace(data) == "" {
		return nil, &ParseError{Format: orAuto(format), Message: "template is empty"}
	}

	switch format {
	case FormatJSON:
		return parseJSON(data)
	case FormatTOML:
		return parseTOML(data)
	case FormatAuto, "":
		if strings.HasPrefix(strings.TrimSpace(data), "{") {
			return parseJSON(data)
		}
		return parseTOML(data)
	default:
		return nil, fmt.Errorf("unsupported template format %q", format)
	}
}

func orAuto(format string) string {
	if format == "" {
		return FormatAuto
	}
	return format
}

func parseJSON(data string) (*sysreptor.FindingTemplate, error) {
	decoder := json.NewDecoder(strings.NewReader(data))
	var template sysreptor.FindingTemplate
	if err := decoder.Decode(&template); err != nil {
		return nil, jsonError(data, err)
	}
	if decoder.More() {
		line, col := position(data, decoder.InputOffset())
		return nil, &ParseError{Format: FormatJSON, Line: line, Column: col, Message: "unexpected data after the template object"}
	}
	return &template, nil
}

func jsonError(data string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &syntaxErr):
		line, col := position(data, syntaxErr.Offset)
		return &ParseError{Format: FormatJSON, Line: line, Column: col, Message: syntaxErr.Error()}
	case errors.As(err, &typeErr):
		line, col := position(data, typeErr.Offset)
		return &ParseError{Format: FormatJSON, Line: line, Column: col, Message: typeErr.Error()}
	default:
		return &ParseError{Format: FormatJSON, Message: err.Error()}
	}
}

func parseTOML(data string) (*sysreptor.FindingTemplate, error) {
	var template sysreptor.FindingTemplate
	if _, err := toml.Decode(data, &template); err != nil {
		var parseErr toml.ParseError
		if errors.As(err, &parseErr) {
			line, col := position(data, int64(parseErr.Position.Start))
			if parseErr.Position.Line > 0 {
				line = parseErr.Position.Line
			}
			return nil, &ParseError{Format: FormatTOML, Line: line, Column: col, Message: parseErr.Message}
		}
		return nil, &ParseError{Format: FormatTOML, Message: err.Error()}
	}
	return &template, nil
}

// position converts a byte offset into a 1-based line and column.
func position(data string, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	if offset < 0 {
		offset = 0
	}
	prefix := []byte(data[:offset])
	line := bytes.Count(prefix, []byte("\n")) + 1
	col := len(prefix) - bytes.LastIndexByte(prefix, '\n')
	return line, col
}

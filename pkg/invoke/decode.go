package invoke

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tb0hdan/reptor-mcp/pkg/plugin"
	"github.com/tb0hdan/reptor-mcp/pkg/signature"
	"github.com/tb0hdan/reptor-mcp/pkg/types"
)

// Call is a decoded tool call.
type Call struct {
	// Values holds caller-supplied values by parameter name: string for text and enum,
	// bool, int64, or []string.
	Values    map[string]any
	Overrides Overrides
	MaxLines  int
	Offset    int
}

// ControlParameters returns the parameters every generated operation accepts in addition
// to the plugin's own.
func ControlParameters() []signature.Parameter {
	return []signature.Parameter{
		{Name: types.ParamServer, Type: signature.TypeText, Role: signature.RoleControl,
			Help: "SysReptor server URL for this call only."},
		{Name: types.ParamToken, Type: signature.TypeText, Role: signature.RoleControl,
			Help: "SysReptor API token for this call only."},
		{Name: types.ParamProjectID, Type: signature.TypeText, Role: signature.RoleControl,
			Help: "Project id for this call only."},
		{Name: types.ParamInsecure, Type: signature.TypeBoolean, Role: signature.RoleControl,
			Help: "Skip TLS certificate verification for this call only."},
		{Name: types.ParamMaxLines, Type: signature.TypeInteger, Role: signature.RoleControl,
			Help: fmt.Sprintf("Maximum number of output lines to return (default %d, max %d).",
				types.MaxDefaultLines, types.MaxAllowedLines)},
		{Name: types.ParamOffset, Type: signature.TypeInteger, Role: signature.RoleControl,
			Help: "Line offset into the output for pagination."},
	}
}

// Decode validates raw call arguments against params. Nothing is executed; every error
// wraps ErrInvalidArgument.
func Decode(params []signature.Parameter, raw json.RawMessage) (*Call, error) {
	fields := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, invalidf("arguments must be a JSON object: %v", err)
		}
	}

	byName := make(map[string]signature.Parameter, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}

	call := &Call{Values: make(map[string]any)}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p, ok := byName[name]
		if !ok {
			return nil, invalidf("unknown parameter %q", name)
		}
		value, present, err := decodeValue(p, fields[name])
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		if p.Role == signature.RoleControl {
			if err := call.applyControl(name, value); err != nil {
				return nil, err
			}
			continue
		}
		call.Values[name] = value
	}

	if err := checkRequired(params, call.Values); err != nil {
		return nil, err
	}
	return call, nil
}

func decodeValue(p signature.Parameter, raw json.RawMessage) (any, bool, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, false, invalidf("parameter %q: %v", p.Name, err)
	}
	if value == nil {
		return nil, false, nil
	}

	normalized, err := Normalize(p, value)
	if err != nil {
		return nil, false, err
	}
	return normalized, true, nil
}

// Normalize converts a decoded JSON value or a Go literal to the representation used
// for p's type.
func Normalize(p signature.Parameter, value any) (any, error) {
	switch p.Type {
	case signature.TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, invalidf("parameter %q expects a boolean, got %s", p.Name, jsonKind(value))
		}
		return b, nil
	case signature.TypeInteger:
		n, ok := asInt64(value)
		if !ok {
			return nil, invalidf("parameter %q expects an integer, got %s", p.Name, jsonKind(value))
		}
		if n < 0 && p.Argument.Primary().Kind == plugin.KindCount {
			return nil, invalidf("parameter %q must not be negative", p.Name)
		}
		return n, nil
	case signature.TypeList:
		return asList(p, value)
	case signature.TypeEnum:
		s, ok := asScalar(value)
		if !ok {
			return nil, invalidf("parameter %q expects one of %s, got %s", p.Name,
				strings.Join(p.Choices, ", "), jsonKind(value))
		}
		if !p.AllowsChoice(s) {
			return nil, invalidf("parameter %q: %q is not one of %s", p.Name, s, strings.Join(p.Choices, ", "))
		}
		return s, nil
	default:
		s, ok := asScalar(value)
		if !ok {
			return nil, invalidf("parameter %q expects a string, got %s", p.Name, jsonKind(value))
		}
		return s, nil
	}
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

func asScalar(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number, float64, int, int64:
		return signature.Stringify(v), true
	}
	return "", false
}

func asList(p signature.Parameter, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := asScalar(item)
			if !ok {
				return nil, invalidf("parameter %q item %d expects a string, got %s", p.Name, i, jsonKind(item))
			}
			out = append(out, s)
		}
		return out, nil
	}
	if s, ok := asScalar(value); ok {
		return []string{s}, nil
	}
	return nil, invalidf("parameter %q expects a list of strings, got %s", p.Name, jsonKind(value))
}

func jsonKind(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	case string:
		return "string"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", value)
}

func (c *Call) applyControl(name string, value any) error {
	switch name {
	case types.ParamServer:
		s := value.(string)
		c.Overrides.Server = &s
	case types.ParamToken:
		s := value.(string)
		c.Overrides.Token = &s
	case types.ParamProjectID:
		s := value.(string)
		c.Overrides.ProjectID = &s
	case types.ParamInsecure:
		b := value.(bool)
		c.Overrides.Insecure = &b
	case types.ParamMaxLines:
		n := value.(int64)
		if n < 0 || n > types.MaxAllowedLines {
			return invalidf("parameter %q must be between 0 and %d", name, types.MaxAllowedLines)
		}
		c.MaxLines = int(n)
	case types.ParamOffset:
		n := value.(int64)
		if n < 0 {
			return invalidf("parameter %q must not be negative", name)
		}
		c.Offset = int(n)
	}
	return nil
}

func checkRequired(params []signature.Parameter, values map[string]any) error {
	inlineTargets := make(map[string]bool)
	for _, p := range params {
		if p.Role == signature.RoleInlineFile && present(values[p.Name]) {
			inlineTargets[p.Target] = true
		}
	}

	var missing []string
	for _, p := range params {
		if !p.Required || present(values[p.Name]) {
			continue
		}
		if p.Role == signature.RoleArgument && inlineTargets[p.Dest] {
			continue
		}
		missing = append(missing, p.Name)
	}
	if len(missing) > 0 {
		return invalidf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

func present(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case []string:
		return len(v) > 0
	}
	return true
}

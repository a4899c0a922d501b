package signature

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tb0hdan/reptor-mcp/pkg/plugin"
)

// Type is the value kind of an operation parameter.
type Type string

const (
	TypeText    Type = "text"
	TypeBoolean Type = "boolean"
	TypeInteger Type = "integer"
	TypeList    Type = "list"
	TypeEnum    Type = "enum"
)

// Role tells the invocation adapter what to do with a parameter's value.
type Role int

const (
	// RoleArgument values are rendered into the plugin's argv.
	RoleArgument Role = iota
	// RoleStdin values become the plugin's standard input.
	RoleStdin
	// RoleGlobalFlag values are passed as a reptor option placed before the plugin name.
	RoleGlobalFlag
	// RoleInlineFile values are staged to temporary files whose paths feed Target.
	RoleInlineFile
	// RoleControl values configure the call itself and never reach the plugin.
	RoleControl
)

// Parameter is one named input of a generated operation.
type Parameter struct {
	Name     string
	Dest     string
	Type     Type
	Required bool
	// Default is nil when the parameter has no default.
	Default any
	Choices []string
	Help    string
	Caveat  string
	Role    Role
	// Flag is the reptor option used by RoleGlobalFlag parameters.
	Flag string
	// Target is the destination that receives staged paths of a RoleInlineFile parameter.
	Target string
	// Index is the declaration position of the argument within its plugin.
	Index    int
	Argument plugin.Argument
}

// HasDefault reports whether the parameter carries a default value.
func (p Parameter) HasDefault() bool {
	return p.Default != nil
}

// AllowsChoice reports whether value is an accepted enum choice.
func (p Parameter) AllowsChoice(value string) bool {
	for _, choice := range p.Choices {
		if choice == value {
			return true
		}
	}
	return false
}

// TypeName renders the parameter type for descriptions.
func (p Parameter) TypeName() string {
	switch p.Type {
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	case TypeList:
		return "list[string]"
	case TypeEnum:
		return "one of " + strings.Join(p.Choices, "|")
	default:
		return "string"
	}
}

// Stringify renders a scalar the way argparse would have received it on a command line.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

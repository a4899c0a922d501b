// Package specialcase holds per-plugin adjustments for plugins whose generic parameter
// translation would be wrong or unsafe.
package specialcase

import (
	"github.com/tb0hdan/reptor-mcp/pkg/signature"
)

// StdinParam is the name of the synthetic parameter carrying standard input.
const StdinParam = "_stdin_content"

// Order controls where positional arguments are placed in the rebuilt argv.
type Order int

const (
	// OptionsFirst renders all options before positionals.
	OptionsFirst Order = iota
	// PositionalsFirst renders positionals right after the plugin name.
	PositionalsFirst
)

// Stdin forces a plugin to receive one parameter on standard input.
type Stdin struct {
	Required bool
	Help     string
}

// GlobalFlag exposes a reptor option that must precede the plugin name.
type GlobalFlag struct {
	Param string
	Flag  string
	Help  string
}

// InlineFile exposes a parameter whose content is staged to a temporary file and whose
// path is handed to the Target destination.
type InlineFile struct {
	Param  string
	Target string
	Help   string
}

// Rule is the set of adjustments applied to one plugin.
type Rule struct {
	// Renames maps an argument destination to the exposed parameter name.
	Renames map[string]string
	// Defaults injects a default by destination. Injected defaults are always rendered
	// into argv unless the caller overrides them.
	Defaults map[string]any
	// Coerce replaces the translated type by destination.
	Coerce      map[string]signature.Type
	Stdin       *Stdin
	GlobalFlags []GlobalFlag
	InlineFiles []InlineFile
	Order       Order
}

// Table maps plugin names to rules.
type Table map[string]Rule

// Lookup returns the rule for a plugin. A missing entry yields the zero rule.
func (t Table) Lookup(name string) Rule {
	return t[name]
}

// Apply adjusts a translated parameter list according to the rule.
func (r Rule) Apply(params []signature.Parameter) []signature.Parameter {
	out := make([]signature.Parameter, 0, len(params)+len(r.GlobalFlags)+len(r.InlineFiles)+1)

	for _, p := range params {
		if name, ok := r.Renames[p.Dest]; ok {
			p.Name = name
		}
		if typ, ok := r.Coerce[p.Dest]; ok {
			p.Type = typ
			p.Default = coerceDefault(p.Default, typ)
		}
		if value, ok := r.Defaults[p.Dest]; ok {
			p.Default = value
			p.Required = false
		}
		out = append(out, p)
	}

	if r.Stdin != nil && !hasName(out, StdinParam) {
		out = append(out, signature.Parameter{
			Name:     StdinParam,
			Type:     signature.TypeText,
			Required: r.Stdin.Required,
			Help:     r.Stdin.Help,
			Role:     signature.RoleStdin,
		})
	}

	for _, flag := range r.GlobalFlags {
		if hasName(out, flag.Param) {
			continue
		}
		out = append(out, signature.Parameter{
			Name: flag.Param,
			Type: signature.TypeText,
			Help: flag.Help,
			Role: signature.RoleGlobalFlag,
			Flag: flag.Flag,
		})
	}

	for _, inline := range r.InlineFiles {
		if hasName(out, inline.Param) {
			continue
		}
		out = append(out, signature.Parameter{
			Name:   inline.Param,
			Type:   signature.TypeList,
			Help:   inline.Help,
			Role:   signature.RoleInlineFile,
			Target: inline.Target,
		})
	}

	signature.Order(out)
	return out
}

// Injected reports whether dest carries an injected default.
func (r Rule) Injected(dest string) (any, bool) {
	value, ok := r.Defaults[dest]
	return value, ok
}

func hasName(params []signature.Parameter, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func coerceDefault(value any, typ signature.Type) any {
	if value == nil {
		return nil
	}
	switch typ {
	case signature.TypeList:
		switch v := value.(type) {
		case []string:
			return v
		default:
			return []string{signature.Stringify(v)}
		}
	case signature.TypeText, signature.TypeEnum:
		return signature.Stringify(value)
	case signature.TypeBoolean:
		if b, ok := value.(bool); ok {
			return b
		}
	case signature.TypeInteger:
		if n, ok := value.(int64); ok {
			return n
		}
	}
	return nil
}

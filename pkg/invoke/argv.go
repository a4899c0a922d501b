package invoke

import (
	"sort"
	"strings"

	"github.com/tb0hdan/reptor-mcp/pkg/plugin"
	"github.com/tb0hdan/reptor-mcp/pkg/signature"
	"github.com/tb0hdan/reptor-mcp/pkg/specialcase"
)

// InsecureFlag is the reptor global option that disables TLS verification.
const InsecureFlag = "--insecure"

// Argv describes everything needed to rebuild a plugin command line.
type Argv struct {
	Plugin string
	Params []signature.Parameter
	Rule   specialcase.Rule
	Config Config
	Values map[string]any
	// Staged maps a destination to temporary file paths produced from inline content.
	Staged map[string][]string
}

type positional struct {
	index  int
	values []string
}

// Build renders the command line as [global flags] plugin [options] [positionals].
// Only caller-supplied values and injected defaults are rendered.
func (a Argv) Build() ([]string, error) {
	var globals, options []string
	var positionals []positional
	greedy := false

	if a.Config.Insecure {
		globals = append(globals, InsecureFlag)
	}

	for _, p := range a.Params {
		switch p.Role {
		case signature.RoleGlobalFlag:
			if value, ok := a.Values[p.Name]; ok {
				globals = append(globals, p.Flag+"="+signature.Stringify(value))
			}
		case signature.RoleArgument:
			value, ok, err := a.value(p)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if p.Argument.Positional() {
				positionals = append(positionals, positional{index: p.Index, values: positionalValues(value)})
				continue
			}
			rendered, err := renderOption(p, value)
			if err != nil {
				return nil, err
			}
			if consumesList(p, value) && len(rendered) > 0 {
				greedy = true
			}
			options = append(options, rendered...)
		}
	}

	tail, err := a.renderPositionals(positionals, greedy)
	if err != nil {
		return nil, err
	}

	argv := make([]string, 0, len(globals)+1+len(options)+len(tail))
	argv = append(argv, globals...)
	argv = append(argv, a.Plugin)
	if a.Rule.Order == specialcase.PositionalsFirst {
		argv = append(argv, tail...)
		argv = append(argv, options...)
	} else {
		argv = append(argv, options...)
		argv = append(argv, tail...)
	}
	return argv, nil
}

func (a Argv) value(p signature.Parameter) (any, bool, error) {
	value, ok := a.Values[p.Name]
	if !ok {
		injected, has := a.Rule.Injected(p.Dest)
		if has && injected != nil {
			normalized, err := Normalize(p, injected)
			if err != nil {
				return nil, false, err
			}
			value, ok = normalized, true
		}
	}

	staged := a.Staged[p.Dest]
	if len(staged) == 0 {
		return value, ok, nil
	}

	switch v := value.(type) {
	case nil:
		if p.Type == signature.TypeList {
			return append([]string(nil), staged...), true, nil
		}
		if len(staged) == 1 {
			return staged[0], true, nil
		}
	case []string:
		return append(append([]string(nil), v...), staged...), true, nil
	}
	return nil, false, invalidf("parameter %q accepts a single value and cannot take inline content", p.Name)
}

func positionalValues(value any) []string {
	if list, ok := value.([]string); ok {
		return list
	}
	return []string{signature.Stringify(value)}
}

// consumesList reports whether the rendered option takes a variable number of values,
// which would swallow positionals that follow it.
func consumesList(p signature.Parameter, value any) bool {
	if _, ok := value.([]string); !ok {
		return false
	}
	switch p.Argument.Primary().Kind {
	case plugin.KindAppend, plugin.KindCount:
		return false
	}
	return true
}

func (a Argv) renderPositionals(items []positional, greedy bool) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	set := make(map[int]bool, len(items))
	for _, item := range items {
		set[item.index] = true
	}
	last := 0
	for _, item := range items {
		if item.index > last {
			last = item.index
		}
	}
	for _, p := range a.Params {
		if p.Role != signature.RoleArgument || !p.Argument.Positional() || p.Index > last || set[p.Index] {
			continue
		}
		if p.Argument.Primary().Nargs == plugin.NargsZeroOrMore {
			continue
		}
		return nil, invalidf("positional parameter %q must be set when a later positional parameter is given", p.Name)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].index < items[j].index })

	var out []string
	dashed := false
	for _, item := range items {
		for _, v := range item.values {
			if strings.HasPrefix(v, "-") {
				dashed = true
			}
			out = append(out, v)
		}
	}
	if a.Rule.Order == specialcase.PositionalsFirst {
		if dashed {
			return nil, invalidf("positional values starting with '-' are not supported for plugin %s", a.Plugin)
		}
		return out, nil
	}
	if !dashed && !greedy {
		return out, nil
	}
	return append([]string{"--"}, out...), nil
}

func renderOption(p signature.Parameter, value any) ([]string, error) {
	actions := p.Argument.Actions
	primary := p.Argument.Primary()

	if pick, ok := pickAction(actions, value); ok {
		return []string{flagOf(pick)}, nil
	}

	switch primary.Kind {
	case plugin.KindStoreTrue, plugin.KindStoreConst:
		if truthy(value) {
			return []string{flagOf(primary)}, nil
		}
		return nil, nil
	case plugin.KindStoreFalse:
		if !truthy(value) {
			return []string{flagOf(primary)}, nil
		}
		return nil, nil
	case plugin.KindBooleanOptional:
		return []string{booleanOptionalFlag(primary, truthy(value))}, nil
	case plugin.KindCount:
		n, _ := value.(int64)
		out := make([]string, 0, n)
		for i := int64(0); i < n; i++ {
			out = append(out, flagOf(primary))
		}
		return out, nil
	case plugin.KindAppend:
		var out []string
		for _, item := range positionalValues(value) {
			out = append(out, optionValue(primary, item)...)
		}
		return out, nil
	}

	if primary.Nargs == "0" {
		if truthy(value) {
			return []string{flagOf(primary)}, nil
		}
		return nil, nil
	}

	if list, ok := value.([]string); ok {
		if len(list) == 0 {
			return nil, nil
		}
		out := []string{flagOf(primary)}
		for _, item := range list {
			if strings.HasPrefix(item, "-") {
				return nil, invalidf("parameter %q: list value %q must not start with '-'", p.Name, item)
			}
			out = append(out, item)
		}
		return out, nil
	}

	return optionValue(primary, signature.Stringify(value)), nil
}

// pickAction resolves flag pairs and const groups to the action matching value.
func pickAction(actions []plugin.Action, value any) (plugin.Action, bool) {
	if len(actions) < 2 {
		return plugin.Action{}, false
	}
	if b, ok := value.(bool); ok {
		want := plugin.KindStoreFalse
		if b {
			want = plugin.KindStoreTrue
		}
		for _, action := range actions {
			if action.Kind == want {
				return action, true
			}
		}
		return plugin.Action{}, false
	}
	s := signature.Stringify(value)
	for _, action := range actions {
		if action.Kind == plugin.KindStoreConst && action.Const != nil && signature.Stringify(action.Const) == s {
			return action, true
		}
	}
	return plugin.Action{}, false
}

func flagOf(action plugin.Action) string {
	if long := action.LongFlag(); long != "" {
		return long
	}
	if short := action.ShortFlag(); short != "" {
		return short
	}
	return "--" + strings.ReplaceAll(action.Dest, "_", "-")
}

func optionValue(action plugin.Action, value string) []string {
	if long := action.LongFlag(); long != "" {
		return []string{long + "=" + value}
	}
	short := action.ShortFlag()
	if short == "" {
		return []string{flagOf(action) + "=" + value}
	}
	if value == "" {
		return []string{short, ""}
	}
	return []string{short + value}
}

func booleanOptionalFlag(action plugin.Action, value bool) string {
	for _, flag := range action.Flags {
		negative := strings.HasPrefix(flag, "--no-")
		if negative != value && strings.HasPrefix(flag, "--") {
			return flag
		}
	}
	if value {
		return flagOf(action)
	}
	return "--no-" + strings.TrimPrefix(flagOf(action), "--")
}

func truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != "" && !strings.EqualFold(v, "false")
	case int64:
		return v != 0
	}
	return value != nil
}

package plugin

import "strings"

// Kind is the argparse action class of a single declared argument.
type Kind string

const (
	KindStore           Kind = "store"
	KindStoreTrue       Kind = "store_true"
	KindStoreFalse      Kind = "store_false"
	KindStoreConst      Kind = "store_const"
	KindAppend          Kind = "append"
	KindAppendConst     Kind = "append_const"
	KindCount           Kind = "count"
	KindExtend          Kind = "extend"
	KindBooleanOptional Kind = "boolean_optional"
)

// Value types reported for an action's type callable.
const (
	TypeString   = "str"
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeFile     = "file"
	TypeCallable = "callable"
)

// Nargs values with special meaning. Integer counts are reported as their decimal form.
const (
	NargsZeroOrMore = "*"
	NargsOneOrMore  = "+"
	NargsRemainder  = "..."
)

// Action is one argparse action as declared by a plugin.
type Action struct {
	Dest       string   `json:"dest"`
	Kind       Kind     `json:"kind"`
	Flags      []string `json:"option_strings"`
	Nargs      string   `json:"nargs"`
	Type       string   `json:"type"`
	Choices    []any    `json:"choices"`
	Default    any      `json:"default"`
	Suppressed bool     `json:"suppressed"`
	Const      any      `json:"const"`
	Required   bool     `json:"required"`
	Help       string   `json:"help"`
}

// Positional reports whether the action has no option strings.
func (a Action) Positional() bool {
	return len(a.Flags) == 0
}

// LongFlag returns the first "--" option string, if any.
func (a Action) LongFlag() string {
	for _, flag := range a.Flags {
		if strings.HasPrefix(flag, "--") {
			return flag
		}
	}
	return ""
}

// ShortFlag returns the first single-dash option string, if any.
func (a Action) ShortFlag() string {
	for _, flag := range a.Flags {
		if strings.HasPrefix(flag, "-") && !strings.HasPrefix(flag, "--") {
			return flag
		}
	}
	return ""
}

// Argument is one argparse destination. Several actions share a destination when a
// plugin declares flag pairs (--color/--no-color) or const groups (--json/--xml).
type Argument struct {
	Dest    string   `json:"dest"`
	Actions []Action `json:"actions"`
}

// Primary returns the action that describes the argument: the first one carrying help
// text, otherwise the first declared.
func (a Argument) Primary() Action {
	for _, action := range a.Actions {
		if action.Help != "" {
			return action
		}
	}
	if len(a.Actions) == 0 {
		return Action{Dest: a.Dest}
	}
	return a.Actions[0]
}

// Positional reports whether the argument is consumed positionally.
func (a Argument) Positional() bool {
	return a.Primary().Positional()
}

// Help returns the first non-empty help text of the argument's actions.
func (a Argument) Help() string {
	return a.Primary().Help
}

// Descriptor describes one installed plugin.
type Descriptor struct {
	Name      string     `json:"name"`
	Summary   string     `json:"summary"`
	Arguments []Argument `json:"arguments"`
}

// Argument looks up an argument by destination.
func (d Descriptor) Argument(dest string) (Argument, bool) {
	for _, arg := range d.Arguments {
		if arg.Dest == dest {
			return arg, true
		}
	}
	return Argument{}, false
}

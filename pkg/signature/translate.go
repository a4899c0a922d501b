package signature

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/tb0hdan/reptor-mcp/pkg/plugin"
)

const textFallbackCaveat = "passed to the plugin as text"

// TranslateAll maps every argument of a plugin to exactly one parameter, required
// parameters first and declaration order otherwise.
func TranslateAll(descriptor plugin.Descriptor) []Parameter {
	params := make([]Parameter, 0, len(descriptor.Arguments))
	for i, arg := range descriptor.Arguments {
		param := Translate(arg)
		param.Index = i
		params = append(params, param)
	}
	Order(params)
	return params
}

// Order moves required parameters in front of optional ones, keeping relative order.
func Order(params []Parameter) {
	sort.SliceStable(params, func(i, j int) bool {
		return params[i].Required && !params[j].Required
	})
}

// Translate maps one argument to its parameter.
func Translate(arg plugin.Argument) Parameter {
	primary := arg.Primary()
	param := Parameter{
		Name:     arg.Dest,
		Dest:     arg.Dest,
		Role:     RoleArgument,
		Help:     arg.Help(),
		Required: primary.Required,
		Argument: arg,
	}

	switch {
	case isBoolPair(arg.Actions):
		param.Type = TypeBoolean
		param.Required = false
		param.Default = boolPairDefault(arg.Actions)
	case isConstGroup(arg.Actions):
		translateConstGroup(&param, arg.Actions)
	default:
		translateAction(&param, primary)
	}

	return param
}

func isBoolPair(actions []plugin.Action) bool {
	if len(actions) < 2 {
		return false
	}
	hasTrue, hasFalse := false, false
	for _, action := range actions {
		switch action.Kind {
		case plugin.KindStoreTrue:
			hasTrue = true
		case plugin.KindStoreFalse:
			hasFalse = true
		default:
			return false
		}
	}
	return hasTrue && hasFalse
}

func boolPairDefault(actions []plugin.Action) bool {
	for _, action := range actions {
		if action.Kind == plugin.KindStoreTrue {
			if b, ok := action.Default.(bool); ok {
				return b
			}
			return false
		}
	}
	return true
}

func isConstGroup(actions []plugin.Action) bool {
	if len(actions) < 2 {
		return false
	}
	consts := make(map[string]bool)
	for _, action := range actions {
		if action.Kind != plugin.KindStoreConst {
			return false
		}
		consts[Stringify(action.Const)] = true
	}
	if len(consts) == 1 && (consts["true"] || consts["false"]) {
		return false
	}
	return true
}

func translateConstGroup(param *Parameter, actions []plugin.Action) {
	param.Type = TypeEnum
	seen := make(map[string]bool)
	for _, action := range actions {
		if action.Const == nil {
			continue
		}
		choice := Stringify(action.Const)
		if !seen[choice] {
			seen[choice] = true
			param.Choices = append(param.Choices, choice)
		}
		if action.Required {
			param.Required = true
		}
	}
	if param.Required {
		return
	}
	for _, action := range actions {
		if action.Default == nil || action.Suppressed {
			continue
		}
		if value := Stringify(action.Default); param.AllowsChoice(value) {
			param.Default = value
			return
		}
	}
}

func isListNargs(nargs string) bool {
	switch nargs {
	case plugin.NargsZeroOrMore, plugin.NargsOneOrMore, plugin.NargsRemainder:
		return true
	}
	n, err := strconv.Atoi(nargs)
	return err == nil && n > 1
}

func knownKind(kind plugin.Kind) bool {
	switch kind {
	case plugin.KindStore, plugin.KindStoreTrue, plugin.KindStoreFalse, plugin.KindStoreConst,
		plugin.KindAppend, plugin.KindCount, plugin.KindExtend, plugin.KindBooleanOptional:
		return true
	}
	return false
}

func translateAction(param *Parameter, action plugin.Action) {
	switch {
	case !knownKind(action.Kind):
		param.Type = TypeText
		param.Caveat = fmt.Sprintf("unsupported argument kind %q, %s", action.Kind, textFallbackCaveat)
	case action.Kind == plugin.KindStoreTrue, action.Kind == plugin.KindStoreFalse,
		action.Kind == plugin.KindStoreConst, action.Kind == plugin.KindBooleanOptional:
		param.Type = TypeBoolean
	case action.Kind == plugin.KindCount:
		param.Type = TypeInteger
	case action.Kind == plugin.KindAppend, action.Kind == plugin.KindExtend, isListNargs(action.Nargs):
		param.Type = TypeList
	case len(action.Choices) > 0:
		param.Type = TypeEnum
		for _, choice := range action.Choices {
			param.Choices = append(param.Choices, Stringify(choice))
		}
	case action.Type == plugin.TypeInt:
		param.Type = TypeInteger
	case action.Type == plugin.TypeString, action.Type == plugin.TypeFile,
		action.Type == plugin.TypeCallable, action.Type == "":
		param.Type = TypeText
	default:
		param.Type = TypeText
		param.Caveat = fmt.Sprintf("value type %q is %s", action.Type, textFallbackCaveat)
	}

	if param.Required || action.Suppressed {
		return
	}
	param.Default = defaultFor(param, action)
}

func defaultFor(param *Parameter, action plugin.Action) any {
	switch param.Type {
	case TypeBoolean:
		if b, ok := action.Default.(bool); ok && action.Kind != plugin.KindStoreConst {
			return b
		}
		if action.Kind == plugin.KindStoreFalse {
			return true
		}
		return false
	case TypeInteger:
		if n, ok := toInt64(action.Default); ok {
			return n
		}
		if action.Kind == plugin.KindCount {
			return int64(0)
		}
		return nil
	case TypeList:
		if items, ok := action.Default.([]any); ok {
			out := make([]string, 0, len(items))
			for _, item := range items {
				out = append(out, Stringify(item))
			}
			return out
		}
		if action.Default == nil && action.Nargs == plugin.NargsZeroOrMore {
			return []string{}
		}
		return nil
	case TypeEnum:
		if action.Default == nil {
			return nil
		}
		if value := Stringify(action.Default); param.AllowsChoice(value) {
			return value
		}
		return nil
	default:
		if action.Default == nil {
			return nil
		}
		return Stringify(action.Default)
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		if v == math.Trunc(v) {
			return int64(v), true
		}
	case int:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

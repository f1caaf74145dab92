package tools

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/xscopehub/datajud-bridge/internal/datajud"
	"github.com/xscopehub/datajud-bridge/internal/types"
)

// ArgumentError reports a missing or unusable invocation argument.
type ArgumentError struct {
	Name   string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %s: %s", e.Name, e.Reason)
}

// Normalize returns the argument set carried by a request body. Bodies may
// wrap the arguments under an "arguments" object or be the arguments
// themselves.
func Normalize(body map[string]any) types.Arguments {
	if body == nil {
		return types.Arguments{}
	}
	if wrapped, ok := body["arguments"].(map[string]any); ok {
		return types.Arguments(wrapped)
	}
	return types.Arguments(body)
}

func requiredString(args types.Arguments, name string) (string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return "", &ArgumentError{Name: name, Reason: "is required"}
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", &ArgumentError{Name: name, Reason: "must be a string"}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ArgumentError{Name: name, Reason: "must not be empty"}
	}
	return s, nil
}

func requiredInt(args types.Arguments, name string) (int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return 0, &ArgumentError{Name: name, Reason: "is required"}
	}
	return toInt(name, v)
}

// optionalSize returns a positive page size, falling back to def.
func optionalSize(args types.Arguments, name string, def int) (int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return def, nil
	}
	n, err := toInt(name, v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return def, nil
	}
	return n, nil
}

// aliasArg returns the optional alias argument. Blank means the default
// partition; anything else must be a plain index name.
func aliasArg(args types.Arguments) (string, error) {
	alias := optionalString(args, "alias")
	if alias != "" && !datajud.ValidAlias(alias) {
		return "", &ArgumentError{Name: "alias", Reason: "must contain only lowercase letters, digits and underscores"}
	}
	return alias, nil
}

func optionalString(args types.Arguments, name string) string {
	v, ok := args[name]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(cast.ToString(v))
}

// toInt accepts JSON numbers and decimal strings. Strings are parsed in base
// 10 so that zero-padded codes are not read as octal.
func toInt(name string, v any) (int, error) {
	if s, ok := v.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, &ArgumentError{Name: name, Reason: "must be an integer"}
		}
		return n, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, &ArgumentError{Name: name, Reason: "must be an integer"}
	}
	return n, nil
}

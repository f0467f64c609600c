package workflow

import (
	"fmt"
	"regexp"
)

var varRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_.-]*)\}`)

// substituteParams replaces ${name} references in string parameters with
// run variables. A parameter that is exactly one reference takes the raw
// variable value, keeping its type. References to undefined variables are
// left as written. Nested maps and lists are substituted recursively.
func substituteParams(params map[string]any, vars map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = substituteValue(v, vars)
	}
	return out
}

func substituteValue(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		return substituteString(val, vars)
	case map[string]any:
		return substituteParams(val, vars)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = substituteValue(item, vars)
		}
		return out
	}
	return v
}

func substituteString(s string, vars map[string]any) any {
	if m := varRefRe.FindStringSubmatchIndex(s); m != nil && m[0] == 0 && m[1] == len(s) {
		if v, ok := vars[s[m[2]:m[3]]]; ok {
			return v
		}
		return s
	}
	return varRefRe.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[2 : len(ref)-1]
		if v, ok := vars[name]; ok {
			return fmt.Sprint(v)
		}
		return ref
	})
}

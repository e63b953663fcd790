package template

import (
	"fmt"
	"regexp"
)

var refRe = regexp.MustCompile(`\{\{(inputs|session)\.([^}]+)\}\}`)

// Context holds available values for template resolution.
type Context struct {
	Inputs  map[string]string
	Session map[string]string
}

// Resolve replaces all {{inputs.X}} and {{session.Y}} in s.
func Resolve(s string, ctx *Context) (string, error) {
	var resolveErr error
	result := refRe.ReplaceAllStringFunc(s, func(match string) string {
		m := refRe.FindStringSubmatch(match)
		scope, name := m[1], m[2]
		src := ctx.Inputs
		if scope == "session" {
			src = ctx.Session
		}
		val, ok := src[name]
		if !ok {
			resolveErr = fmt.Errorf("unresolved %s reference %q", scope, name)
			return match
		}
		return val
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return result, nil
}

// ResolveParams resolves every string found in params, descending into
// nested maps and slices. The input map is not modified.
func ResolveParams(params map[string]any, ctx *Context) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		r, err := resolveValue(v, ctx)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		out[k] = r
	}
	return out, nil
}

func resolveValue(v any, ctx *Context) (any, error) {
	switch t := v.(type) {
	case string:
		return Resolve(t, ctx)
	case map[string]any:
		return ResolveParams(t, ctx)
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			r, err := resolveValue(x, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}
	return v, nil
}

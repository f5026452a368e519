package dispatcher

import (
	"fmt"

	"github.com/Digital-Defiance/mcp-process-sub000/internal/errs"
)

// argGetter is a thin wrapper over a tool call's argument map that mirrors
// the teacher's preference for small, explicit accessor helpers over
// reflection-based binding (pkg/jsonx style) — here specialized to the
// dynamic map[string]any shape mcp-go hands every tool handler.
type argGetter map[string]any

func (a argGetter) requireString(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", errs.New(errs.InvalidConfig, fmt.Sprintf("missing required argument %q", key))
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errs.New(errs.InvalidConfig, fmt.Sprintf("argument %q must be a non-empty string", key))
	}
	return s, nil
}

func (a argGetter) optString(key, def string) string {
	if v, ok := a[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

func (a argGetter) requireUint32(key string) (uint32, error) {
	v, ok := a[key]
	if !ok {
		return 0, errs.New(errs.InvalidConfig, fmt.Sprintf("missing required argument %q", key))
	}
	n, ok := toFloat(v)
	if !ok || n < 0 {
		return 0, errs.New(errs.InvalidConfig, fmt.Sprintf("argument %q must be a non-negative integer", key))
	}
	return uint32(n), nil
}

func (a argGetter) optInt64(key string, def int64) int64 {
	if v, ok := a[key]; ok {
		if n, ok := toFloat(v); ok {
			return int64(n)
		}
	}
	return def
}

func (a argGetter) optFloat64(key string, def float64) float64 {
	if v, ok := a[key]; ok {
		if n, ok := toFloat(v); ok {
			return n
		}
	}
	return def
}

func (a argGetter) optBool(key string, def bool) bool {
	if v, ok := a[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func (a argGetter) optStringSlice(key string) []string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (a argGetter) optStringMap(key string) map[string]string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	return out
}

func (a argGetter) optObject(key string) argGetter {
	v, ok := a[key]
	if !ok {
		return nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return argGetter(raw)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

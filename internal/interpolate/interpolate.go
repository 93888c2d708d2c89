package interpolate

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/actis-dev/actis/pkg/schema"
)

// Scope holds the data available to ${{...}} references.
type Scope struct {
	Params  map[string]any    // previous action's parameters
	Context map[string]any    // previous resolution context
	Env     map[string]string // environment variables (nil = process env)
}

// EnvScope builds an environment map from the process environment.
func EnvScope() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}

// Interpolator resolves ${{...}} references in action parameters. Plain
// references use the params.*, context.* and env.* namespaces; the expr()
// escape hands the inner expression to an expr-lang engine with the same
// three namespaces as top-level variables.
type Interpolator struct {
	engine *exprEngine
}

// New creates an Interpolator with an empty expression compile cache.
func New() *Interpolator {
	return &Interpolator{engine: newExprEngine()}
}

// ResolveParams walks a parameter map and resolves every ${{...}} token found
// in string values, recursing into nested maps and slices. Non-string leaves
// pass through unchanged.
func (interp *Interpolator) ResolveParams(params map[string]any, scope *Scope) (map[string]any, error) {
	if params == nil {
		return nil, nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		resolved, err := interp.resolveValue(v, scope)
		if err != nil {
			return nil, err
		}
		out[k] = resolved
	}
	return out, nil
}

// ResolveString resolves ${{...}} tokens in a single string. When the entire
// string is one token the resolved value keeps its type; otherwise resolved
// values are stringified and spliced into the surrounding text.
func (interp *Interpolator) ResolveString(s string, scope *Scope) (any, error) {
	if !HasTokens(s) {
		return s, nil
	}

	// Whole-token form: return the typed value.
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "${{") && strings.HasSuffix(trimmed, "}}") {
		inner := trimmed[3 : len(trimmed)-2]
		if !strings.Contains(inner, "}}") && !strings.Contains(inner, "${{") {
			ref := strings.TrimSpace(inner)
			if ref == "" {
				return nil, schema.NewError(schema.ErrCodeInterpolation, "empty reference: ${{ }}")
			}
			return interp.resolveRef(ref, scope)
		}
	}

	var result strings.Builder
	result.Grow(len(s))

	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], "${{")
		if idx == -1 {
			result.WriteString(s[i:])
			break
		}

		result.WriteString(s[i : i+idx])
		start := i + idx + 3 // skip "${{"

		end := strings.Index(s[start:], "}}")
		if end == -1 {
			return nil, schema.NewError(schema.ErrCodeInterpolation, "unclosed ${{ expression")
		}
		end += start

		ref := strings.TrimSpace(s[start:end])
		if strings.Contains(ref, "${{") {
			return nil, schema.NewError(schema.ErrCodeInterpolation,
				"nested interpolation not allowed: ${{...}} cannot contain ${{")
		}
		if ref == "" {
			return nil, schema.NewError(schema.ErrCodeInterpolation, "empty reference: ${{ }}")
		}

		val, err := interp.resolveRef(ref, scope)
		if err != nil {
			return nil, err
		}
		result.WriteString(stringifyInline(val))

		i = end + 2 // skip "}}"
	}

	return result.String(), nil
}

// HasTokens reports whether a string contains any ${{...}} references.
func HasTokens(s string) bool {
	return strings.Contains(s, "${{")
}

func (interp *Interpolator) resolveValue(v any, scope *Scope) (any, error) {
	switch val := v.(type) {
	case string:
		return interp.ResolveString(val, scope)
	case map[string]any:
		return interp.ResolveParams(val, scope)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			resolved, err := interp.resolveValue(elem, scope)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

// resolveRef resolves a single reference like "params.cart.items" or
// "expr(params.quantity * 2)".
func (interp *Interpolator) resolveRef(ref string, scope *Scope) (any, error) {
	if inner, ok := exprEscape(ref); ok {
		return interp.engine.Evaluate(inner, exprEnv(scope))
	}

	parts := strings.SplitN(ref, ".", 2)
	namespace := parts[0]
	if len(parts) < 2 || parts[1] == "" {
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"invalid reference %q: expected <namespace>.<field>", ref).
			WithDetails(map[string]any{"expression": ref})
	}
	fieldPath := parts[1]

	switch namespace {
	case "params":
		return interp.resolveFromMap(scope.Params, fieldPath, ref, "params")
	case "context":
		return interp.resolveFromMap(scope.Context, fieldPath, ref, "context")
	case "env":
		return resolveEnv(scope, fieldPath, ref)
	default:
		available := []string{"params", "context", "env"}
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"unknown namespace %q in ${{%s}}; available: %s", namespace, ref, strings.Join(available, ", ")).
			WithDetails(map[string]any{"expression": ref, "available_namespaces": available})
	}
}

// exprEscape detects the expr(...) escape and returns the inner expression.
func exprEscape(ref string) (string, bool) {
	if strings.HasPrefix(ref, "expr(") && strings.HasSuffix(ref, ")") {
		return strings.TrimSpace(ref[len("expr(") : len(ref)-1]), true
	}
	return "", false
}

func exprEnv(scope *Scope) map[string]any {
	env := map[string]any{
		"params":  map[string]any{},
		"context": map[string]any{},
		"env":     map[string]string{},
	}
	if scope == nil {
		return env
	}
	if scope.Params != nil {
		env["params"] = scope.Params
	}
	if scope.Context != nil {
		env["context"] = scope.Context
	}
	switch {
	case scope.Env != nil:
		env["env"] = scope.Env
	default:
		env["env"] = EnvScope()
	}
	return env
}

func resolveEnv(scope *Scope, key, ref string) (any, error) {
	if scope != nil && scope.Env != nil {
		if val, ok := scope.Env[key]; ok {
			return val, nil
		}
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"environment variable %q is not set", key).
			WithDetails(map[string]any{"expression": ref})
	}
	val, ok := os.LookupEnv(key)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"environment variable %q is not set", key).
			WithDetails(map[string]any{"expression": ref})
	}
	return val, nil
}

// resolveFromMap resolves a dot-delimited field path from a map.
func (interp *Interpolator) resolveFromMap(data map[string]any, fieldPath, ref, namespace string) (any, error) {
	if data == nil {
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"cannot resolve %q: %s scope is empty", ref, namespace).
			WithDetails(map[string]any{"expression": ref})
	}

	// Direct key lookup first (supports keys with dots).
	if val, ok := data[fieldPath]; ok {
		return val, nil
	}

	return traversePath(data, fieldPath, ref)
}

// traversePath navigates into nested maps using a dot-delimited path.
func traversePath(root any, path, ref string) (any, error) {
	segments := strings.Split(path, ".")
	current := root

	for i, seg := range segments {
		if seg == "" {
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"empty segment in path %q at position %d", ref, i).
				WithDetails(map[string]any{"expression": ref})
		}

		switch v := current.(type) {
		case map[string]any:
			val, ok := v[seg]
			if !ok {
				available := mapKeys(v)
				return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
					"field %q not found in %q; available: [%s]", seg, ref, strings.Join(available, ", ")).
					WithDetails(map[string]any{"expression": ref, "available_fields": available})
			}
			current = val
		default:
			return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
				"cannot traverse into non-object at %q in %q (type: %T)", seg, ref, current).
				WithDetails(map[string]any{"expression": ref})
		}
	}

	return current, nil
}

// stringifyInline converts a resolved value into text for splicing into a
// surrounding string. Composites are JSON-encoded inline.
func stringifyInline(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return fmt.Sprintf("%v", v)
	case int:
		return fmt.Sprintf("%d", v)
	case int64:
		return fmt.Sprintf("%d", v)
	case json.RawMessage:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func mapKeys(m map[string]any) []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package runtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/actis-dev/actis/pkg/schema"
)

// Coerce converts an arbitrary input value into a value matching the schema
// node's shape. It is total: it never panics and never errors; mismatched or
// missing input resolves to a type-appropriate default. This is the safety
// property that lets free-form resolver output reach a typed function.
func Coerce(node schema.SchemaNode, value any) any {
	v, _ := coerce(node, value, "", nil)
	return v
}

// CoerceParams coerces every declared parameter of an action against the raw
// input map. Unknown input keys are dropped. The second result lists the
// paths where a default replaced missing or unusable input.
func CoerceParams(params []schema.Param, raw map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(params))
	var defaulted []string
	for _, p := range params {
		var in any
		if raw != nil {
			in = raw[p.Name]
		}
		v, paths := coerce(p.Node, in, p.Name, nil)
		out[p.Name] = v
		defaulted = append(defaulted, paths...)
	}
	return out, defaulted
}

// coerce is the recursive worker. It returns the coerced value and the paths
// at which a default was substituted.
func coerce(node schema.SchemaNode, value any, path string, defaulted []string) (any, []string) {
	switch node.Kind {
	case schema.KindPrimitive:
		return coercePrimitive(node.Prim, value, path, defaulted)

	case schema.KindLiteral:
		if literalEqual(node.Literal, value) {
			return node.Literal, defaulted
		}
		return node.Literal, append(defaulted, path)

	case schema.KindLiteralUnion:
		for _, lit := range node.Literals {
			if literalEqual(lit, value) {
				return lit, defaulted
			}
		}
		if len(node.Literals) == 0 {
			return nil, append(defaulted, path)
		}
		return node.Literals[0], append(defaulted, path)

	case schema.KindArray:
		// A missing item shape reads as any, same as the wire encoder.
		elem := schema.Primitive(schema.PrimAny)
		if node.Elem != nil {
			elem = *node.Elem
		}
		var items []any
		switch vv := value.(type) {
		case nil:
			return []any{}, append(defaulted, path)
		case []any:
			items = vv
		default:
			// Non-array input wraps into a single-element array.
			items = []any{value}
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i], defaulted = coerce(elem, item, elemPath(path, i), defaulted)
		}
		return out, defaulted

	case schema.KindObject:
		in, _ := value.(map[string]any)
		if value != nil && in == nil {
			defaulted = append(defaulted, path)
		}
		out := make(map[string]any, len(node.Fields))
		for _, f := range node.Fields {
			var fv any
			if in != nil {
				fv = in[f.Name]
			}
			out[f.Name], defaulted = coerce(f.Node, fv, fieldPath(path, f.Name), defaulted)
		}
		return out, defaulted

	case schema.KindOpaque:
		// Undecomposable shape: pass the input through untouched.
		return value, defaulted

	default:
		return value, defaulted
	}
}

// coercePrimitive applies the per-kind cast rules with lossy defaults.
func coercePrimitive(prim string, value any, path string, defaulted []string) (any, []string) {
	switch prim {
	case schema.PrimNumber:
		if value == nil {
			return float64(0), append(defaulted, path)
		}
		if n, ok := toNumber(value); ok {
			return n, defaulted
		}
		return float64(0), append(defaulted, path)

	case schema.PrimBoolean:
		switch vv := value.(type) {
		case nil:
			return false, append(defaulted, path)
		case bool:
			return vv, defaulted
		case string:
			// "true" (case-insensitive) is true, every other string false.
			return strings.EqualFold(vv, "true"), defaulted
		default:
			return false, append(defaulted, path)
		}

	case schema.PrimNull, schema.PrimUndefined:
		return nil, defaulted

	case schema.PrimAny:
		if value == nil {
			return "", append(defaulted, path)
		}
		return value, defaulted

	default: // string and anything else
		if value == nil {
			return "", append(defaulted, path)
		}
		return stringify(value), defaulted
	}
}

// toNumber converts numeric inputs and numeric strings to float64.
func toNumber(value any) (float64, bool) {
	switch vv := value.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int32:
		return float64(vv), true
	case int64:
		return float64(vv), true
	case json.Number:
		f, err := vv.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(vv), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// stringify renders a value as a string: scalars directly, composites as
// their JSON encoding.
func stringify(value any) string {
	switch vv := value.(type) {
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case json.Number:
		return vv.String()
	case map[string]any, []any:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprint(vv)
		}
		return string(b)
	default:
		return fmt.Sprint(vv)
	}
}

// literalEqual compares a declared literal against input, tolerating the
// int/float64 split JSON decoding introduces.
func literalEqual(lit, value any) bool {
	if lit == value {
		return true
	}
	ln, lok := toNumberStrict(lit)
	vn, vok := toNumberStrict(value)
	return lok && vok && ln == vn
}

// toNumberStrict converts only genuine numeric types, not strings.
func toNumberStrict(value any) (float64, bool) {
	switch vv := value.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int32:
		return float64(vv), true
	case int64:
		return float64(vv), true
	case json.Number:
		f, err := vv.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func fieldPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func elemPath(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

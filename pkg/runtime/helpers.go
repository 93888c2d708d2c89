package runtime

import (
	"encoding/json"

	"github.com/actis-dev/actis/pkg/schema"
)

// Conversion helpers used by generated bindings to turn coerced parameter
// values into the argument types of the underlying functions. Inputs are
// already schema-shaped, so these are narrowing casts, not validators.

// Field fetches a named parameter from the coerced map.
func Field(params map[string]any, name string) any {
	if params == nil {
		return nil
	}
	return params[name]
}

// String returns v as a string, or "".
func String(v any) string {
	s, _ := v.(string)
	return s
}

// Float returns v as a float64, or 0.
func Float(v any) float64 {
	f, _ := v.(float64)
	return f
}

// Int returns v as an int, truncating the float64 the wire carries.
func Int(v any) int {
	return int(Float(v))
}

// Bool returns v as a bool, or false.
func Bool(v any) bool {
	b, _ := v.(bool)
	return b
}

// Slice returns v as a []any, or nil.
func Slice(v any) []any {
	s, _ := v.([]any)
	return s
}

// Strings returns v as a []string, converting each element with String.
func Strings(v any) []string {
	items := Slice(v)
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = String(item)
	}
	return out
}

// DecodeInto round-trips a coerced value through JSON into a typed struct,
// for bindings whose flattened parameter was a struct.
func DecodeInto(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return schema.NewError(schema.ErrCodeExecution, "encode coerced params").WithCause(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return schema.NewError(schema.ErrCodeExecution, "decode coerced params").WithCause(err)
	}
	return nil
}

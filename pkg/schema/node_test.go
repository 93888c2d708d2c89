package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaNode_Marshal_Primitive(t *testing.T) {
	b, err := json.Marshal(Primitive(PrimString))
	require.NoError(t, err)
	assert.Equal(t, `"string"`, string(b))
}

func TestSchemaNode_Marshal_LiteralUnion(t *testing.T) {
	n := LiteralUnion("small", "medium", "large")
	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, `["small","medium","large"]`, string(b))
}

func TestSchemaNode_Marshal_LiteralUnion_PreservesOrder(t *testing.T) {
	n := LiteralUnion("z", "a", "m")
	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, `["z","a","m"]`, string(b))
}

func TestSchemaNode_Marshal_Array(t *testing.T) {
	b, err := json.Marshal(Array(Primitive(PrimString)))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"array","items":"string"}`, string(b))
}

func TestSchemaNode_Marshal_NestedArray(t *testing.T) {
	b, err := json.Marshal(Array(Array(Primitive(PrimNumber))))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"array","items":{"type":"array","items":"number"}}`, string(b))
}

func TestSchemaNode_Marshal_Object_PreservesFieldOrder(t *testing.T) {
	n := Object(
		Field{Name: "productId", Node: Primitive(PrimString)},
		Field{Name: "quantity", Node: Primitive(PrimNumber)},
		Field{Name: "size", Node: LiteralUnion("small", "medium", "large")},
	)
	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Equal(t,
		`{"productId":"string","quantity":"number","size":["small","medium","large"]}`,
		string(b))
}

func TestSchemaNode_Marshal_Opaque(t *testing.T) {
	b, err := json.Marshal(Opaque("func(ctx context.Context) error"))
	require.NoError(t, err)
	assert.Equal(t, `"func(ctx context.Context) error"`, string(b))
}

func TestSchemaNode_Marshal_Literal(t *testing.T) {
	b, err := json.Marshal(Literal("standard"))
	require.NoError(t, err)
	assert.Equal(t, `"standard"`, string(b))

	b, err = json.Marshal(Literal(true))
	require.NoError(t, err)
	assert.Equal(t, `true`, string(b))
}

func TestSchemaNode_Unmarshal_Primitive(t *testing.T) {
	var n SchemaNode
	require.NoError(t, json.Unmarshal([]byte(`"number"`), &n))
	assert.Equal(t, KindPrimitive, n.Kind)
	assert.Equal(t, PrimNumber, n.Prim)
}

func TestSchemaNode_Unmarshal_OpaqueString(t *testing.T) {
	var n SchemaNode
	require.NoError(t, json.Unmarshal([]byte(`"time.Time"`), &n))
	assert.Equal(t, KindOpaque, n.Kind)
	assert.Equal(t, "time.Time", n.TypeName)
}

func TestSchemaNode_Unmarshal_LiteralUnion(t *testing.T) {
	var n SchemaNode
	require.NoError(t, json.Unmarshal([]byte(`["small","medium","large"]`), &n))
	assert.Equal(t, KindLiteralUnion, n.Kind)
	assert.Equal(t, []any{"small", "medium", "large"}, n.Literals)
}

func TestSchemaNode_Unmarshal_Array(t *testing.T) {
	var n SchemaNode
	require.NoError(t, json.Unmarshal([]byte(`{"type":"array","items":"string"}`), &n))
	require.Equal(t, KindArray, n.Kind)
	require.NotNil(t, n.Elem)
	assert.Equal(t, PrimString, n.Elem.Prim)
}

func TestSchemaNode_Unmarshal_Object(t *testing.T) {
	raw := `{"b":"number","a":"string"}`
	var n SchemaNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	require.Equal(t, KindObject, n.Kind)
	require.Len(t, n.Fields, 2)
	// Input key order is preserved, not sorted.
	assert.Equal(t, "b", n.Fields[0].Name)
	assert.Equal(t, "a", n.Fields[1].Name)
}

func TestSchemaNode_RoundTrip_Nested(t *testing.T) {
	n := Object(
		Field{Name: "tags", Node: Array(Primitive(PrimString))},
		Field{Name: "size", Node: LiteralUnion("s", "m")},
		Field{Name: "meta", Node: Object(Field{Name: "ok", Node: Primitive(PrimBoolean)})},
	)
	b, err := json.Marshal(n)
	require.NoError(t, err)

	var back SchemaNode
	require.NoError(t, json.Unmarshal(b, &back))
	b2, err := json.Marshal(back)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(b2))
}

package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Primitive kind names as they appear on the wire.
const (
	PrimString    = "string"
	PrimNumber    = "number"
	PrimBoolean   = "boolean"
	PrimNull      = "null"
	PrimUndefined = "undefined"
	PrimAny       = "any"
)

// NodeKind discriminates the SchemaNode variants.
type NodeKind int

const (
	KindPrimitive NodeKind = iota
	KindLiteral
	KindLiteralUnion
	KindArray
	KindObject
	KindOpaque
)

func (k NodeKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindLiteral:
		return "literal"
	case KindLiteralUnion:
		return "literal_union"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// SchemaNode is the closed sum type describing one parameter's (or nested
// field's) expected value shape. Exactly one variant is populated, selected
// by Kind. The JSON encoding is the wire contract consumed by the resolver
// and the client runtime:
//
//	Primitive     -> "string" | "number" | "boolean" | "null" | "undefined" | "any"
//	Literal       -> the raw JSON literal
//	LiteralUnion  -> array of raw JSON literals, declaration order
//	Array         -> {"type":"array","items": <node>}
//	Object        -> plain JSON object keyed by field name, declaration order
//	Opaque        -> the rendered type name as a plain string
type SchemaNode struct {
	Kind     NodeKind
	Prim     string      // KindPrimitive
	Literal  any         // KindLiteral: string, float64 or bool
	Literals []any       // KindLiteralUnion
	Elem     *SchemaNode // KindArray
	Fields   []Field     // KindObject
	TypeName string      // KindOpaque
}

// Field is one named member of an object shape. Order is significant.
type Field struct {
	Name string
	Node SchemaNode
}

// Primitive returns a primitive node for the given kind name.
func Primitive(kind string) SchemaNode {
	return SchemaNode{Kind: KindPrimitive, Prim: kind}
}

// Literal returns a single-literal node.
func Literal(v any) SchemaNode {
	return SchemaNode{Kind: KindLiteral, Literal: v}
}

// LiteralUnion returns a node for an ordered set of literal values.
func LiteralUnion(values ...any) SchemaNode {
	return SchemaNode{Kind: KindLiteralUnion, Literals: values}
}

// Array returns an array node with the given item shape.
func Array(elem SchemaNode) SchemaNode {
	return SchemaNode{Kind: KindArray, Elem: &elem}
}

// Object returns an object node with the given ordered fields.
func Object(fields ...Field) SchemaNode {
	return SchemaNode{Kind: KindObject, Fields: fields}
}

// Opaque returns a fallback node carrying the rendered type name.
func Opaque(typeName string) SchemaNode {
	return SchemaNode{Kind: KindOpaque, TypeName: typeName}
}

// primitiveKinds is the closed set of wire primitive names.
var primitiveKinds = map[string]bool{
	PrimString: true, PrimNumber: true, PrimBoolean: true,
	PrimNull: true, PrimUndefined: true, PrimAny: true,
}

// IsPrimitiveKind reports whether s is one of the wire primitive names.
func IsPrimitiveKind(s string) bool {
	return primitiveKinds[s]
}

// MarshalJSON encodes the node in the wire format documented on SchemaNode.
// Object fields and literal-union members keep their declared order, so the
// output is byte-stable for identical inputs.
func (n SchemaNode) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindPrimitive:
		return json.Marshal(n.Prim)
	case KindLiteral:
		return json.Marshal(n.Literal)
	case KindLiteralUnion:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, v := range n.Literals {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindArray:
		var buf bytes.Buffer
		buf.WriteString(`{"type":"array","items":`)
		elem := Primitive(PrimAny)
		if n.Elem != nil {
			elem = *n.Elem
		}
		b, err := elem.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(f.Name)
			if err != nil {
				return nil, err
			}
			buf.Write(name)
			buf.WriteByte(':')
			b, err := f.Node.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindOpaque:
		return json.Marshal(n.TypeName)
	default:
		return nil, fmt.Errorf("schema: unknown node kind %d", n.Kind)
	}
}

// UnmarshalJSON decodes the wire format back into the sum type. A bare
// string that is not a primitive kind name is necessarily an opaque type
// name; single string literals are not distinguishable on the wire and
// decode as Opaque.
func (n *SchemaNode) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	node, err := decodeNode(dec)
	if err != nil {
		return err
	}
	*n = node
	return nil
}

// decodeNode consumes exactly one JSON value from dec.
func decodeNode(dec *json.Decoder) (SchemaNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return SchemaNode{}, err
	}

	switch v := tok.(type) {
	case string:
		if IsPrimitiveKind(v) {
			return Primitive(v), nil
		}
		return Opaque(v), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return SchemaNode{}, err
		}
		return Literal(f), nil
	case bool:
		return Literal(v), nil
	case nil:
		return Primitive(PrimNull), nil
	case json.Delim:
		switch v {
		case '[':
			return decodeLiteralUnion(dec)
		case '{':
			return decodeObject(dec)
		}
	}
	return SchemaNode{}, fmt.Errorf("schema: unexpected token %v", tok)
}

// decodeLiteralUnion reads array members after '[' up to the closing ']'.
func decodeLiteralUnion(dec *json.Decoder) (SchemaNode, error) {
	var values []any
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return SchemaNode{}, err
		}
		switch v := tok.(type) {
		case string:
			values = append(values, v)
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return SchemaNode{}, err
			}
			values = append(values, f)
		case bool:
			values = append(values, v)
		default:
			return SchemaNode{}, fmt.Errorf("schema: literal union member must be a scalar, got %v", tok)
		}
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return SchemaNode{}, err
	}
	return SchemaNode{Kind: KindLiteralUnion, Literals: values}, nil
}

// decodeObject reads fields after '{' up to the closing '}'. An object that
// is exactly {"type":"array","items":...} is the array marker form.
func decodeObject(dec *json.Decoder) (SchemaNode, error) {
	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return SchemaNode{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return SchemaNode{}, fmt.Errorf("schema: object key must be a string, got %v", tok)
		}
		node, err := decodeNode(dec)
		if err != nil {
			return SchemaNode{}, err
		}
		fields = append(fields, Field{Name: key, Node: node})
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return SchemaNode{}, err
	}

	if isArrayMarker(fields) {
		for _, f := range fields {
			if f.Name == "items" {
				return Array(f.Node), nil
			}
		}
	}
	return SchemaNode{Kind: KindObject, Fields: fields}, nil
}

// isArrayMarker reports whether fields encode the {"type":"array","items":X} form.
func isArrayMarker(fields []Field) bool {
	if len(fields) != 2 {
		return false
	}
	t, items := fields[0], fields[1]
	if t.Name == "items" && items.Name == "type" {
		t, items = items, t
	}
	return t.Name == "type" && items.Name == "items" &&
		t.Node.Kind == KindOpaque && t.Node.TypeName == "array"
}

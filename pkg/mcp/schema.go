package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/actis-dev/actis/pkg/schema"
)

// toolInputSchema renders the JSON Schema for a tool's arguments from the
// action's manifest parameter shapes.
func toolInputSchema(params []schema.Param) json.RawMessage {
	props := map[string]any{}
	for _, p := range params {
		props[p.Name] = nodeSchema(p.Node)
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

// nodeSchema maps one manifest shape onto its JSON Schema equivalent.
func nodeSchema(n schema.SchemaNode) map[string]any {
	switch n.Kind {
	case schema.KindPrimitive:
		switch n.Prim {
		case schema.PrimString, schema.PrimNumber, schema.PrimBoolean:
			return map[string]any{"type": n.Prim}
		case schema.PrimNull, schema.PrimUndefined:
			return map[string]any{"type": "null"}
		default:
			return map[string]any{}
		}
	case schema.KindLiteral:
		return map[string]any{"const": n.Literal}
	case schema.KindLiteralUnion:
		return map[string]any{"enum": n.Literals}
	case schema.KindArray:
		items := map[string]any{}
		if n.Elem != nil {
			items = nodeSchema(*n.Elem)
		}
		return map[string]any{"type": "array", "items": items}
	case schema.KindObject:
		props := map[string]any{}
		for _, f := range n.Fields {
			props[f.Name] = nodeSchema(f.Node)
		}
		return map[string]any{"type": "object", "properties": props}
	case schema.KindOpaque:
		return map[string]any{"description": fmt.Sprintf("value of type %s", n.TypeName)}
	default:
		return map[string]any{}
	}
}

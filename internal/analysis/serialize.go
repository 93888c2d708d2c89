package analysis

import (
	"go/types"
	"reflect"
	"strings"
	"sync"

	"github.com/actis-dev/actis/pkg/schema"
)

// excludedNamedTypes are well-known wrapper types that are never expanded
// structurally; their internals are not meaningful to a resolver.
var excludedNamedTypes = map[string]bool{
	"time.Time":                 true,
	"time.Duration":             true,
	"net/url.URL":               true,
	"regexp.Regexp":             true,
	"encoding/json.RawMessage":  true,
	"math/big.Int":              true,
	"math/big.Float":            true,
	"error":                     true,
	"context.Context":           true,
}

// pathSet tracks the qualified names visited along the current recursive
// descent. It is copied on every descent into a named type so that sibling
// branches never observe each other's visits; sharing one set across
// branches would produce false-positive cycle detection.
type pathSet map[string]bool

func (p pathSet) clone() pathSet {
	c := make(pathSet, len(p)+1)
	for k := range p {
		c[k] = true
	}
	return c
}

// Serializer converts resolved static types into schema nodes. Safe for
// concurrent use: the memo of fully expanded named types is mutex-guarded
// and every call tree carries its own path-scoped visited set.
type Serializer struct {
	universe *Universe

	mu   sync.Mutex
	memo map[string]schema.SchemaNode
}

// NewSerializer creates a Serializer over the given universe.
func NewSerializer(u *Universe) *Serializer {
	return &Serializer{
		universe: u,
		memo:     make(map[string]schema.SchemaNode),
	}
}

// Serialize resolves t into a schema node. It never fails: any construct
// that cannot be decomposed degrades to an Opaque node carrying the
// rendered type name, and cycles terminate as Opaque at the closing edge.
func (s *Serializer) Serialize(t types.Type) schema.SchemaNode {
	return s.serialize(t, make(pathSet))
}

func (s *Serializer) serialize(t types.Type, visited pathSet) schema.SchemaNode {
	switch tt := t.(type) {
	case *types.Pointer:
		// Optionality is not preserved; a *T field serializes exactly as T.
		return s.serialize(tt.Elem(), visited)

	case *types.Alias:
		return s.serialize(types.Unalias(tt), visited)

	case *types.Named:
		return s.serializeNamed(tt, visited)

	case *types.Basic:
		return serializeBasic(tt)

	case *types.Slice:
		return schema.Array(s.serialize(tt.Elem(), visited))

	case *types.Array:
		return schema.Array(s.serialize(tt.Elem(), visited))

	case *types.Struct:
		// Anonymous object types cannot cycle through a name but still
		// honor the current-path visited set for their field types.
		return s.serializeStruct(tt, visited)

	case *types.Interface:
		return serializeInterface(tt, s.render(t))

	default:
		// Map, chan, signature, type parameter, tuple: not decomposable.
		return schema.Opaque(s.render(t))
	}
}

// serializeNamed applies the named-type resolution order: literal enums
// first, then structural expansion with name-based cycle tracking, then
// primitive underlying kinds, then the opaque fallback.
func (s *Serializer) serializeNamed(named *types.Named, visited pathSet) schema.SchemaNode {
	qn := qualifiedName(named)

	if excludedNamedTypes[qn] {
		return schema.Opaque(s.render(named))
	}

	// Named types declared outside the analyzed universe join the exclusion
	// set: their internals are not part of the project's contract.
	if !s.universe.Contains(qn) {
		return schema.Opaque(s.render(named))
	}

	// The Go enum pattern: a named basic type with declared constants
	// collapses to its literal value(s), in declaration order.
	if consts := s.universe.Consts(qn); len(consts) > 0 {
		if len(consts) == 1 {
			return schema.Literal(consts[0].Value)
		}
		values := make([]any, len(consts))
		for i, c := range consts {
			values[i] = c.Value
		}
		return schema.LiteralUnion(values...)
	}

	// A name already being expanded on this path closes a cycle.
	if visited[qn] {
		return schema.Opaque(s.render(named))
	}

	switch under := named.Underlying().(type) {
	case *types.Struct:
		s.mu.Lock()
		memoized, ok := s.memo[qn]
		s.mu.Unlock()
		if ok {
			return memoized
		}

		next := visited.clone()
		next[qn] = true
		node := s.serializeStruct(under, next)

		// Only a top-of-path expansion is safe to reuse: a shape computed
		// mid-cycle would bake an Opaque edge into unrelated branches.
		if len(visited) == 0 {
			s.mu.Lock()
			s.memo[qn] = node
			s.mu.Unlock()
		}
		return node

	case *types.Basic:
		return serializeBasic(under)

	case *types.Slice:
		next := visited.clone()
		next[qn] = true
		return schema.Array(s.serialize(under.Elem(), next))

	case *types.Array:
		next := visited.clone()
		next[qn] = true
		return schema.Array(s.serialize(under.Elem(), next))

	case *types.Interface:
		return serializeInterface(under, s.render(named))

	default:
		return schema.Opaque(s.render(named))
	}
}

// serializeStruct expands exported, non-func fields into an object shape in
// declaration order. Embedded struct fields are inlined the way Go promotes
// them. Field names honor json tags.
func (s *Serializer) serializeStruct(st *types.Struct, visited pathSet) schema.SchemaNode {
	var fields []schema.Field
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Exported() {
			continue
		}

		if f.Embedded() {
			inner := s.serialize(f.Type(), visited)
			if inner.Kind == schema.KindObject {
				fields = append(fields, inner.Fields...)
			}
			continue
		}

		name, skip := fieldName(f, st.Tag(i))
		if skip {
			continue
		}

		// Methods and function-typed members carry call signatures and are
		// excluded from the shape.
		if _, isFunc := f.Type().Underlying().(*types.Signature); isFunc {
			continue
		}

		fields = append(fields, schema.Field{Name: name, Node: s.serialize(f.Type(), visited)})
	}
	return schema.Object(fields...)
}

// serializeBasic maps Go basic kinds onto the wire primitives.
func serializeBasic(b *types.Basic) schema.SchemaNode {
	switch b.Kind() {
	case types.String, types.UntypedString:
		return schema.Primitive(schema.PrimString)
	case types.Bool, types.UntypedBool:
		return schema.Primitive(schema.PrimBoolean)
	case types.Int, types.Int8, types.Int16, types.Int32, types.Int64,
		types.Uint, types.Uint8, types.Uint16, types.Uint32, types.Uint64, types.Uintptr,
		types.Float32, types.Float64,
		types.UntypedInt, types.UntypedFloat, types.UntypedRune:
		return schema.Primitive(schema.PrimNumber)
	case types.UntypedNil:
		return schema.Primitive(schema.PrimNull)
	default:
		return schema.Primitive(schema.PrimAny)
	}
}

// serializeInterface degrades interfaces: the empty interface is "any", a
// constraint union over basic kinds is the heterogeneous-union case and
// intentionally loses information as "any", and anything with methods is
// opaque.
func serializeInterface(iface *types.Interface, rendered string) schema.SchemaNode {
	if iface.Empty() {
		return schema.Primitive(schema.PrimAny)
	}
	if iface.NumMethods() == 0 && isBasicUnion(iface) {
		return schema.Primitive(schema.PrimAny)
	}
	return schema.Opaque(rendered)
}

// isBasicUnion reports whether every embedded term of the interface is a
// basic type or named basic type.
func isBasicUnion(iface *types.Interface) bool {
	for i := 0; i < iface.NumEmbeddeds(); i++ {
		union, ok := iface.EmbeddedType(i).(*types.Union)
		if !ok {
			return false
		}
		for j := 0; j < union.Len(); j++ {
			term := union.Term(j).Type()
			if _, ok := term.Underlying().(*types.Basic); !ok {
				return false
			}
		}
	}
	return iface.NumEmbeddeds() > 0
}

// fieldName applies the json tag when present; a "-" tag skips the field.
func fieldName(f *types.Var, tag string) (string, bool) {
	jsonTag, ok := reflect.StructTag(tag).Lookup("json")
	if !ok {
		return f.Name(), false
	}
	name, _, _ := strings.Cut(jsonTag, ",")
	switch name {
	case "-":
		return "", true
	case "":
		return f.Name(), false
	default:
		return name, false
	}
}

// render produces the human-readable fallback name for a type, with
// package-name qualifiers ("shop.Handler", "map[string]int").
func (s *Serializer) render(t types.Type) string {
	return types.TypeString(t, func(p *types.Package) string { return p.Name() })
}

package analysis

import (
	"encoding/json"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actis-dev/actis/pkg/schema"
)

const shopSrc = `package shop

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

type Channel string

const ChannelWeb Channel = "web"

type Priority int

const (
	PriorityLow  Priority = 1
	PriorityHigh Priority = 2
)

type CartItem struct {
	ProductID string ` + "`json:\"productId\"`" + `
	Quantity  int    ` + "`json:\"quantity\"`" + `
	Size      Size   ` + "`json:\"size,omitempty\"`" + `
	internal  bool
	Hidden    string ` + "`json:\"-\"`" + `
}

type Cart struct {
	Items  []CartItem
	Coupon *string
	Tags   []string
}

type Node struct {
	Value    string
	Children []Node
	Parent   *Node
}

type Ping struct {
	Pong *Pong
}

type Pong struct {
	Ping *Ping
}

type Meta struct {
	Extra map[string]string
	OnDone func() error
	Raw    any
}

type Base struct {
	ID string
}

type Extended struct {
	Base
	Label string
}
`

func newShopWorld(t *testing.T) (*Serializer, func(string) schema.SchemaNode) {
	t.Helper()
	fset := token.NewFileSet()
	pkg := checkPkg(t, fset, "example.com/shop", map[string]string{"shop/shop.go": shopSrc})
	u := NewUniverse(pkg.Types)
	s := NewSerializer(u)
	serializeNamedType := func(name string) schema.SchemaNode {
		return s.Serialize(lookupType(t, pkg, name))
	}
	return s, serializeNamedType
}

func wire(t *testing.T, n schema.SchemaNode) string {
	t.Helper()
	b, err := json.Marshal(n)
	require.NoError(t, err)
	return string(b)
}

func TestSerializer_EnumCollapsesToLiteralUnion(t *testing.T) {
	_, serialize := newShopWorld(t)
	n := serialize("Size")
	require.Equal(t, schema.KindLiteralUnion, n.Kind)
	assert.Equal(t, []any{"small", "medium", "large"}, n.Literals)
}

func TestSerializer_SingleConstantCollapsesToLiteral(t *testing.T) {
	_, serialize := newShopWorld(t)
	n := serialize("Channel")
	require.Equal(t, schema.KindLiteral, n.Kind)
	assert.Equal(t, "web", n.Literal)
}

func TestSerializer_NumericEnum(t *testing.T) {
	_, serialize := newShopWorld(t)
	n := serialize("Priority")
	require.Equal(t, schema.KindLiteralUnion, n.Kind)
	assert.Equal(t, []any{float64(1), float64(2)}, n.Literals)
}

func TestSerializer_StructShape(t *testing.T) {
	_, serialize := newShopWorld(t)
	n := serialize("CartItem")
	// json tags applied, unexported and "-" fields dropped, declaration order.
	assert.Equal(t,
		`{"productId":"string","quantity":"number","size":["small","medium","large"]}`,
		wire(t, n))
}

func TestSerializer_NestedAndPointer(t *testing.T) {
	_, serialize := newShopWorld(t)
	n := serialize("Cart")
	// *string serializes as string: optionality is not preserved.
	assert.Equal(t,
		`{"Items":{"type":"array","items":{"productId":"string","quantity":"number","size":["small","medium","large"]}},"Coupon":"string","Tags":{"type":"array","items":"string"}}`,
		wire(t, n))
}

func TestSerializer_SelfReferentialTerminates(t *testing.T) {
	_, serialize := newShopWorld(t)
	n := serialize("Node")
	require.Equal(t, schema.KindObject, n.Kind)
	require.Len(t, n.Fields, 3)

	children := n.Fields[1]
	require.Equal(t, schema.KindArray, children.Node.Kind)
	// The cycle-closing edge degrades to the rendered type name.
	assert.Equal(t, schema.KindOpaque, children.Node.Elem.Kind)
	assert.Equal(t, "shop.Node", children.Node.Elem.TypeName)

	parent := n.Fields[2]
	assert.Equal(t, schema.KindOpaque, parent.Node.Kind)
}

func TestSerializer_MutualRecursionTerminates(t *testing.T) {
	_, serialize := newShopWorld(t)
	n := serialize("Ping")
	require.Equal(t, schema.KindObject, n.Kind)
	pong := n.Fields[0].Node
	require.Equal(t, schema.KindObject, pong.Kind)
	// Ping -> Pong -> Ping closes the cycle.
	assert.Equal(t, schema.KindOpaque, pong.Fields[0].Node.Kind)
	assert.Equal(t, "shop.Ping", pong.Fields[0].Node.TypeName)
}

func TestSerializer_SiblingBranchesNotPoisoned(t *testing.T) {
	// Two sibling fields of the same named type must both expand fully;
	// a shared (non-copied) visited set would leave the second Opaque.
	const src = `package p

type Inner struct {
	X string
}

type Outer struct {
	A Inner
	B Inner
}
`
	fset := token.NewFileSet()
	pkg := checkPkg(t, fset, "example.com/p", map[string]string{"p/p.go": src})
	s := NewSerializer(NewUniverse(pkg.Types))

	n := s.Serialize(lookupType(t, pkg, "Outer"))
	require.Equal(t, schema.KindObject, n.Kind)
	require.Len(t, n.Fields, 2)
	assert.Equal(t, schema.KindObject, n.Fields[0].Node.Kind)
	assert.Equal(t, schema.KindObject, n.Fields[1].Node.Kind)
}

func TestSerializer_UnsupportedDegradeToOpaque(t *testing.T) {
	_, serialize := newShopWorld(t)
	n := serialize("Meta")
	require.Equal(t, schema.KindObject, n.Kind)
	// Map field is opaque, func field excluded, any is "any".
	require.Len(t, n.Fields, 2)
	assert.Equal(t, "Extra", n.Fields[0].Name)
	assert.Equal(t, schema.KindOpaque, n.Fields[0].Node.Kind)
	assert.Equal(t, "map[string]string", n.Fields[0].Node.TypeName)
	assert.Equal(t, "Raw", n.Fields[1].Name)
	assert.Equal(t, schema.PrimAny, n.Fields[1].Node.Prim)
}

func TestSerializer_EmbeddedFieldsInlined(t *testing.T) {
	_, serialize := newShopWorld(t)
	n := serialize("Extended")
	assert.Equal(t, `{"ID":"string","Label":"string"}`, wire(t, n))
}

func TestSerializer_ExcludedWrapperTypes(t *testing.T) {
	const src = `package p

import "time"

type Job struct {
	At  time.Time
	Ttl time.Duration
}
`
	fset := token.NewFileSet()
	pkg := checkPkg(t, fset, "example.com/p", map[string]string{"p/p.go": src})
	s := NewSerializer(NewUniverse(pkg.Types))

	n := s.Serialize(lookupType(t, pkg, "Job"))
	require.Equal(t, schema.KindObject, n.Kind)
	assert.Equal(t, schema.KindOpaque, n.Fields[0].Node.Kind)
	assert.Equal(t, "time.Time", n.Fields[0].Node.TypeName)
	assert.Equal(t, schema.KindOpaque, n.Fields[1].Node.Kind)
}

func TestSerializer_OutOfUniverseNotExpanded(t *testing.T) {
	fset := token.NewFileSet()

	extPkg := checkPkg(t, fset, "example.com/ext", map[string]string{"ext/ext.go": `package ext

type Payload struct {
	Secret string
}

type Mode string
`})

	pkg := checkPkg(t, fset, "example.com/p", map[string]string{"p/p.go": `package p

import "example.com/ext"

type Request struct {
	Body ext.Payload
	Mode ext.Mode
}
`}, extPkg.Types)

	// The universe covers only the analyzed package; ext is a dependency.
	s := NewSerializer(NewUniverse(pkg.Types))

	n := s.Serialize(lookupType(t, pkg, "Request"))
	require.Equal(t, schema.KindObject, n.Kind)
	require.Len(t, n.Fields, 2)
	assert.Equal(t, schema.KindOpaque, n.Fields[0].Node.Kind)
	assert.Equal(t, "ext.Payload", n.Fields[0].Node.TypeName)
	assert.Equal(t, schema.KindOpaque, n.Fields[1].Node.Kind)
	assert.Equal(t, "ext.Mode", n.Fields[1].Node.TypeName)
}

func TestSerializer_Deterministic(t *testing.T) {
	_, serialize := newShopWorld(t)
	first := wire(t, serialize("Cart"))
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, wire(t, serialize("Cart")))
	}
}

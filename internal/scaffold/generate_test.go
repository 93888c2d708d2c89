package scaffold

import (
	"go/format"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actis-dev/actis/internal/analysis"
	"github.com/actis-dev/actis/pkg/schema"
)

// shopTypes builds the analyzed-project types the fixtures reference.
type shopTypes struct {
	pkg   *types.Package
	size  *types.Named
	order *types.Named
	item  *types.Named
}

func newShopTypes() *shopTypes {
	pkg := types.NewPackage("example.com/demo/shop", "shop")

	size := types.NewNamed(types.NewTypeName(token.NoPos, pkg, "Size", nil), types.Typ[types.String], nil)

	orderFields := []*types.Var{
		types.NewField(token.NoPos, pkg, "ProductId", types.Typ[types.String], false),
		types.NewField(token.NoPos, pkg, "Quantity", types.Typ[types.Int], false),
	}
	order := types.NewNamed(types.NewTypeName(token.NoPos, pkg, "Order", nil),
		types.NewStruct(orderFields, nil), nil)

	itemFields := []*types.Var{
		types.NewField(token.NoPos, pkg, "Sku", types.Typ[types.String], false),
	}
	item := types.NewNamed(types.NewTypeName(token.NoPos, pkg, "Item", nil),
		types.NewStruct(itemFields, nil), nil)

	return &shopTypes{pkg: pkg, size: size, order: order, item: item}
}

func fixtureCandidates(st *shopTypes) []analysis.Candidate {
	return []analysis.Candidate{
		{
			Name:        "addToCart",
			Description: "Add a product to the cart",
			PkgPath:     st.pkg.Path(),
			Ident:       "AddToCart",
			HasContext:  true,
			Params: []analysis.ParamDecl{
				{Name: "productId", Type: types.Typ[types.String]},
				{Name: "quantity", Type: types.Typ[types.Int]},
				{Name: "size", Type: st.size},
			},
			ReturnsValue: true,
			ReturnsError: true,
		},
		{
			Name:         "listProducts",
			Description:  "Execute listProducts",
			PkgPath:      st.pkg.Path(),
			Ident:        "ListProducts",
			ReturnsValue: true,
		},
		{
			Name:         "submitOrder",
			Description:  "Submit an order",
			PkgPath:      st.pkg.Path(),
			Ident:        "SubmitOrder",
			Flattened:    true,
			StructParam:  types.NewPointer(st.order),
			StructPtr:    true,
			Params:       []analysis.ParamDecl{{Name: "productId", Type: types.Typ[types.String]}},
			ReturnsError: true,
		},
		{
			Name:        "restock",
			Description: "Execute restock",
			PkgPath:     st.pkg.Path(),
			Ident:       "Restock",
			Params: []analysis.ParamDecl{
				{Name: "items", Type: types.NewSlice(st.item)},
				{Name: "tags", Type: types.NewSlice(types.Typ[types.String])},
				{Name: "payload", Type: types.Universe.Lookup("any").Type()},
			},
			ReturnsError: true,
		},
	}
}

func fixtureManifest(candidates []analysis.Candidate) *schema.Manifest {
	m := &schema.Manifest{}
	for _, c := range candidates {
		m.Actions = append(m.Actions, schema.ActionDescriptor{
			Name:        c.Name,
			Description: c.Description,
		})
	}
	return m
}

func generateFixture(t *testing.T) (string, string) {
	t.Helper()
	st := newShopTypes()
	candidates := fixtureCandidates(st)
	root := t.TempDir()

	path, err := Generate(root, "", fixtureManifest(candidates), candidates)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return path, string(data)
}

func TestGenerate_WritesBindingsFile(t *testing.T) {
	path, src := generateFixture(t)

	assert.Equal(t, GeneratedFileName, filepath.Base(path))
	assert.Equal(t, GeneratedDir, filepath.Base(filepath.Dir(path)))
	assert.Contains(t, src, "// Code generated by actis generate. DO NOT EDIT.")
	assert.Contains(t, src, "package actisgen")
	assert.Contains(t, src, `"example.com/demo/shop"`)
	assert.Contains(t, src, "const manifestJSON = ")
}

func TestGenerate_NewCatalogRegistersEveryAction(t *testing.T) {
	_, src := generateFixture(t)

	assert.Contains(t, src, "func NewCatalog() (*runtime.Catalog, error)")
	assert.Contains(t, src, "m, err := schema.Decode([]byte(manifestJSON))")
	assert.Contains(t, src, `c.Register("addToCart", bindAddToCart)`)
	assert.Contains(t, src, `c.Register("listProducts", bindListProducts)`)
	assert.Contains(t, src, `c.Register("submitOrder", bindSubmitOrder)`)
	assert.Contains(t, src, `c.Register("restock", bindRestock)`)
}

func TestGenerate_TypedAdapters(t *testing.T) {
	_, src := generateFixture(t)

	// Plain parameters convert through the runtime helpers; named basic
	// types get a cast.
	assert.Contains(t, src, `runtime.String(runtime.Field(params, "productId"))`)
	assert.Contains(t, src, `runtime.Int(runtime.Field(params, "quantity"))`)
	assert.Contains(t, src, `shop.Size(runtime.String(runtime.Field(params, "size")))`)
	assert.Contains(t, src, "out, err := shop.AddToCart(ctx, ")

	// Value-only result.
	assert.Contains(t, src, "return shop.ListProducts(), nil")

	// Flattened pointer struct decodes the whole map and passes the address.
	assert.Contains(t, src, "var arg shop.Order")
	assert.Contains(t, src, "runtime.DecodeInto(params, &arg)")
	assert.Contains(t, src, "return nil, shop.SubmitOrder(&arg)")

	// Composite parameters round-trip through DecodeInto; []string and any
	// have direct helpers.
	assert.Contains(t, src, "var p0 []shop.Item")
	assert.Contains(t, src, `runtime.DecodeInto(runtime.Field(params, "items"), &p0)`)
	assert.Contains(t, src, `runtime.Strings(runtime.Field(params, "tags"))`)
	assert.Contains(t, src, `runtime.Field(params, "payload")`)
}

func TestGenerate_CustomOutputDir(t *testing.T) {
	st := newShopTypes()
	candidates := fixtureCandidates(st)
	root := t.TempDir()

	path, err := Generate(root, "internal/gen", fixtureManifest(candidates), candidates)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "internal", "gen", GeneratedFileName), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "package gen")
}

func TestPackageName(t *testing.T) {
	assert.Equal(t, "actisgen", packageName(""))
	assert.Equal(t, "actisgen", packageName("actisgen"))
	assert.Equal(t, "gen", packageName("internal/gen"))
	assert.Equal(t, "mybindings", packageName("my-bindings"))
	assert.Equal(t, "actisgen", packageName("123"))
}

func TestGenerate_OutputIsGofmtShaped(t *testing.T) {
	_, src := generateFixture(t)

	formatted, err := format.Source([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, string(formatted), src)
}

func TestGenerate_Deterministic(t *testing.T) {
	_, first := generateFixture(t)
	_, second := generateFixture(t)
	assert.Equal(t, first, second)
}

func TestGenerate_AtomicNoTempFilesLeft(t *testing.T) {
	path, _ := generateFixture(t)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, GeneratedFileName, entries[0].Name())
}

func TestExportIdent(t *testing.T) {
	assert.Equal(t, "AddToCart", exportIdent("addToCart"))
	assert.Equal(t, "CancelOrder", exportIdent("cancel-order"))
	assert.Equal(t, "X2fast", exportIdent("2fast"))
	assert.Equal(t, "Action", exportIdent("---"))
}

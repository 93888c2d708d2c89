package analysis

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actis-dev/actis/pkg/schema"
)

const actionsSrc = `package shop

import "context"

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

type CartInput struct {
	ProductID string ` + "`json:\"productId\"`" + `
	Quantity  int    ` + "`json:\"quantity\"`" + `
	Size      Size   ` + "`json:\"size,omitempty\"`" + `
}

// AddToCart puts a product into the cart.
//
//actis:action Add a product to the shopping cart
func AddToCart(ctx context.Context, in CartInput) (string, error) {
	return "", nil
}

// AddToCartFlat is the unflattened twin of AddToCart.
//
//actis:action
func AddToCartFlat(ctx context.Context, productId string, quantity int, size Size) (string, error) {
	return "", nil
}

//actis:action List all known products
func ListProducts() []string {
	return nil
}

// NotAnAction has no marker and must not be discovered.
func NotAnAction() {}

//actis:action
func TooManyResults() (int, string, error) {
	return 0, "", nil
}
`

func discoverShop(t *testing.T) ([]Candidate, []schema.Diagnostic) {
	t.Helper()
	fset := token.NewFileSet()
	ctxPkg := contextPkg(t, fset)
	pkg := checkPkg(t, fset, "example.com/shop", map[string]string{"shop/actions.go": actionsSrc}, ctxPkg)
	proj := testProject(t, fset, pkg)

	cands, diags, err := NewDiscoverer(proj, StrategyAnnotation).Discover()
	require.NoError(t, err)
	return cands, diags
}

func TestDiscoverer_Annotation_FindsMarkedFunctions(t *testing.T) {
	cands, _ := discoverShop(t)
	names := make([]string, len(cands))
	for i, c := range cands {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"addToCart", "addToCartFlat", "listProducts"}, names)
}

func TestDiscoverer_Annotation_Description(t *testing.T) {
	cands, _ := discoverShop(t)
	assert.Equal(t, "Add a product to the shopping cart", cands[0].Description)
	// Marker without text falls back to the default.
	assert.Equal(t, "Execute addToCartFlat", cands[1].Description)
}

func TestDiscoverer_Annotation_UnsupportedResultsSkipped(t *testing.T) {
	cands, diags := discoverShop(t)
	for _, c := range cands {
		assert.NotEqual(t, "tooManyResults", c.Name)
	}
	found := false
	for _, d := range diags {
		if d.Code == schema.DiagUnsupportedParameter {
			found = true
		}
	}
	assert.True(t, found, "expected a diagnostic for TooManyResults")
}

func TestDiscoverer_FlatteningEquivalence(t *testing.T) {
	fset := token.NewFileSet()
	ctxPkg := contextPkg(t, fset)
	pkg := checkPkg(t, fset, "example.com/shop", map[string]string{"shop/actions.go": actionsSrc}, ctxPkg)
	proj := testProject(t, fset, pkg)

	cands, _, err := NewDiscoverer(proj, StrategyAnnotation).Discover()
	require.NoError(t, err)

	s := NewSerializer(proj.Universe)
	shapes := func(c Candidate) map[string]string {
		out := make(map[string]string)
		for _, p := range c.Params {
			out[p.Name] = wire(t, s.Serialize(p.Type))
		}
		return out
	}

	flattened := shapes(cands[0]) // AddToCart({productId, quantity, size})
	plain := shapes(cands[1])     // AddToCartFlat(productId, quantity, size)
	assert.Equal(t, plain, flattened)
	assert.True(t, cands[0].Flattened)
	assert.False(t, cands[1].Flattened)
}

func TestDiscoverer_ContextParameterSkipped(t *testing.T) {
	cands, _ := discoverShop(t)
	require.True(t, cands[0].HasContext)
	for _, p := range cands[0].Params {
		assert.NotEqual(t, "ctx", p.Name)
	}
	assert.False(t, cands[2].HasContext)
}

func TestDiscoverer_Registry_Strategy(t *testing.T) {
	const implSrc = `package shop

//actis:action Ship the order
func Ship(orderID string) error { return nil }

func Cancel(orderID string) error { return nil }

var CancelAlias = Cancel
`
	const registrySrc = `package shop

var Actions = map[string]any{
	"ship":   Ship,
	"cancel": CancelAlias,
	"broken": undefinedIdent,
}

var undefinedIdent = 42
`
	fset := token.NewFileSet()
	pkg := checkPkg(t, fset, "example.com/shop", map[string]string{
		"shop/impl.go":             implSrc,
		"shop/actions/registry.go": registrySrc,
	})
	proj := testProject(t, fset, pkg)

	cands, diags, err := NewDiscoverer(proj, StrategyRegistry).Discover()
	require.NoError(t, err)

	require.Len(t, cands, 2)
	assert.Equal(t, "ship", cands[0].Name)
	assert.Equal(t, "Ship the order", cands[0].Description)
	assert.Equal(t, "cancel", cands[1].Name)
	assert.Equal(t, "Execute cancel", cands[1].Description)

	// The non-function entry is skipped with a diagnostic.
	found := false
	for _, d := range diags {
		if d.Code == schema.DiagNotAFunction {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDiscoverer_Registry_Missing(t *testing.T) {
	fset := token.NewFileSet()
	pkg := checkPkg(t, fset, "example.com/shop", map[string]string{
		"shop/impl.go": "package shop\n\nfunc Noop() {}\n",
	})
	proj := testProject(t, fset, pkg)

	_, _, err := NewDiscoverer(proj, StrategyRegistry).Discover()
	require.Error(t, err)
}

func TestDiscoverer_DuplicateNames_LastWins(t *testing.T) {
	srcA := `package shop

//actis:action first copy
func Refresh() {}
`
	srcB := `package store

//actis:action second copy
func Refresh() {}
`
	fset := token.NewFileSet()
	pkgA := checkPkg(t, fset, "example.com/shop", map[string]string{"shop/a.go": srcA})
	pkgB := checkPkg(t, fset, "example.com/store", map[string]string{"store/b.go": srcB})
	proj := testProject(t, fset, pkgA, pkgB)

	cands, diags, err := NewDiscoverer(proj, StrategyAnnotation).Discover()
	require.NoError(t, err)

	require.Len(t, cands, 1)
	assert.Equal(t, "second copy", cands[0].Description)

	require.Len(t, diags, 1)
	assert.Equal(t, schema.DiagDuplicateAction, diags[0].Code)
}

package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actis-dev/actis/pkg/schema"
)

func cartManifest() *schema.Manifest {
	return &schema.Manifest{Actions: []schema.ActionDescriptor{
		{
			Name:        "addToCart",
			Description: "Add a product to the shopping cart",
			Params: []schema.Param{
				{Name: "productId", Node: schema.Primitive(schema.PrimString)},
				{Name: "quantity", Node: schema.Primitive(schema.PrimNumber)},
				{Name: "size", Node: schema.LiteralUnion("small", "medium", "large")},
			},
		},
		{
			Name:        "listProducts",
			Description: "List all known products",
		},
	}}
}

func noopBinding(ctx context.Context, params map[string]any) (any, error) {
	return nil, nil
}

func TestCatalog_RegisterAndLookup(t *testing.T) {
	c := NewCatalog(cartManifest())

	require.NoError(t, c.Register("addToCart", noopBinding))

	b, ok := c.Lookup("addToCart")
	assert.True(t, ok)
	assert.NotNil(t, b)

	_, ok = c.Lookup("listProducts")
	assert.False(t, ok)
}

func TestCatalog_Register_SupersetTolerated(t *testing.T) {
	c := NewCatalog(cartManifest())

	// A registry may carry bindings the manifest does not declare; they are
	// registered but never dispatched, since dispatch goes by manifest name.
	require.NoError(t, c.Register("notInManifest", noopBinding))

	b, ok := c.Lookup("notInManifest")
	assert.True(t, ok)
	assert.NotNil(t, b)
	assert.Nil(t, c.Describe("notInManifest"))
}

func TestCatalog_Register_SupersetNotExecutable(t *testing.T) {
	c := NewCatalog(cartManifest())
	require.NoError(t, c.Register("notInManifest", noopBinding))

	res := NewExecutor(c).Execute(context.Background(), "notInManifest", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "notInManifest")
}

func TestCatalog_Register_Twice(t *testing.T) {
	c := NewCatalog(cartManifest())
	require.NoError(t, c.Register("addToCart", noopBinding))

	err := c.Register("addToCart", noopBinding)
	require.Error(t, err)
	var aerr *schema.ActisError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, schema.ErrCodeConflict, aerr.Code)
}

func TestCatalog_DescribeAndActions(t *testing.T) {
	c := NewCatalog(cartManifest())

	desc := c.Describe("addToCart")
	require.NotNil(t, desc)
	assert.Len(t, desc.Params, 3)
	assert.Nil(t, c.Describe("nope"))

	actions := c.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, "addToCart", actions[0].Name)
	assert.Equal(t, "listProducts", actions[1].Name)
}

func TestCatalog_Independent(t *testing.T) {
	// Two catalogs in one process do not share bindings.
	a := NewCatalog(cartManifest())
	b := NewCatalog(cartManifest())
	require.NoError(t, a.Register("addToCart", noopBinding))

	_, ok := b.Lookup("addToCart")
	assert.False(t, ok)
}

package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actis-dev/actis/pkg/runtime"
	"github.com/actis-dev/actis/pkg/schema"
)

func testManifest() *schema.Manifest {
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
			Description: "List every product in the catalog",
		},
	}}
}

func newTestServer(t *testing.T) *ActisServer {
	t.Helper()

	c := runtime.NewCatalog(testManifest())
	require.NoError(t, c.Register("addToCart", func(ctx context.Context, params map[string]any) (any, error) {
		return map[string]any{"added": params["productId"]}, nil
	}))
	require.NoError(t, c.Register("listProducts", func(ctx context.Context, params map[string]any) (any, error) {
		return []string{"shirt-1", "mug-2"}, nil
	}))

	return NewActisServer(ServerDeps{
		Catalog:  c,
		Executor: runtime.NewExecutor(c),
	})
}

func TestNewActisServer(t *testing.T) {
	s := newTestServer(t)
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.MCPServer())
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t)

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 3)

	expectedTools := []string{
		"actis.list",
		"addToCart",
		"listProducts",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	s := newTestServer(t)

	tool := s.mcpServer.GetTool("addToCart")
	require.NotNil(t, tool)
	assert.Equal(t, "Add a product to the shopping cart", tool.Tool.Description)

	raw := string(tool.Tool.RawInputSchema)
	assert.Contains(t, raw, `"type":"object"`)
	assert.Contains(t, raw, `"productId":{"type":"string"}`)
	assert.Contains(t, raw, `"quantity":{"type":"number"}`)
	assert.Contains(t, raw, `"size":{"enum":["small","medium","large"]}`)
}

func TestToolDefinitionNoParams(t *testing.T) {
	s := newTestServer(t)

	tool := s.mcpServer.GetTool("listProducts")
	require.NotNil(t, tool)
	assert.Equal(t, "List every product in the catalog", tool.Tool.Description)
	assert.Contains(t, string(tool.Tool.RawInputSchema), `"properties":{}`)
}

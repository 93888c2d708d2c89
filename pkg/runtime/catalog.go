package runtime

import (
	"context"

	"github.com/actis-dev/actis/pkg/schema"
)

// Binding is the runtime entry point for one action: it receives the
// coerced parameter map and returns the action's result.
type Binding func(ctx context.Context, params map[string]any) (any, error)

// Catalog pairs a decoded manifest with the registered bindings. It is
// explicitly constructed; callers that need several independent catalogs in
// one process simply build several.
type Catalog struct {
	manifest *schema.Manifest
	bindings map[string]Binding
}

// NewCatalog creates a catalog over the given manifest with no bindings
// registered yet.
func NewCatalog(m *schema.Manifest) *Catalog {
	return &Catalog{
		manifest: m,
		bindings: make(map[string]Binding),
	}
}

// Register attaches a binding by name. Names absent from the manifest are
// accepted: a registry may be a superset of the manifest, and the executor
// only dispatches names the manifest declares. Registering twice is a
// CONFLICT.
func (c *Catalog) Register(name string, b Binding) error {
	if _, exists := c.bindings[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "action %q already registered", name).WithAction(name)
	}
	c.bindings[name] = b
	return nil
}

// Lookup returns the binding for name. The second result reports presence;
// a missing binding is not an error at lookup time.
func (c *Catalog) Lookup(name string) (Binding, bool) {
	b, ok := c.bindings[name]
	return b, ok
}

// Describe returns the manifest descriptor for name, or nil.
func (c *Catalog) Describe(name string) *schema.ActionDescriptor {
	return c.manifest.Lookup(name)
}

// Actions returns all descriptors in manifest order.
func (c *Catalog) Actions() []schema.ActionDescriptor {
	return c.manifest.Actions
}

// Manifest returns the underlying manifest.
func (c *Catalog) Manifest() *schema.Manifest {
	return c.manifest
}

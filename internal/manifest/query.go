package manifest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/actis-dev/actis/pkg/schema"
)

// QueryEngine evaluates jq expressions against a decoded manifest document,
// for ad-hoc inspection of large manifests. Thread-safe: compiled *Code
// objects are cached and reused across goroutines.
type QueryEngine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewQueryEngine creates a query engine with an empty compile cache.
func NewQueryEngine() *QueryEngine {
	return &QueryEngine{cache: make(map[string]*gojq.Code)}
}

// Query compiles (or retrieves from cache) a jq expression and runs it over
// the manifest. jq expressions can produce multiple outputs; a single output
// is returned directly, multiple outputs are collected into a slice.
func (e *QueryEngine) Query(ctx context.Context, m *schema.Manifest, expression string) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty jq expression")
	}

	code, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	doc, err := toDocument(m)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, doc)

	var results []any
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"jq evaluation failed for %q: %s", expression, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"expression": expression})
		}
		results = append(results, val)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// getOrCompile returns a cached compiled code or compiles and caches a new one.
func (e *QueryEngine) getOrCompile(expression string) (*gojq.Code, error) {
	e.mu.RLock()
	if code, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return code, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if code, ok := e.cache[expression]; ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq parse error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	code, err := gojq.Compile(query,
		// Sandbox: return empty env to block $ENV and env access.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"jq compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = code
	return code, nil
}

// toDocument round-trips the manifest through its canonical encoding so gojq
// sees the exact persisted wire shape (plain maps, float64 numbers).
func toDocument(m *schema.Manifest) (any, error) {
	data, err := m.Encode()
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "encode manifest for query").WithCause(err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "decode manifest for query").WithCause(err)
	}
	return doc, nil
}

package interpolate

import (
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/actis-dev/actis/pkg/schema"
)

// exprEngine evaluates expr() escapes using expr-lang/expr. It supports
// array operations (filter, map, count, any, all), string operations, nil
// coalescing (??) and optional chaining (?.).
// Thread-safe: compiled *vm.Program objects are cached and reused across
// goroutines.
type exprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func newExprEngine() *exprEngine {
	return &exprEngine{cache: make(map[string]*vm.Program)}
}

// Evaluate compiles (or retrieves from cache) an expression and evaluates it
// against the provided environment. The env map keys are available as
// top-level variables.
func (e *exprEngine) Evaluate(expression string, env map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeInterpolation, "empty expr() expression")
	}

	prg, err := e.getOrCompile(expression, env)
	if err != nil {
		return nil, err
	}

	if env == nil {
		env = map[string]any{}
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"expr evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	return out, nil
}

func (e *exprEngine) getOrCompile(expression string, env map[string]any) (*vm.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	if env == nil {
		env = map[string]any{}
	}

	prg, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInterpolation,
			"expr compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = prg
	return prg, nil
}

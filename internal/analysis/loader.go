// Package analysis extracts action candidates and their parameter type
// shapes from a Go project. The Loader builds a type universe over the
// target module, the Discoverer finds the candidate action set, and the
// Serializer converts resolved types into schema nodes.
package analysis

import (
	"go/constant"
	"go/token"
	"go/types"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/actis-dev/actis/pkg/schema"
)

// ConstValue is one typed constant declared for a named type, in source
// declaration order.
type ConstValue struct {
	Name  string
	Value any // string, float64 or bool
	pos   token.Pos
}

// Universe indexes the named types and their constants for the analyzed
// module. It is built once per load and read-only afterwards.
type Universe struct {
	named  map[string]*types.Named
	consts map[string][]ConstValue
}

// NewUniverse builds a universe over the given type-checked packages.
func NewUniverse(pkgs ...*types.Package) *Universe {
	u := &Universe{
		named:  make(map[string]*types.Named),
		consts: make(map[string][]ConstValue),
	}
	for _, p := range pkgs {
		if p != nil {
			u.addPackage(p)
		}
	}
	for qn := range u.consts {
		cs := u.consts[qn]
		sort.Slice(cs, func(i, j int) bool { return cs[i].pos < cs[j].pos })
		u.consts[qn] = cs
	}
	return u
}

func (u *Universe) addPackage(p *types.Package) {
	scope := p.Scope()
	for _, name := range scope.Names() {
		switch obj := scope.Lookup(name).(type) {
		case *types.TypeName:
			if obj.IsAlias() {
				continue
			}
			if named, ok := obj.Type().(*types.Named); ok {
				u.named[qualifiedName(named)] = named
			}
		case *types.Const:
			named, ok := obj.Type().(*types.Named)
			if !ok || named.Obj().Pkg() == nil {
				continue
			}
			val := constValue(obj.Val())
			if val == nil {
				continue
			}
			qn := qualifiedName(named)
			u.consts[qn] = append(u.consts[qn], ConstValue{Name: obj.Name(), Value: val, pos: obj.Pos()})
		}
	}
}

// Contains reports whether the qualified name is part of the universe.
// The serializer consults it before expanding a named type structurally.
func (u *Universe) Contains(qualified string) bool {
	_, ok := u.named[qualified]
	return ok
}

// Consts returns the constants declared for the qualified type, in
// declaration order, or nil.
func (u *Universe) Consts(qualified string) []ConstValue {
	return u.consts[qualified]
}

// constValue converts a go/constant value into its manifest literal form.
// Unsupported kinds (complex, huge ints) return nil.
func constValue(v constant.Value) any {
	switch v.Kind() {
	case constant.String:
		return constant.StringVal(v)
	case constant.Int, constant.Float:
		f, ok := constant.Float64Val(v)
		if !ok {
			return nil
		}
		return f
	case constant.Bool:
		return constant.BoolVal(v)
	default:
		return nil
	}
}

// qualifiedName returns "pkg/path.Name" for a named type, or just the name
// for universe-scope types such as error.
func qualifiedName(named *types.Named) string {
	obj := named.Obj()
	if obj.Pkg() == nil {
		return obj.Name()
	}
	return obj.Pkg().Path() + "." + obj.Name()
}

// Project is a loaded, type-checked Go module ready for discovery.
type Project struct {
	Root     string
	Pkgs     []*packages.Package
	Fset     *token.FileSet
	Universe *Universe
}

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo |
	packages.NeedImports |
	packages.NeedDeps

// Load type-checks the module rooted at root. Patterns default to "./...".
// Packages with load errors are kept (discovery degrades per-candidate);
// the load only fails when nothing could be loaded at all.
func Load(root string, patterns ...string) (*Project, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Mode: loadMode,
		Dir:  root,
		Fset: fset,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeAnalysis, "load packages: %s", err.Error()).WithCause(err)
	}
	if len(pkgs) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeAnalysis, "no packages found under %s", root)
	}

	// Stable discovery order regardless of load order.
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PkgPath < pkgs[j].PkgPath })

	typPkgs := make([]*types.Package, 0, len(pkgs))
	for _, p := range pkgs {
		if p.Types != nil {
			typPkgs = append(typPkgs, p.Types)
		}
	}

	return &Project{
		Root:     root,
		Pkgs:     pkgs,
		Fset:     fset,
		Universe: NewUniverse(typPkgs...),
	}, nil
}

// Pos renders a token position as "file:line" relative to the project root.
func (p *Project) Pos(pos token.Pos) string {
	if p.Fset == nil || !pos.IsValid() {
		return ""
	}
	position := p.Fset.Position(pos)
	file := position.Filename
	if rel, err := filepath.Rel(p.Root, file); err == nil && !strings.HasPrefix(rel, "..") {
		file = rel
	}
	return file + ":" + strconv.Itoa(position.Line)
}

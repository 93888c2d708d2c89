package analysis

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

// testImporter resolves imports against a fixed set of pre-checked packages.
type testImporter map[string]*types.Package

func (ti testImporter) Import(path string) (*types.Package, error) {
	if p, ok := ti[path]; ok {
		return p, nil
	}
	return importer.Default().Import(path)
}

// checkPkg type-checks a set of sources (filename -> src) as one package
// and wraps it the way the loader would.
func checkPkg(t *testing.T, fset *token.FileSet, path string, sources map[string]string, deps ...*types.Package) *packages.Package {
	t.Helper()

	ti := testImporter{}
	for _, d := range deps {
		ti[d.Path()] = d
	}

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var files []*ast.File
	for _, name := range names {
		f, err := parser.ParseFile(fset, name, sources[name], parser.ParseComments)
		require.NoError(t, err)
		files = append(files, f)
	}

	info := &types.Info{
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
		Types: make(map[ast.Expr]types.TypeAndValue),
	}
	conf := types.Config{Importer: ti}
	tpkg, err := conf.Check(path, fset, files, info)
	require.NoError(t, err)

	return &packages.Package{
		PkgPath:   path,
		Name:      tpkg.Name(),
		Types:     tpkg,
		TypesInfo: info,
		Syntax:    files,
	}
}

// contextPkg builds a minimal stand-in for the context package so test
// sources can declare context.Context parameters without a real importer.
func contextPkg(t *testing.T, fset *token.FileSet) *types.Package {
	t.Helper()
	const src = `package context

type Context interface {
	Done() <-chan struct{}
	Err() error
}
`
	f, err := parser.ParseFile(fset, "context/context.go", src, 0)
	require.NoError(t, err)
	conf := types.Config{}
	tpkg, err := conf.Check("context", fset, []*ast.File{f}, nil)
	require.NoError(t, err)
	return tpkg
}

// testProject wires checked packages into a Project without going through
// the module loader.
func testProject(t *testing.T, fset *token.FileSet, pkgs ...*packages.Package) *Project {
	t.Helper()
	typPkgs := make([]*types.Package, 0, len(pkgs))
	for _, p := range pkgs {
		typPkgs = append(typPkgs, p.Types)
	}
	return &Project{
		Root:     ".",
		Pkgs:     pkgs,
		Fset:     fset,
		Universe: NewUniverse(typPkgs...),
	}
}

// lookupType fetches a named type declared in the package scope.
func lookupType(t *testing.T, pkg *packages.Package, name string) types.Type {
	t.Helper()
	obj := pkg.Types.Scope().Lookup(name)
	require.NotNil(t, obj, "type %s not found", name)
	return obj.Type()
}

package analysis

import (
	"fmt"
	"go/ast"
	"go/types"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/tools/go/packages"

	"github.com/actis-dev/actis/pkg/schema"
)

// ActionMarker is the doc-comment directive that exposes a function as an
// action under the annotation strategy. Trailing text is the description.
const ActionMarker = "actis:action"

// Strategy selects how the candidate action set is discovered.
type Strategy string

const (
	// StrategyAnnotation scans every package for exported functions whose
	// doc comment carries the action marker.
	StrategyAnnotation Strategy = "annotation"
	// StrategyRegistry reads a single conventionally-named exported map
	// literal and resolves each entry back to a function.
	StrategyRegistry Strategy = "registry"
)

// DefaultRegistryFile is where the registry strategy looks for the map.
const DefaultRegistryFile = "actions/registry.go"

// DefaultRegistryVar is the exported map variable the registry strategy reads.
const DefaultRegistryVar = "Actions"

// ParamDecl is one manifest parameter before serialization.
type ParamDecl struct {
	Name string
	Type types.Type
}

// Candidate is one discovered action with enough source information for
// both manifest building and binding generation.
type Candidate struct {
	Name        string
	Description string
	Params      []ParamDecl
	SourceRef   string // "import/path.Ident"
	Pos         string

	// Binding generation details.
	PkgPath      string
	Ident        string
	HasContext   bool
	Flattened    bool       // single struct parameter flattened into fields
	StructParam  types.Type // the original parameter type when Flattened
	StructPtr    bool       // the flattened parameter was a pointer
	ReturnsValue bool
	ReturnsError bool
}

// Discoverer walks a loaded project and produces the ordered candidate set.
type Discoverer struct {
	project      *Project
	strategy     Strategy
	registryFile string
	registryVar  string
	logger       *slog.Logger
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithRegistryFile overrides the registry file path (relative to root).
func WithRegistryFile(path string) DiscovererOption {
	return func(d *Discoverer) { d.registryFile = path }
}

// WithRegistryVar overrides the registry variable name.
func WithRegistryVar(name string) DiscovererOption {
	return func(d *Discoverer) { d.registryVar = name }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) DiscovererOption {
	return func(d *Discoverer) { d.logger = l }
}

// NewDiscoverer creates a Discoverer for the given strategy.
func NewDiscoverer(p *Project, strategy Strategy, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		project:      p,
		strategy:     strategy,
		registryFile: DefaultRegistryFile,
		registryVar:  DefaultRegistryVar,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover returns the ordered candidate set plus the non-fatal diagnostics
// accumulated along the way. A candidate whose signature cannot be resolved
// is skipped with a diagnostic, never fatal. Duplicate names keep the
// last-discovered candidate and emit a warning naming both locations.
func (d *Discoverer) Discover() ([]Candidate, []schema.Diagnostic, error) {
	var (
		raw  []Candidate
		diag []schema.Diagnostic
		err  error
	)
	switch d.strategy {
	case StrategyAnnotation:
		raw, diag = d.discoverAnnotated()
	case StrategyRegistry:
		raw, diag, err = d.discoverRegistry()
	default:
		return nil, nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown discovery strategy %q", d.strategy)
	}
	if err != nil {
		return nil, nil, err
	}

	deduped, dupDiag := dedupe(raw)
	diag = append(diag, dupDiag...)
	for _, dg := range diag {
		d.logger.Warn("discovery diagnostic", "code", dg.Code, "pos", dg.Pos, "message", dg.Message)
	}
	return deduped, diag, nil
}

// discoverAnnotated scans packages in path order and files in name order so
// discovery order is stable across runs.
func (d *Discoverer) discoverAnnotated() ([]Candidate, []schema.Diagnostic) {
	var out []Candidate
	var diags []schema.Diagnostic

	for _, pkg := range d.project.Pkgs {
		for _, file := range sortedSyntax(d.project, pkg) {
			for _, decl := range file.Decls {
				fd, ok := decl.(*ast.FuncDecl)
				if !ok || fd.Recv != nil || !fd.Name.IsExported() {
					continue
				}
				desc, marked := markerDescription(fd.Doc)
				if !marked {
					continue
				}

				obj, _ := pkg.TypesInfo.Defs[fd.Name].(*types.Func)
				if obj == nil {
					diags = append(diags, schema.Warning(schema.DiagUnresolvableBinding,
						d.project.Pos(fd.Pos()), "cannot resolve signature of %s; skipped", fd.Name.Name))
					continue
				}

				cand, cdiags := d.makeCandidate(lowerFirst(obj.Name()), desc, obj, d.project.Pos(fd.Pos()))
				diags = append(diags, cdiags...)
				if cand != nil {
					out = append(out, *cand)
				}
			}
		}
	}
	return out, diags
}

// discoverRegistry locates the registry map literal and resolves each entry.
func (d *Discoverer) discoverRegistry() ([]Candidate, []schema.Diagnostic, error) {
	pkg, lit := d.findRegistryLiteral()
	if lit == nil {
		return nil, nil, schema.NewErrorf(schema.ErrCodeDiscovery,
			"registry variable %q not found in %s", d.registryVar, d.registryFile)
	}

	var out []Candidate
	var diags []schema.Diagnostic

	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			continue
		}
		key, ok := kv.Key.(*ast.BasicLit)
		if !ok {
			diags = append(diags, schema.Warning(schema.DiagUnresolvableBinding,
				d.project.Pos(kv.Pos()), "registry key is not a string literal; skipped"))
			continue
		}
		name, err := strconv.Unquote(key.Value)
		if err != nil || name == "" {
			diags = append(diags, schema.Warning(schema.DiagUnresolvableBinding,
				d.project.Pos(kv.Pos()), "registry key %s is not a valid action name; skipped", key.Value))
			continue
		}

		obj := resolveValue(pkg, kv.Value)
		if obj == nil {
			diags = append(diags, schema.Warning(schema.DiagUnresolvableBinding,
				d.project.Pos(kv.Pos()), "cannot resolve registry entry %q; skipped", name))
			continue
		}
		fn, ok := callable(obj)
		if !ok {
			diags = append(diags, schema.Warning(schema.DiagNotAFunction,
				d.project.Pos(kv.Pos()), "registry entry %q does not reference a function; skipped", name))
			continue
		}

		desc := d.lookupMarkerDescription(obj)
		cand, cdiags := d.makeCandidate(name, desc, fn, d.project.Pos(kv.Pos()))
		diags = append(diags, cdiags...)
		if cand != nil {
			out = append(out, *cand)
		}
	}
	return out, diags, nil
}

// callable verifies the object carries call signatures.
func callable(obj types.Object) (types.Object, bool) {
	if _, ok := obj.Type().Underlying().(*types.Signature); ok {
		return obj, true
	}
	return nil, false
}

// resolveValue resolves an identifier or selector expression in the
// registry literal to the object it references, unwrapping parentheses.
func resolveValue(pkg *packages.Package, expr ast.Expr) types.Object {
	for {
		paren, ok := expr.(*ast.ParenExpr)
		if !ok {
			break
		}
		expr = paren.X
	}
	switch e := expr.(type) {
	case *ast.Ident:
		return pkg.TypesInfo.Uses[e]
	case *ast.SelectorExpr:
		return pkg.TypesInfo.Uses[e.Sel]
	default:
		return nil
	}
}

// findRegistryLiteral locates the registry map composite literal.
func (d *Discoverer) findRegistryLiteral() (*packages.Package, *ast.CompositeLit) {
	want := filepath.ToSlash(d.registryFile)
	for _, pkg := range d.project.Pkgs {
		for _, file := range pkg.Syntax {
			pos := d.project.Fset.Position(file.Pos())
			if !strings.HasSuffix(filepath.ToSlash(pos.Filename), want) {
				continue
			}
			for _, decl := range file.Decls {
				gd, ok := decl.(*ast.GenDecl)
				if !ok {
					continue
				}
				for _, spec := range gd.Specs {
					vs, ok := spec.(*ast.ValueSpec)
					if !ok {
						continue
					}
					for i, ident := range vs.Names {
						if ident.Name != d.registryVar || i >= len(vs.Values) {
							continue
						}
						if lit, ok := vs.Values[i].(*ast.CompositeLit); ok {
							return pkg, lit
						}
					}
				}
			}
		}
	}
	return nil, nil
}

// lookupMarkerDescription finds the declaration of the referenced function
// and reads its action marker text, if any.
func (d *Discoverer) lookupMarkerDescription(obj types.Object) string {
	if obj.Pkg() == nil {
		return ""
	}
	for _, pkg := range d.project.Pkgs {
		if pkg.Types != obj.Pkg() {
			continue
		}
		for _, file := range pkg.Syntax {
			for _, decl := range file.Decls {
				fd, ok := decl.(*ast.FuncDecl)
				if !ok || fd.Recv != nil || fd.Name.Name != obj.Name() {
					continue
				}
				if desc, marked := markerDescription(fd.Doc); marked {
					return desc
				}
				return ""
			}
		}
	}
	return ""
}

// makeCandidate extracts the parameter declarations and binding shape from
// a resolved function object. Returns nil with diagnostics when the
// signature is not supported.
func (d *Discoverer) makeCandidate(name, desc string, obj types.Object, pos string) (*Candidate, []schema.Diagnostic) {
	sig, ok := obj.Type().Underlying().(*types.Signature)
	if !ok || obj.Pkg() == nil {
		return nil, []schema.Diagnostic{schema.Warning(schema.DiagNotAFunction,
			pos, "%s is not a function; skipped", name)}
	}

	cand := &Candidate{
		Name:        name,
		Description: desc,
		SourceRef:   obj.Pkg().Path() + "." + obj.Name(),
		Pos:         pos,
		PkgPath:     obj.Pkg().Path(),
		Ident:       obj.Name(),
	}
	if cand.Description == "" {
		cand.Description = "Execute " + name
	}

	// Result arities beyond (T, error) have no uniform execution contract.
	res := sig.Results()
	switch res.Len() {
	case 0:
	case 1:
		if isErrorType(res.At(0).Type()) {
			cand.ReturnsError = true
		} else {
			cand.ReturnsValue = true
		}
	case 2:
		if !isErrorType(res.At(1).Type()) {
			return nil, []schema.Diagnostic{schema.Warning(schema.DiagUnsupportedParameter,
				pos, "%s: second result must be error; skipped", name)}
		}
		cand.ReturnsValue = true
		cand.ReturnsError = true
	default:
		return nil, []schema.Diagnostic{schema.Warning(schema.DiagUnsupportedParameter,
			pos, "%s: too many results; skipped", name)}
	}

	params := sig.Params()
	start := 0
	if params.Len() > 0 && isContextType(params.At(0).Type()) {
		cand.HasContext = true
		start = 1
	}

	// A single struct parameter flattens: each exported field becomes its
	// own top-level manifest parameter, exactly as if the function took
	// the fields as plain parameters.
	if params.Len()-start == 1 {
		pt := params.At(start).Type()
		if st, ptr, ok := flattenable(pt, d.project.Universe); ok {
			cand.Flattened = true
			cand.StructParam = pt
			cand.StructPtr = ptr
			cand.Params = structParams(st)
			return cand, nil
		}
	}

	for i := start; i < params.Len(); i++ {
		v := params.At(i)
		pname := v.Name()
		if pname == "" || pname == "_" {
			pname = fmt.Sprintf("arg%d", i-start)
		}
		cand.Params = append(cand.Params, ParamDecl{Name: pname, Type: v.Type()})
	}
	return cand, nil
}

// flattenable reports whether the single parameter type is a plain struct
// eligible for field flattening. Enum-like named types and excluded
// wrappers stay as direct parameters.
func flattenable(t types.Type, u *Universe) (*types.Struct, bool, bool) {
	ptr := false
	if p, ok := t.(*types.Pointer); ok {
		ptr = true
		t = p.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		qn := qualifiedName(named)
		if excludedNamedTypes[qn] || len(u.Consts(qn)) > 0 {
			return nil, false, false
		}
	}
	st, ok := t.Underlying().(*types.Struct)
	if !ok {
		return nil, false, false
	}
	return st, ptr, true
}

// structParams converts exported struct fields into parameter declarations,
// inlining embedded structs the way field promotion does.
func structParams(st *types.Struct) []ParamDecl {
	var out []ParamDecl
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		if !f.Exported() {
			continue
		}
		if f.Embedded() {
			if inner, ok := f.Type().Underlying().(*types.Struct); ok {
				out = append(out, structParams(inner)...)
			}
			continue
		}
		name, skip := fieldName(f, st.Tag(i))
		if skip {
			continue
		}
		out = append(out, ParamDecl{Name: name, Type: f.Type()})
	}
	return out
}

// dedupe enforces at most one candidate per name: the last-discovered
// candidate wins its original position, with a warning naming both sites.
func dedupe(in []Candidate) ([]Candidate, []schema.Diagnostic) {
	var diags []schema.Diagnostic
	index := make(map[string]int, len(in))
	var out []Candidate
	for _, c := range in {
		if at, seen := index[c.Name]; seen {
			diags = append(diags, schema.Warning(schema.DiagDuplicateAction, c.Pos,
				"action %q discovered more than once (previous at %s); last wins", c.Name, out[at].Pos))
			out[at] = c
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out, diags
}

// markerDescription scans a doc comment for the action marker line.
func markerDescription(doc *ast.CommentGroup) (string, bool) {
	if doc == nil {
		return "", false
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		if text == ActionMarker {
			return "", true
		}
		if rest, ok := strings.CutPrefix(text, ActionMarker+" "); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

// sortedSyntax returns the package's files ordered by file name.
func sortedSyntax(p *Project, pkg *packages.Package) []*ast.File {
	files := make([]*ast.File, len(pkg.Syntax))
	copy(files, pkg.Syntax)
	sort.Slice(files, func(i, j int) bool {
		return p.Fset.Position(files[i].Pos()).Filename < p.Fset.Position(files[j].Pos()).Filename
	})
	return files
}

func isContextType(t types.Type) bool {
	named, ok := t.(*types.Named)
	return ok && qualifiedName(named) == "context.Context"
}

func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	return ok && named.Obj().Pkg() == nil && named.Obj().Name() == "error"
}

// lowerFirst converts an exported Go identifier into the manifest's
// lowerCamel action-name convention.
func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

package scaffold

import (
	"bytes"
	"fmt"
	"go/format"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/actis-dev/actis/internal/analysis"
	"github.com/actis-dev/actis/pkg/schema"
)

// GeneratedDir is the package directory the bindings are written into.
const GeneratedDir = "actisgen"

// GeneratedFileName is the single generated source file.
const GeneratedFileName = "bindings_gen.go"

const (
	runtimePkgPath = "github.com/actis-dev/actis/pkg/runtime"
	schemaPkgPath  = "github.com/actis-dev/actis/pkg/schema"
)

// Generate emits the bindings package for the discovered candidates: one
// typed adapter per action converting the coerced parameter map into the
// function's real argument types, plus a NewCatalog constructor embedding
// the manifest. The package is written under root/outputDir (GeneratedDir
// when empty) and named after the directory's last element. Output is
// gofmt-shaped, deterministic for a given candidate set, and written
// atomically. Returns the generated file path.
func Generate(root, outputDir string, m *schema.Manifest, candidates []analysis.Candidate) (string, error) {
	if outputDir == "" {
		outputDir = GeneratedDir
	}

	encoded, err := m.Encode()
	if err != nil {
		return "", schema.NewError(schema.ErrCodeWrite, "encode manifest for embedding").WithCause(err)
	}

	g := newGenerator()
	src, err := g.render(packageName(outputDir), encoded, candidates)
	if err != nil {
		return "", err
	}

	path := filepath.Join(root, outputDir, GeneratedFileName)
	if err := writeFileAtomic(path, src); err != nil {
		return "", err
	}
	return path, nil
}

// packageName derives a valid package identifier from the output directory,
// falling back to GeneratedDir when nothing usable remains.
func packageName(outputDir string) string {
	base := filepath.Base(filepath.Clean(outputDir))
	var b strings.Builder
	for _, r := range base {
		if unicode.IsLetter(r) || r == '_' || (b.Len() > 0 && unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	if b.Len() == 0 {
		return GeneratedDir
	}
	return b.String()
}

type generator struct {
	imports *importSet
	names   map[string]bool
}

func newGenerator() *generator {
	return &generator{
		imports: newImportSet(),
		names:   make(map[string]bool),
	}
}

func (g *generator) render(pkgName string, encodedManifest []byte, candidates []analysis.Candidate) ([]byte, error) {
	rt := g.imports.add(runtimePkgPath)
	sc := g.imports.add(schemaPkgPath)
	if len(candidates) > 0 {
		g.imports.add("context")
	}

	// Adapters come first so every import they need is registered before the
	// import block is emitted.
	var adapters bytes.Buffer
	type registration struct{ action, adapter string }
	regs := make([]registration, 0, len(candidates))
	for _, c := range candidates {
		name := g.adapterName(c.Name)
		regs = append(regs, registration{c.Name, name})
		if err := g.adapter(&adapters, name, c); err != nil {
			return nil, err
		}
	}

	var out bytes.Buffer
	out.WriteString("// Code generated by actis generate. DO NOT EDIT.\n\n")
	fmt.Fprintf(&out, "package %s\n\n", pkgName)

	out.WriteString("import (\n")
	std, rest := g.imports.grouped()
	for _, line := range std {
		out.WriteString("\t" + line + "\n")
	}
	if len(std) > 0 && len(rest) > 0 {
		out.WriteString("\n")
	}
	for _, line := range rest {
		out.WriteString("\t" + line + "\n")
	}
	out.WriteString(")\n\n")

	out.WriteString("// manifestJSON is the manifest this package was generated from.\n")
	fmt.Fprintf(&out, "const manifestJSON = %q\n\n", string(encodedManifest))

	out.WriteString("// NewCatalog decodes the embedded manifest and registers every generated\n// binding.\n")
	fmt.Fprintf(&out, "func NewCatalog() (*%s.Catalog, error) {\n", rt)
	fmt.Fprintf(&out, "\tm, err := %s.Decode([]byte(manifestJSON))\n", sc)
	out.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	fmt.Fprintf(&out, "\tc := %s.NewCatalog(m)\n", rt)
	for _, r := range regs {
		fmt.Fprintf(&out, "\tif err := c.Register(%q, %s); err != nil {\n\t\treturn nil, err\n\t}\n", r.action, r.adapter)
	}
	out.WriteString("\treturn c, nil\n}\n\n")

	out.Write(adapters.Bytes())

	formatted, err := format.Source(out.Bytes())
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeWrite, "format generated bindings").WithCause(err)
	}
	return formatted, nil
}

// adapter emits one binding function with the runtime.Binding signature.
func (g *generator) adapter(buf *bytes.Buffer, name string, c analysis.Candidate) error {
	rt := g.imports.add(runtimePkgPath)
	qual := func(p *types.Package) string { return g.imports.add(p.Path()) }
	callee := g.imports.add(c.PkgPath) + "." + c.Ident

	fmt.Fprintf(buf, "func %s(ctx context.Context, params map[string]any) (any, error) {\n", name)

	var args []string
	if c.HasContext {
		args = append(args, "ctx")
	}

	if c.Flattened {
		pt := c.StructParam
		if c.StructPtr {
			ptr, ok := pt.(*types.Pointer)
			if !ok {
				return schema.NewErrorf(schema.ErrCodeWrite,
					"action %q: flattened pointer parameter is not a pointer type", c.Name)
			}
			pt = ptr.Elem()
		}
		fmt.Fprintf(buf, "\tvar arg %s\n", types.TypeString(pt, qual))
		fmt.Fprintf(buf, "\tif err := %s.DecodeInto(params, &arg); err != nil {\n\t\treturn nil, err\n\t}\n", rt)
		if c.StructPtr {
			args = append(args, "&arg")
		} else {
			args = append(args, "arg")
		}
	} else {
		for i, p := range c.Params {
			args = append(args, g.paramExpr(buf, i, p, qual))
		}
	}

	call := fmt.Sprintf("%s(%s)", callee, strings.Join(args, ", "))
	switch {
	case c.ReturnsValue && c.ReturnsError:
		fmt.Fprintf(buf, "\tout, err := %s\n\treturn out, err\n", call)
	case c.ReturnsError:
		fmt.Fprintf(buf, "\treturn nil, %s\n", call)
	case c.ReturnsValue:
		fmt.Fprintf(buf, "\treturn %s, nil\n", call)
	default:
		fmt.Fprintf(buf, "\t%s\n\treturn nil, nil\n", call)
	}
	buf.WriteString("}\n\n")
	return nil
}

// paramExpr returns the Go expression converting one coerced parameter into
// the function's argument type, emitting a DecodeInto preamble when the type
// has no direct helper.
func (g *generator) paramExpr(buf *bytes.Buffer, i int, p analysis.ParamDecl, qual types.Qualifier) string {
	rt := g.imports.add(runtimePkgPath)
	field := fmt.Sprintf("%s.Field(params, %q)", rt, p.Name)
	t := p.Type

	switch u := t.Underlying().(type) {
	case *types.Basic:
		var helper, direct string
		switch {
		case u.Info()&types.IsString != 0:
			helper, direct = fmt.Sprintf("%s.String(%s)", rt, field), "string"
		case u.Info()&types.IsBoolean != 0:
			helper, direct = fmt.Sprintf("%s.Bool(%s)", rt, field), "bool"
		case u.Info()&types.IsFloat != 0:
			helper, direct = fmt.Sprintf("%s.Float(%s)", rt, field), "float64"
		case u.Info()&types.IsInteger != 0:
			helper, direct = fmt.Sprintf("%s.Int(%s)", rt, field), "int"
		}
		if helper != "" {
			target := types.TypeString(t, qual)
			if target == direct {
				return helper
			}
			return fmt.Sprintf("%s(%s)", target, helper)
		}

	case *types.Interface:
		if u.NumMethods() == 0 {
			return field
		}

	case *types.Slice:
		if _, named := t.(*types.Named); !named {
			if b, ok := u.Elem().(*types.Basic); ok && b.Kind() == types.String {
				return fmt.Sprintf("%s.Strings(%s)", rt, field)
			}
			if iface, ok := u.Elem().Underlying().(*types.Interface); ok && iface.NumMethods() == 0 {
				if _, elemNamed := u.Elem().(*types.Named); !elemNamed {
					return fmt.Sprintf("%s.Slice(%s)", rt, field)
				}
			}
		}
	}

	// No direct helper: round-trip through JSON into a typed local.
	v := fmt.Sprintf("p%d", i)
	fmt.Fprintf(buf, "\tvar %s %s\n", v, types.TypeString(t, qual))
	fmt.Fprintf(buf, "\tif err := %s.DecodeInto(%s, &%s); err != nil {\n\t\treturn nil, err\n\t}\n", rt, field, v)
	return v
}

// adapterName converts an action name into a unique exported-style adapter
// identifier ("addToCart" -> "bindAddToCart").
func (g *generator) adapterName(action string) string {
	base := "bind" + exportIdent(action)
	name := base
	for n := 2; g.names[name]; n++ {
		name = fmt.Sprintf("%s%d", base, n)
	}
	g.names[name] = true
	return name
}

// exportIdent turns an arbitrary action name into an exported identifier
// fragment, capitalizing segments split on non-alphanumeric runes.
func exportIdent(s string) string {
	var b strings.Builder
	boundary := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			boundary = true
			continue
		}
		if boundary {
			b.WriteRune(unicode.ToUpper(r))
			boundary = false
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out == "" {
		return "Action"
	}
	if r, _ := utf8.DecodeRuneInString(out); unicode.IsDigit(r) {
		return "X" + out
	}
	return out
}

// importSet assigns a stable local alias to every imported package path.
type importSet struct {
	byPath map[string]string
	taken  map[string]bool
}

func newImportSet() *importSet {
	return &importSet{
		byPath: make(map[string]string),
		taken:  make(map[string]bool),
	}
}

// add registers a path and returns its local alias.
func (im *importSet) add(path string) string {
	if alias, ok := im.byPath[path]; ok {
		return alias
	}
	base := aliasBase(path)
	alias := base
	for n := 2; im.taken[alias]; n++ {
		alias = fmt.Sprintf("%s%d", base, n)
	}
	im.byPath[path] = alias
	im.taken[alias] = true
	return alias
}

// grouped renders the import lines split into standard library and the rest,
// each sorted by path. Aliases matching the path base are omitted.
func (im *importSet) grouped() (std, rest []string) {
	paths := make([]string, 0, len(im.byPath))
	for p := range im.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		alias := im.byPath[p]
		line := fmt.Sprintf("%q", p)
		if alias != aliasBase(p) {
			line = alias + " " + line
		}
		if strings.Contains(strings.SplitN(p, "/", 2)[0], ".") {
			rest = append(rest, line)
		} else {
			std = append(std, line)
		}
	}
	return std, rest
}

// aliasBase derives the default identifier for a package path.
func aliasBase(path string) string {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	var b strings.Builder
	for _, r := range base {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "pkg"
	}
	if r, _ := utf8.DecodeRuneInString(out); unicode.IsDigit(r) {
		return "pkg" + out
	}
	return out
}

// writeFileAtomic writes data to path via a temp file and rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return schema.NewErrorf(schema.ErrCodeWrite, "create directory %s", dir).WithCause(err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeWrite, "create temp file in %s", dir).WithCause(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return schema.NewErrorf(schema.ErrCodeWrite, "write %s", tmpName).WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		return schema.NewErrorf(schema.ErrCodeWrite, "close %s", tmpName).WithCause(err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return schema.NewErrorf(schema.ErrCodeWrite, "chmod %s", tmpName).WithCause(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return schema.NewErrorf(schema.ErrCodeWrite, "rename %s to %s", tmpName, path).WithCause(err)
	}
	return nil
}

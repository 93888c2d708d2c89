package manifest

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/actis-dev/actis/internal/analysis"
	"github.com/actis-dev/actis/pkg/schema"
)

// DefaultFileName is the manifest file written next to the generated bindings.
const DefaultFileName = "actions.json"

// Builder turns discovered candidates into a manifest document. Parameter
// shapes come from the serializer; candidate order is preserved so the
// output is deterministic for a given source tree.
type Builder struct {
	serializer *analysis.Serializer
	logger     *slog.Logger
}

// NewBuilder creates a Builder over the given serializer.
func NewBuilder(s *analysis.Serializer, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{serializer: s, logger: logger}
}

// Build serializes every candidate's parameters and assembles the manifest.
// Serialization is total, so Build fails only on name conflicts that
// survived discovery-level dedupe.
func (b *Builder) Build(candidates []analysis.Candidate) (*schema.Manifest, error) {
	m := &schema.Manifest{Actions: make([]schema.ActionDescriptor, 0, len(candidates))}
	for _, c := range candidates {
		desc := schema.ActionDescriptor{
			Name:        c.Name,
			Description: c.Description,
			Params:      make([]schema.Param, 0, len(c.Params)),
			Module:      c.SourceRef,
		}
		for _, p := range c.Params {
			desc.Params = append(desc.Params, schema.Param{
				Name: p.Name,
				Node: b.serializer.Serialize(p.Type),
			})
		}
		m.Actions = append(m.Actions, desc)
	}
	if err := m.CheckUnique(); err != nil {
		return nil, err
	}
	b.logger.Debug("manifest built", "actions", len(m.Actions))
	return m, nil
}

// Write persists the manifest atomically: the encoded document goes to a
// temporary file in the target directory and is renamed into place, so a
// crashed run never leaves a truncated manifest behind. Write failures are
// fatal to generation.
func Write(path string, m *schema.Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return schema.NewError(schema.ErrCodeWrite, "encode manifest").WithCause(err)
	}
	return writeFileAtomic(path, data)
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

// Read loads and decodes a manifest file.
func Read(path string) (*schema.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound, "manifest %s not found", path).WithCause(err)
		}
		return nil, schema.NewErrorf(schema.ErrCodeStore, "read manifest %s", path).WithCause(err)
	}
	return schema.Decode(data)
}

package scaffold

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/actis-dev/actis/pkg/schema"
)

// ConfigFileName is the project configuration file written by Init.
const ConfigFileName = "actis.json"

const defaultConfig = `{
  "strategy": "annotation",
  "scan": ["./..."],
  "registry": "actions/registry.go",
  "output": "actisgen",
  "listen": ":8080",
  "db": "actis.db",
  "resolverUrl": "",
  "logLevel": "info"
}
`

const sampleAction = `package actions

// Greet returns a greeting for the given name.
//
// actis:action Greet a visitor by name
func Greet(name string) (string, error) {
	return "hello, " + name, nil
}
`

const registryStub = `package actions

// Actions maps action names to their implementing functions. Only read by
// the registry discovery strategy; keep using annotations if you prefer.
var Actions = map[string]any{
	"greet": Greet,
}
`

// Init seeds a project with the configuration file, a sample annotated
// action and a registry stub. Existing files are never overwritten; they are
// skipped with a log line. Returns the paths actually written.
func Init(root string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	seeds := []struct {
		rel     string
		content string
	}{
		{ConfigFileName, defaultConfig},
		{filepath.Join("actions", "greet.go"), sampleAction},
		{filepath.Join("actions", "registry.go"), registryStub},
	}

	var written []string
	for _, seed := range seeds {
		path := filepath.Join(root, seed.rel)
		if _, err := os.Stat(path); err == nil {
			logger.Info("file exists, skipped", "path", path)
			continue
		} else if !os.IsNotExist(err) {
			return written, schema.NewErrorf(schema.ErrCodeWrite, "stat %s", path).WithCause(err)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return written, schema.NewErrorf(schema.ErrCodeWrite, "create directory for %s", path).WithCause(err)
		}
		if err := os.WriteFile(path, []byte(seed.content), 0o644); err != nil {
			return written, schema.NewErrorf(schema.ErrCodeWrite, "write %s", path).WithCause(err)
		}
		logger.Info("wrote", "path", path)
		written = append(written, path)
	}
	return written, nil
}

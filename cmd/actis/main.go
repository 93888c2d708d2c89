package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/actis-dev/actis/internal/analysis"
	"github.com/actis-dev/actis/internal/logging"
	"github.com/actis-dev/actis/internal/manifest"
	"github.com/actis-dev/actis/internal/resolver"
	"github.com/actis-dev/actis/internal/scaffold"
	"github.com/actis-dev/actis/internal/server"
	"github.com/actis-dev/actis/internal/store"
	"github.com/actis-dev/actis/internal/streaming"
	"github.com/actis-dev/actis/pkg/mcp"
	"github.com/actis-dev/actis/pkg/runtime"
	"github.com/actis-dev/actis/pkg/schema"
)

// manifestFileName is the persisted manifest written by the generate verb.
const manifestFileName = "actis.manifest.json"

const usage = `usage: actis <command> [args]

commands:
  init [root]        seed a project with actis.json and a sample action
  generate [root]    discover actions and write the manifest and bindings
  query <jq> [root]  run a jq expression over the generated manifest
  serve [root]       run the HTTP API over the generated manifest
  mcp [root]         expose manifest actions as MCP tools over stdio
  version            print the CLI version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(rootArg(os.Args[2:]))
	case "generate":
		err = runGenerate(rootArg(os.Args[2:]))
	case "query":
		if len(os.Args) < 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		err = runQuery(os.Args[2], rootArg(os.Args[3:]))
	case "serve":
		err = runServe(rootArg(os.Args[2:]))
	case "mcp":
		err = runMCP(rootArg(os.Args[2:]))
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "actis: %v\n", err)
		os.Exit(1)
	}
}

// rootArg returns the project root: the first positional argument or the
// current working directory.
func rootArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func runInit(root string) error {
	cfg := loadConfig(root)
	logger := logging.New(os.Stderr, cfg.LogLevel)

	written, err := scaffold.Init(root, logger)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Println("wrote", path)
	}
	if len(written) == 0 {
		fmt.Println("nothing to do, project already initialized")
	}
	return nil
}

func runGenerate(root string) error {
	cfg := loadConfig(root)
	logger := logging.New(os.Stderr, cfg.LogLevel)

	m, candidates, err := buildManifest(root, cfg, logger)
	if err != nil {
		return err
	}

	manifestPath := filepath.Join(root, manifestFileName)
	if err := manifest.Write(manifestPath, m); err != nil {
		return err
	}
	logger.Info("manifest written", "path", manifestPath, "actions", len(m.Actions))

	bindingsPath, err := scaffold.Generate(root, cfg.Output, m, candidates)
	if err != nil {
		return err
	}
	logger.Info("bindings written", "path", bindingsPath)
	return nil
}

// buildManifest runs the full discovery pipeline: load, discover, serialize,
// validate. Diagnostics are logged but never fatal.
func buildManifest(root string, cfg Config, logger *slog.Logger) (*schema.Manifest, []analysis.Candidate, error) {
	proj, err := analysis.Load(root, cfg.Scan...)
	if err != nil {
		return nil, nil, err
	}

	d := analysis.NewDiscoverer(proj, analysis.Strategy(cfg.Strategy),
		analysis.WithRegistryFile(cfg.Registry),
		analysis.WithLogger(logger),
	)
	candidates, diags, err := d.Discover()
	if err != nil {
		return nil, nil, err
	}
	for _, diag := range diags {
		logger.Warn("discovery diagnostic", "issue", diag.String())
	}

	b := manifest.NewBuilder(analysis.NewSerializer(proj.Universe), logger)
	m, err := b.Build(candidates)
	if err != nil {
		return nil, nil, err
	}

	data, err := m.Encode()
	if err != nil {
		return nil, nil, err
	}
	v, err := manifest.NewValidator()
	if err != nil {
		return nil, nil, err
	}
	if err := v.Validate(data); err != nil {
		return nil, nil, err
	}
	return m, candidates, nil
}

func runQuery(expression, root string) error {
	m, err := manifest.Read(filepath.Join(root, manifestFileName))
	if err != nil {
		return err
	}

	engine := manifest.NewQueryEngine()
	result, err := engine.Query(context.Background(), m, expression)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runServe(root string) error {
	cfg := loadConfig(root)
	logger := logging.New(os.Stderr, cfg.LogLevel)

	m, err := manifest.Read(filepath.Join(root, manifestFileName))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	invStore, err := store.NewLibSQLStore(cfg.dbPath(root))
	if err != nil {
		return err
	}
	defer invStore.Close()
	if err := invStore.Migrate(ctx); err != nil {
		return err
	}

	catalog := runtime.NewCatalog(m)
	hub := streaming.NewMemoryHub()
	exec := runtime.NewExecutor(catalog,
		runtime.WithHub(hub),
		runtime.WithStore(invStore),
		runtime.WithLogger(logger),
	)

	var rs server.IntentResolver
	if cfg.ResolverURL != "" {
		rs = resolver.NewClient(cfg.ResolverURL, os.Getenv("ACTIS_API_KEY"),
			resolver.WithLogger(logger))
	}

	srv := server.NewServer(server.Deps{
		Catalog:  catalog,
		Executor: exec,
		Store:    invStore,
		Hub:      hub,
		Resolver: rs,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Listen, "actions", len(m.Actions))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}

func runMCP(root string) error {
	cfg := loadConfig(root)
	logger := logging.New(os.Stderr, cfg.LogLevel)

	m, err := manifest.Read(filepath.Join(root, manifestFileName))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := runtime.NewCatalog(m)
	s := mcp.NewActisServer(mcp.ServerDeps{
		Catalog:  catalog,
		Executor: runtime.NewExecutor(catalog, runtime.WithLogger(logger)),
		Logger:   logger,
	})
	logger.Info("mcp server on stdio", "actions", len(m.Actions))
	return s.Serve(ctx)
}

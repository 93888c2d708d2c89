package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/actis-dev/actis/internal/interpolate"
	"github.com/actis-dev/actis/internal/resolver"
	"github.com/actis-dev/actis/internal/store"
	"github.com/actis-dev/actis/internal/streaming"
	"github.com/actis-dev/actis/pkg/runtime"
	"github.com/actis-dev/actis/pkg/schema"
)

// IntentResolver turns free-form user intent into a concrete action call.
// *resolver.Client satisfies it; tests substitute a stub.
type IntentResolver interface {
	Resolve(ctx context.Context, intent string, m *schema.Manifest, prev *resolver.PreviousContext) (*resolver.Resolution, error)
}

// Deps holds the collaborators for the runtime HTTP surface. Store and
// Resolver are optional; the endpoints needing them answer 503 when absent.
type Deps struct {
	Catalog  *runtime.Catalog
	Executor *runtime.Executor
	Store    store.InvocationStore
	Hub      streaming.Hub
	Resolver IntentResolver
	Logger   *slog.Logger
}

// Server exposes the manifest, execution, resolution and invocation log over
// a JSON API plus an SSE event stream.
type Server struct {
	deps   Deps
	interp *interpolate.Interpolator
}

// NewServer creates a Server over the given dependencies.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{
		deps:   deps,
		interp: interpolate.New(),
	}
}

// Handler returns the HTTP handler for all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/actions", s.handleListActions)
	mux.HandleFunc("POST /api/actions/{name}/execute", s.handleExecute)
	mux.HandleFunc("POST /api/resolve", s.handleResolve)
	mux.HandleFunc("GET /api/invocations", s.handleInvocations)

	mux.HandleFunc("GET /sse/invocations", s.handleSSEInvocations)

	return mux
}

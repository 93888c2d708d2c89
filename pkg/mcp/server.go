package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/actis-dev/actis/pkg/runtime"
)

// ServerDeps holds the dependencies for creating an ActisServer.
type ServerDeps struct {
	Catalog  *runtime.Catalog
	Executor *runtime.Executor
	Logger   *slog.Logger
}

// ActisServer exposes every manifest action as an MCP tool over stdio, plus
// an actis.list tool returning the manifest itself.
type ActisServer struct {
	catalog   *runtime.Catalog
	executor  *runtime.Executor
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewActisServer creates an ActisServer with one tool per manifest action
// registered.
func NewActisServer(deps ServerDeps) *ActisServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &ActisServer{
		catalog:  deps.Catalog,
		executor: deps.Executor,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"actis",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Actis exposes this application's registered actions as tools. Call actis.list to see every action and its parameter schema, then call an action's own tool with its parameters. Parameters are coerced to the declared schema before execution."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes.
func (s *ActisServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom
// transports.
func (s *ActisServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns actis.list plus one tool per manifest action.
func (s *ActisServer) tools() []server.ServerTool {
	out := []server.ServerTool{
		{Tool: listTool(), Handler: s.handleList},
	}
	for _, desc := range s.catalog.Actions() {
		out = append(out, server.ServerTool{
			Tool:    actionTool(desc),
			Handler: s.actionHandler(desc.Name),
		})
	}
	return out
}

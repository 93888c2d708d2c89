package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/actis-dev/actis/pkg/schema"
)

// listTool describes the manifest-listing tool.
func listTool() mcp.Tool {
	return mcp.NewTool("actis.list",
		mcp.WithDescription("List every available action with its description and parameter schema"),
	)
}

// handleList returns the manifest document.
func (s *ActisServer) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(s.catalog.Manifest())
}

// actionTool builds the tool definition for one manifest action. The input
// schema is translated from the action's parameter shapes.
func actionTool(desc schema.ActionDescriptor) mcp.Tool {
	return mcp.NewToolWithRawSchema(desc.Name, desc.Description, toolInputSchema(desc.Params))
}

// actionHandler returns the handler executing one named action. Execution
// failures surface as tool-result errors, never as transport errors.
func (s *ActisServer) actionHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := s.executor.Execute(ctx, name, req.GetArguments())
		if !result.Success {
			return mcp.NewToolResultError(result.Error), nil
		}
		return marshalResult(result)
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

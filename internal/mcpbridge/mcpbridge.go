package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/xscopehub/datajud-bridge/internal/types"
	"github.com/xscopehub/datajud-bridge/pkg/manifest"
)

// Invoker runs a named tool.
type Invoker interface {
	Invoke(ctx context.Context, tool string, args types.Arguments) (types.Envelope, error)
}

// New returns an MCP streamable-HTTP handler exposing tools. Each call is
// delegated to inv; the envelope is returned as JSON text content and
// failures become tool errors rather than protocol errors.
func New(tools []types.ToolDescriptor, inv Invoker) (http.Handler, error) {
	srv := mcpserver.NewMCPServer(manifest.Name, manifest.Version, mcpserver.WithToolCapabilities(false))

	for _, desc := range tools {
		schema, err := json.Marshal(desc.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("encode schema of %s: %w", desc.Name, err)
		}
		srv.AddTool(mcp.NewToolWithRawSchema(desc.Name, desc.Description, schema), handler(desc.Name, inv))
	}

	return mcpserver.NewStreamableHTTPServer(srv), nil
}

func handler(name string, inv Invoker) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env, err := inv.Invoke(ctx, name, types.Arguments(req.GetArguments()))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		raw, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

package mcpbridge

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xscopehub/datajud-bridge/internal/types"
)

type stubInvoker struct{}

func (stubInvoker) Invoke(_ context.Context, tool string, args types.Arguments) (types.Envelope, error) {
	if tool == "fail" {
		return nil, errors.New("datajud error: internal error")
	}
	return types.NewEnvelope(map[string]any{"result": args["id"]}), nil
}

func testTools() []types.ToolDescriptor {
	schema := types.InputSchema{
		Type:       "object",
		Properties: map[string]types.Property{"id": {Type: "string"}},
		Required:   []string{"id"},
	}
	return []types.ToolDescriptor{
		{Name: "fetch", Description: "fetch a record", InputSchema: schema},
		{Name: "fail", Description: "always fails", InputSchema: schema},
	}
}

func startClient(t *testing.T) *client.Client {
	t.Helper()
	h, err := New(testTools(), stubInvoker{})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	c, err := client.NewStreamableHttpClient(srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Start(ctx))

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "test", Version: "0.0.1"}
	_, err = c.Initialize(ctx, init)
	require.NoError(t, err)
	return c
}

func TestListTools(t *testing.T) {
	c := startClient(t)

	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"fetch", "fail"}, names)
}

func TestCallToolReturnsEnvelopeText(t *testing.T) {
	c := startClient(t)

	req := mcp.CallToolRequest{}
	req.Params.Name = "fetch"
	req.Params.Arguments = map[string]any{"id": "0001234-56.2020.8.19.0001"}
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "got %T", res.Content[0])
	assert.JSONEq(t, `{"ok":true,"result":"0001234-56.2020.8.19.0001"}`, text.Text)
}

func TestCallToolFailureIsToolError(t *testing.T) {
	c := startClient(t)

	req := mcp.CallToolRequest{}
	req.Params.Name = "fail"
	req.Params.Arguments = map[string]any{"id": "x"}
	res, err := c.CallTool(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "internal error")
}

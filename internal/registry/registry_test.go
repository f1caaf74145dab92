package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xscopehub/datajud-bridge/internal/types"
)

func echo(ctx context.Context, args types.Arguments) (types.Envelope, error) {
	return types.NewEnvelope(map[string]any{"args": args}), nil
}

func TestListToolsKeepsRegistrationOrder(t *testing.T) {
	r := New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.RegisterTool(types.ToolDescriptor{Name: name}, echo)
	}
	r.RegisterTool(types.ToolDescriptor{Name: "alpha", Description: "replaced"}, echo)

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, r.Names())
	tools := r.ListTools()
	require.Len(t, tools, 3)
	assert.Equal(t, "replaced", tools[1].Description)
}

func TestInvokeTool(t *testing.T) {
	r := New()
	r.RegisterTool(types.ToolDescriptor{Name: "echo"}, echo)

	env, err := r.InvokeTool(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, true, env["ok"])
	assert.Equal(t, types.Arguments{}, env["args"])
}

func TestInvokeUnknownTool(t *testing.T) {
	r := New()
	_, err := r.InvokeTool(context.Background(), "nope", types.Arguments{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotFound))
	assert.False(t, r.Has("nope"))
}

func TestInvokeMissingImplementation(t *testing.T) {
	r := New()
	r.RegisterTool(types.ToolDescriptor{Name: "hollow"}, nil)
	_, err := r.InvokeTool(context.Background(), "hollow", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrToolNotFound))
}

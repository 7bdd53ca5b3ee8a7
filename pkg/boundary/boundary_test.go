package boundary

import (
	"context"
	"strings"
	"testing"

	stderrors "errors"

	models "github.com/XiaoConstantine/mcp-go/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratehq/strata/pkg/errors"
	"github.com/substratehq/strata/pkg/handle"
)

func TestCheckSerializable(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		wantErr bool
	}{
		{"flat map", map[string]interface{}{"key": "value", "n": 3}, false},
		{"nil", nil, false},
		{"nested slices", []interface{}{"a", []int{1, 2}}, false},
		{"channel fails closed", make(chan int), true},
		{"function fails closed", func() {}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSerializable(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.SerializationFailed, errors.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMarshalResult(t *testing.T) {
	data, err := MarshalResult(map[string]string{"answer": "42"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"42"}`, string(data))

	_, err = MarshalResult(make(chan int))
	require.Error(t, err)
	assert.Equal(t, errors.SerializationFailed, errors.CodeOf(err))
}

type fakeTool struct {
	name   string
	output string
	err    error
}

func (f fakeTool) Name() string        { return f.name }
func (f fakeTool) Description() string { return "fake tool" }

func (f fakeTool) Execute(context.Context, map[string]interface{}) (string, error) {
	return f.output, f.err
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register(fakeTool{name: "query"}))
	require.NoError(t, registry.Register(fakeTool{name: "fetch"}))

	err := registry.Register(fakeTool{name: "query"})
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))

	tool, err := registry.Get("query")
	require.NoError(t, err)
	assert.Equal(t, "query", tool.Name())

	_, err = registry.Get("missing")
	require.Error(t, err)
	assert.Equal(t, errors.ResourceNotFound, errors.CodeOf(err))

	assert.Equal(t, []string{"fetch", "query"}, registry.List())
}

func TestRegistryRejectsNilTool(t *testing.T) {
	err := NewRegistry().Register(nil)
	require.Error(t, err)
}

func TestInvokeInlineResult(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(fakeTool{name: "small", output: "short answer"}))
	inv := NewInvoker(registry, handle.NewMemStore(), 0)

	result, err := inv.Invoke(context.Background(), "small", nil)
	require.NoError(t, err)

	assert.False(t, result.Spilled())
	assert.Equal(t, "short answer", result.Inline)
}

func TestInvokeSpillsOversizedOutput(t *testing.T) {
	big := strings.Repeat("row data\n", 500)
	registry := NewRegistry()
	require.NoError(t, registry.Register(fakeTool{name: "dump", output: big}))

	store := handle.NewMemStore()
	inv := NewInvoker(registry, store, 100)

	result, err := inv.Invoke(context.Background(), "dump", nil)
	require.NoError(t, err)

	require.True(t, result.Spilled())
	assert.Empty(t, result.Inline)
	assert.Equal(t, len(big), result.Handle.Size)
	assert.LessOrEqual(t, len(result.Handle.Preview), handle.PreviewChars)

	// The spilled content is reachable, but only through a bounded view.
	stat, err := store.Stat(context.Background(), result.Handle.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Handle.ID, stat.ID)

	view := handle.NewView(store, handle.DefaultLimits())
	peek, err := view.Peek(context.Background(), result.Handle.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, "row data\nrow data\nro", peek)
}

func TestInvokeRejectsUnserializableParams(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(fakeTool{name: "t", output: "x"}))
	inv := NewInvoker(registry, handle.NewMemStore(), 0)

	_, err := inv.Invoke(context.Background(), "t", map[string]interface{}{"ch": make(chan int)})
	require.Error(t, err)
	assert.Equal(t, errors.SerializationFailed, errors.CodeOf(err))
}

func TestInvokeToolError(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(fakeTool{name: "broken", err: stderrors.New("backend down")}))
	inv := NewInvoker(registry, handle.NewMemStore(), 0)

	_, err := inv.Invoke(context.Background(), "broken", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestInvokeCanceledContext(t *testing.T) {
	inv := NewInvoker(NewRegistry(), handle.NewMemStore(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := inv.Invoke(ctx, "anything", nil)
	require.Error(t, err)
}

func TestFlattenContent(t *testing.T) {
	content := []models.Content{
		models.TextContent{Type: "text", Text: "first block"},
		models.TextContent{Type: "text", Text: "second block"},
	}
	assert.Equal(t, "first block\nsecond block", flattenContent(content))
	assert.Equal(t, "", flattenContent(nil))
}

func TestMCPToolValidate(t *testing.T) {
	tool := NewMCPTool("remote", "a remote tool", models.InputSchema{
		Type: "object",
		Properties: map[string]models.ParameterSchema{
			"query": {Type: "string", Required: true},
			"limit": {Type: "integer"},
		},
	}, nil, "remote")

	err := tool.validate(map[string]interface{}{"limit": 5})
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))

	assert.NoError(t, tool.validate(map[string]interface{}{"query": "reactions"}))
}

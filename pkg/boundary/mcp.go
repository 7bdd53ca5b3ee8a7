package boundary

import (
	"context"
	"strings"

	"github.com/XiaoConstantine/mcp-go/pkg/client"
	models "github.com/XiaoConstantine/mcp-go/pkg/model"

	"github.com/substratehq/strata/pkg/errors"
)

// MCPTool adapts a tool served over MCP to the boundary Tool interface. The
// server's output is flattened to text here; the invoker still applies the
// inline limit on top.
type MCPTool struct {
	name        string
	description string
	schema      models.InputSchema
	client      *client.Client
	remoteName  string
}

// NewMCPTool wraps the named remote tool.
func NewMCPTool(name, description string, schema models.InputSchema, c *client.Client, remoteName string) *MCPTool {
	return &MCPTool{
		name:        name,
		description: description,
		schema:      schema,
		client:      c,
		remoteName:  remoteName,
	}
}

func (t *MCPTool) Name() string        { return t.name }
func (t *MCPTool) Description() string { return t.description }

// InputSchema exposes the remote tool's parameter schema.
func (t *MCPTool) InputSchema() models.InputSchema {
	return t.schema
}

// Execute validates params against the schema and forwards the call.
func (t *MCPTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	if err := t.validate(params); err != nil {
		return "", err
	}

	result, err := t.client.CallTool(ctx, t.remoteName, params)
	if err != nil {
		return "", errors.WithFields(
			errors.Wrap(err, errors.Unknown, "mcp tool call failed"),
			errors.Fields{"tool_name": t.remoteName},
		)
	}
	return flattenContent(result.Content), nil
}

func (t *MCPTool) validate(params map[string]interface{}) error {
	for name, param := range t.schema.Properties {
		if param.Required {
			if _, exists := params[name]; !exists {
				return errors.WithFields(
					errors.New(errors.InvalidInput, "missing required parameter"),
					errors.Fields{"tool_name": t.name, "parameter": name},
				)
			}
		}
	}
	return nil
}

// flattenContent joins the text blocks of an MCP result. Non-text content
// has no boundary representation and is dropped.
func flattenContent(content []models.Content) string {
	var b strings.Builder
	for _, item := range content {
		if text, ok := item.(models.TextContent); ok {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text.Text)
		}
	}
	return b.String()
}

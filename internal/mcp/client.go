// File: internal/mcp/client.go

// Package mcp speaks the Model Context Protocol to external tool servers so
// scenarios can expose domain tools (seed data, read emails, flip feature
// flags) to the deciding model.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/uipilot/uipilot/api/schemas"
)

// Transport carries one JSON-RPC call to a tool server. Implementations own
// framing and process lifecycle.
type Transport interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Close() error
}

// Client implements schemas.ToolExecutor over a Transport.
type Client struct {
	transport Transport
	logger    *zap.Logger
}

// NewClient wraps a transport.
func NewClient(transport Transport, logger *zap.Logger) *Client {
	return &Client{transport: transport, logger: logger.Named("mcp")}
}

type listToolsResult struct {
	Tools []struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"inputSchema"`
	} `json:"tools"`
}

// ListTools enumerates the tools the server offers.
func (c *Client) ListTools(ctx context.Context) ([]schemas.ToolDescriptor, error) {
	raw, err := c.transport.Call(ctx, "tools/list", struct{}{})
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding tool list: %w", err)
	}
	tools := make([]schemas.ToolDescriptor, len(result.Tools))
	for i, t := range result.Tools {
		tools[i] = schemas.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: string(t.InputSchema),
		}
	}
	return tools, nil
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type callToolResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// Invoke calls one tool and returns its concatenated text output.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	c.logger.Debug("Invoking tool", zap.String("tool", name))

	raw, err := c.transport.Call(ctx, "tools/call", callToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("invoking tool %s: %w", name, err)
	}
	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("decoding tool %s result: %w", name, err)
	}

	var b strings.Builder
	for _, part := range result.Content {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	if result.IsError {
		return "", fmt.Errorf("tool %s reported an error: %s", name, b.String())
	}
	return b.String(), nil
}

// Close shuts down the underlying transport.
func (c *Client) Close() error { return c.transport.Close() }

// FilterTools narrows the server's tool list to what one task may use. A
// tool is enabled unless the project defaults disable it; task-level
// overrides win over the defaults.
func FilterTools(all []schemas.ToolDescriptor, defaults, overrides map[string]bool) []schemas.ToolDescriptor {
	out := make([]schemas.ToolDescriptor, 0, len(all))
	for _, tool := range all {
		enabled := true
		if v, ok := defaults[tool.Name]; ok {
			enabled = v
		}
		if v, ok := overrides[tool.Name]; ok {
			enabled = v
		}
		if enabled {
			out = append(out, tool)
		}
	}
	return out
}

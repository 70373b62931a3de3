// Package tools provides the retrieval tools offered to the model and the
// manager that dispatches tool calls by name.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

// Source is a provenance record for content an answer drew upon. URL is nil
// when no link could be resolved.
type Source struct {
	Text string  `json:"text"`
	URL  *string `json:"url"`
}

// Tool defines the interface for all tools offered to the model.
type Tool interface {
	// GetToolParam creates and returns an anthropic.ToolParam defining the tool
	GetToolParam() anthropic.ToolParam

	// Execute performs the tool call with the raw JSON input from a tool_use
	// block and returns a string result for the model
	Execute(ctx context.Context, input json.RawMessage) (string, error)

	// LastSources returns the sources produced by the most recent Execute call
	LastSources() []Source

	// ResetSources clears the tool's source buffer
	ResetSources()
}

// UnknownToolError indicates the model requested a tool that is not
// registered. This is a catalog/definition mismatch, not a recoverable tool
// failure, so it is not reported back to the model.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// Manager holds the registered tools and dispatches tool calls by name. It
// also aggregates the sources produced by tools during the current query, in
// the order the tools were first invoked.
//
// A Manager's source buffer is shared mutable state; use one Manager per
// in-flight query.
type Manager struct {
	mu      sync.Mutex
	tools   map[string]Tool
	order   []string // registration order
	invoked []string // first-invocation order within the current query
}

// NewManager creates a Manager with the given tools registered.
func NewManager(tools ...Tool) *Manager {
	m := &Manager{
		tools: make(map[string]Tool),
	}
	for _, t := range tools {
		m.Register(t)
	}
	return m
}

// Register adds a tool to the manager, replacing any previous tool with the
// same name.
func (m *Manager) Register(t Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := t.GetToolParam().Name
	if _, exists := m.tools[name]; !exists {
		m.order = append(m.order, name)
	}
	m.tools[name] = t
}

// GetToolParams returns all tool parameters for API calls, in registration
// order.
func (m *Manager) GetToolParams() []anthropic.ToolParam {
	m.mu.Lock()
	defer m.mu.Unlock()

	params := make([]anthropic.ToolParam, 0, len(m.order))
	for _, name := range m.order {
		params = append(params, m.tools[name].GetToolParam())
	}
	return params
}

// ExecuteTool dispatches a tool call to the named tool. It returns an
// UnknownToolError if no tool with that name is registered; any other error
// comes from the tool itself.
func (m *Manager) ExecuteTool(ctx context.Context, name string, input json.RawMessage) (string, error) {
	m.mu.Lock()
	tool, ok := m.tools[name]
	if ok {
		m.recordInvocation(name)
	}
	m.mu.Unlock()

	if !ok {
		return "", &UnknownToolError{Name: name}
	}
	return tool.Execute(ctx, input)
}

// recordInvocation notes the first invocation of each tool. Callers must hold
// m.mu.
func (m *Manager) recordInvocation(name string) {
	for _, n := range m.invoked {
		if n == name {
			return
		}
	}
	m.invoked = append(m.invoked, name)
}

// LastSources returns the sources produced during the current query,
// concatenated across tools in first-invocation order.
func (m *Manager) LastSources() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()

	sources := []Source{}
	for _, name := range m.invoked {
		sources = append(sources, m.tools[name].LastSources()...)
	}
	return sources
}

// ResetSources clears every registered tool's source buffer so stale
// provenance cannot leak into the next query.
func (m *Manager) ResetSources() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tool := range m.tools {
		tool.ResetSources()
	}
	m.invoked = nil
}

// parseInputJSON is a helper to unmarshal tool input
func parseInputJSON(input json.RawMessage, target any) error {
	if err := json.Unmarshal(input, target); err != nil {
		return fmt.Errorf("invalid tool input: %w", err)
	}
	return nil
}

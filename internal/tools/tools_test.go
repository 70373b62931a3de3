package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/require"
)

// stubTool is a minimal Tool whose Execute populates a fixed source list.
type stubTool struct {
	name    string
	result  string
	sources []Source
	last    []Source
}

func (s *stubTool) GetToolParam() anthropic.ToolParam {
	return anthropic.ToolParam{Name: s.name}
}

func (s *stubTool) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	s.last = s.sources
	return s.result, nil
}

func (s *stubTool) LastSources() []Source { return s.last }

func (s *stubTool) ResetSources() { s.last = nil }

func TestManager_GetToolParamsInRegistrationOrder(t *testing.T) {
	m := NewManager(
		&stubTool{name: "search_course_content"},
		&stubTool{name: "get_course_outline"},
	)

	params := m.GetToolParams()
	require.Len(t, params, 2)
	require.Equal(t, "search_course_content", params[0].Name)
	require.Equal(t, "get_course_outline", params[1].Name)
}

func TestManager_ExecuteDispatchesByName(t *testing.T) {
	m := NewManager(&stubTool{name: "search_course_content", result: "hit"})

	out, err := m.ExecuteTool(context.Background(), "search_course_content", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, "hit", out)
}

func TestManager_UnknownToolError(t *testing.T) {
	m := NewManager(&stubTool{name: "search_course_content"})

	_, err := m.ExecuteTool(context.Background(), "bogus_tool", json.RawMessage(`{}`))
	require.Error(t, err)
	require.EqualError(t, err, "unknown tool: bogus_tool")

	var unknown *UnknownToolError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "bogus_tool", unknown.Name)
}

func TestManager_SourcesFollowInvocationOrder(t *testing.T) {
	search := &stubTool{name: "search_course_content", sources: []Source{{Text: "RAG - Lesson 1"}}}
	outline := &stubTool{name: "get_course_outline", sources: []Source{{Text: "RAG Course"}}}
	m := NewManager(search, outline)

	// Invoke in the opposite of registration order
	_, err := m.ExecuteTool(context.Background(), "get_course_outline", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = m.ExecuteTool(context.Background(), "search_course_content", json.RawMessage(`{}`))
	require.NoError(t, err)

	sources := m.LastSources()
	require.Len(t, sources, 2)
	require.Equal(t, "RAG Course", sources[0].Text)
	require.Equal(t, "RAG - Lesson 1", sources[1].Text)
}

func TestManager_RepeatInvocationDoesNotDuplicateSources(t *testing.T) {
	search := &stubTool{name: "search_course_content", sources: []Source{{Text: "RAG - Lesson 1"}}}
	m := NewManager(search)

	for range 2 {
		_, err := m.ExecuteTool(context.Background(), "search_course_content", json.RawMessage(`{}`))
		require.NoError(t, err)
	}

	require.Len(t, m.LastSources(), 1)
}

func TestManager_ResetClearsAllTools(t *testing.T) {
	search := &stubTool{name: "search_course_content", sources: []Source{{Text: "a"}}}
	outline := &stubTool{name: "get_course_outline", sources: []Source{{Text: "b"}}}
	m := NewManager(search, outline)

	_, err := m.ExecuteTool(context.Background(), "search_course_content", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = m.ExecuteTool(context.Background(), "get_course_outline", json.RawMessage(`{}`))
	require.NoError(t, err)

	m.ResetSources()

	require.Empty(t, m.LastSources())
	require.Empty(t, search.LastSources())
	require.Empty(t, outline.LastSources())
}

func TestManager_LastSourcesEmptyBeforeAnyInvocation(t *testing.T) {
	m := NewManager(&stubTool{name: "search_course_content", sources: []Source{{Text: "a"}}})

	require.Empty(t, m.LastSources())
}

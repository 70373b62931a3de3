package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// CourseOutlineTool returns a course's title, link, and full lesson list.
type CourseOutlineTool struct {
	store       Retriever
	lastSources []Source
}

// NewCourseOutlineTool creates a new course outline tool.
func NewCourseOutlineTool(store Retriever) *CourseOutlineTool {
	return &CourseOutlineTool{store: store}
}

type courseOutlineInput struct {
	CourseName string `json:"course_name"`
}

// GetToolParam returns the tool parameter definition
func (t *CourseOutlineTool) GetToolParam() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        "get_course_outline",
		Description: anthropic.String("Get a course's full outline: title, link, and every lesson with its number and title"),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
			},
			Required: []string{"course_name"},
		},
	}
}

// Execute looks up the course outline. A lookup failure is returned as the
// result text so the model can explain it to the user.
func (t *CourseOutlineTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var in courseOutlineInput
	if err := parseInputJSON(input, &in); err != nil {
		return "", err
	}

	outline, err := t.store.GetCourseOutline(ctx, in.CourseName)
	if err != nil {
		return err.Error(), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", outline.Title)
	if outline.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", outline.Link)
	}
	if outline.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", outline.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(outline.Lessons))
	for _, lesson := range outline.Lessons {
		fmt.Fprintf(&b, "%d. %s\n", lesson.Number, lesson.Title)
	}

	source := Source{Text: outline.Title}
	if outline.Link != "" {
		link := outline.Link
		source.URL = &link
	}
	t.lastSources = []Source{source}

	return strings.TrimRight(b.String(), "\n"), nil
}

// LastSources returns the sources from the most recent lookup.
func (t *CourseOutlineTool) LastSources() []Source {
	return t.lastSources
}

// ResetSources clears the tool's source buffer.
func (t *CourseOutlineTool) ResetSources() {
	t.lastSources = nil
}

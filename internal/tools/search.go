package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/campuskit/course-assistant/internal/vectorstore"
)

// Retriever is the slice of the vector store that tools depend on.
type Retriever interface {
	Search(ctx context.Context, query string, courseName string, lessonNumber *int) (vectorstore.SearchResults, error)
	GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) string
	GetCourseLink(ctx context.Context, courseTitle string) string
	GetCourseOutline(ctx context.Context, courseName string) (vectorstore.CourseMeta, error)
}

// CourseSearchTool searches course content with optional course and lesson
// filters, and records the provenance of what it found.
type CourseSearchTool struct {
	store       Retriever
	lastSources []Source
}

// NewCourseSearchTool creates a new course content search tool.
func NewCourseSearchTool(store Retriever) *CourseSearchTool {
	return &CourseSearchTool{store: store}
}

// courseSearchInput represents the input for a search_course_content call.
// LessonNumber is a pointer because lesson 0 is a valid filter value.
type courseSearchInput struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name,omitempty"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
}

// GetToolParam returns the tool parameter definition
func (t *CourseSearchTool) GetToolParam() anthropic.ToolParam {
	return anthropic.ToolParam{
		Name:        "search_course_content",
		Description: anthropic.String("Search course materials with smart course name matching and lesson filtering"),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for in the course content",
				},
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": map[string]any{
					"type":        "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

// Execute runs the search and formats the hits. A retrieval failure is
// returned as the result text so the model can explain it to the user.
func (t *CourseSearchTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var in courseSearchInput
	if err := parseInputJSON(input, &in); err != nil {
		return "", err
	}

	results, err := t.store.Search(ctx, in.Query, in.CourseName, in.LessonNumber)
	if err != nil {
		return err.Error(), nil
	}

	if results.IsEmpty() {
		msg := "No relevant content found"
		if in.CourseName != "" {
			msg += fmt.Sprintf(" in course '%s'", in.CourseName)
		}
		if in.LessonNumber != nil {
			msg += fmt.Sprintf(" in lesson %d", *in.LessonNumber)
		}
		return msg + ".", nil
	}

	return t.formatResults(ctx, results), nil
}

// formatResults renders one labeled block per hit and replaces the tool's
// source list with one source per unique (course, lesson) pair.
func (t *CourseSearchTool) formatResults(ctx context.Context, results vectorstore.SearchResults) string {
	blocks := make([]string, 0, len(results.Documents))
	sources := []Source{}
	seen := map[string]bool{}

	for i, doc := range results.Documents {
		md := results.Metadata[i]

		header := "[" + md.CourseTitle
		if md.LessonNumber != nil {
			header += fmt.Sprintf(" - Lesson %d", *md.LessonNumber)
		}
		header += "]"
		blocks = append(blocks, header+"\n"+doc)

		key := md.CourseTitle
		if md.LessonNumber != nil {
			key = fmt.Sprintf("%s|%d", md.CourseTitle, *md.LessonNumber)
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		label := md.CourseTitle
		if md.LessonNumber != nil {
			label += fmt.Sprintf(" - Lesson %d", *md.LessonNumber)
		}
		sources = append(sources, Source{Text: label, URL: t.resolveLink(ctx, md)})
	}

	t.lastSources = sources
	return strings.Join(blocks, "\n\n")
}

// resolveLink prefers a lesson-specific link, then the course-level link, then
// no link at all.
func (t *CourseSearchTool) resolveLink(ctx context.Context, md vectorstore.ChunkMetadata) *string {
	var link string
	if md.LessonNumber != nil {
		link = t.store.GetLessonLink(ctx, md.CourseTitle, *md.LessonNumber)
	}
	if link == "" {
		link = t.store.GetCourseLink(ctx, md.CourseTitle)
	}
	if link == "" {
		return nil
	}
	return &link
}

// LastSources returns the sources from the most recent search.
func (t *CourseSearchTool) LastSources() []Source {
	return t.lastSources
}

// ResetSources clears the tool's source buffer.
func (t *CourseSearchTool) ResetSources() {
	t.lastSources = nil
}

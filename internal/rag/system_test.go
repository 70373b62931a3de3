package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuskit/course-assistant/internal/ai"
	"github.com/campuskit/course-assistant/internal/ingest"
	"github.com/campuskit/course-assistant/internal/vectorstore"
)

// fakeGenerator records the request it receives and optionally drives the
// dispatcher, mimicking a model that requests a tool round.
type fakeGenerator struct {
	requests  []ai.GenerateRequest
	answer    string
	err       error
	toolName  string
	toolInput string
}

func (f *fakeGenerator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if f.toolName != "" {
		if _, err := req.Dispatcher.ExecuteTool(ctx, f.toolName, []byte(f.toolInput)); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

type exchange struct {
	sessionID string
	query     string
	answer    string
}

type fakeSessions struct {
	history   map[string]string
	reads     []string
	exchanges []exchange
	deleted   []string
}

func (f *fakeSessions) CreateSession() string { return "session-1" }

func (f *fakeSessions) GetHistory(sessionID string) string {
	f.reads = append(f.reads, sessionID)
	return f.history[sessionID]
}

func (f *fakeSessions) AddExchange(sessionID, query, answer string) {
	f.exchanges = append(f.exchanges, exchange{sessionID: sessionID, query: query, answer: answer})
}

func (f *fakeSessions) Delete(sessionID string) { f.deleted = append(f.deleted, sessionID) }

type fakeCourseStore struct {
	results vectorstore.SearchResults
	count   int
	titles  []string
	addErr  error
	added   []vectorstore.CourseMeta
}

func (f *fakeCourseStore) Search(context.Context, string, string, *int) (vectorstore.SearchResults, error) {
	return f.results, nil
}

func (f *fakeCourseStore) GetLessonLink(context.Context, string, int) string { return "" }

func (f *fakeCourseStore) GetCourseLink(context.Context, string) string { return "" }

func (f *fakeCourseStore) GetCourseOutline(context.Context, string) (vectorstore.CourseMeta, error) {
	return vectorstore.CourseMeta{}, nil
}

func (f *fakeCourseStore) CourseCount(context.Context) (int, error) { return f.count, nil }

func (f *fakeCourseStore) CourseTitles(context.Context) ([]string, error) { return f.titles, nil }

func (f *fakeCourseStore) AddCourse(_ context.Context, meta vectorstore.CourseMeta, _ []vectorstore.Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, meta)
	return nil
}

func newTestSystem(gen *fakeGenerator, sessions *fakeSessions, store *fakeCourseStore) *System {
	if sessions.history == nil {
		sessions.history = map[string]string{}
	}
	return NewSystem(gen, sessions, store, ingest.NewProcessor(0, 0))
}

func TestQuery_WrapsQuestionInPromptTemplate(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	system := newTestSystem(gen, &fakeSessions{}, &fakeCourseStore{})

	_, _, err := system.Query(context.Background(), "What is RAG?", "")
	require.NoError(t, err)

	require.Len(t, gen.requests, 1)
	require.Equal(t, "Answer this question about course materials: What is RAG?", gen.requests[0].Query)
}

func TestQuery_OffersBothTools(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	system := newTestSystem(gen, &fakeSessions{}, &fakeCourseStore{})

	_, _, err := system.Query(context.Background(), "q", "")
	require.NoError(t, err)

	toolParams := gen.requests[0].Tools
	require.Len(t, toolParams, 2)
	require.Equal(t, "search_course_content", toolParams[0].Name)
	require.Equal(t, "get_course_outline", toolParams[1].Name)
	require.NotNil(t, gen.requests[0].Dispatcher)
}

func TestQuery_PassesSessionHistory(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	sessions := &fakeSessions{history: map[string]string{"s1": "User: hi\nAssistant: hello"}}
	system := newTestSystem(gen, sessions, &fakeCourseStore{})

	_, _, err := system.Query(context.Background(), "q", "s1")
	require.NoError(t, err)

	require.Equal(t, []string{"s1"}, sessions.reads)
	require.Equal(t, "User: hi\nAssistant: hello", gen.requests[0].ConversationHistory)
}

func TestQuery_NoSessionSkipsHistoryAndRecording(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	sessions := &fakeSessions{}
	system := newTestSystem(gen, sessions, &fakeCourseStore{})

	_, _, err := system.Query(context.Background(), "q", "")
	require.NoError(t, err)

	require.Empty(t, sessions.reads)
	require.Empty(t, sessions.exchanges)
	require.Equal(t, "", gen.requests[0].ConversationHistory)
}

func TestQuery_RecordsExchangeWithSession(t *testing.T) {
	gen := &fakeGenerator{answer: "the answer"}
	sessions := &fakeSessions{}
	system := newTestSystem(gen, sessions, &fakeCourseStore{})

	_, _, err := system.Query(context.Background(), "the question", "s1")
	require.NoError(t, err)

	require.Equal(t, []exchange{{sessionID: "s1", query: "the question", answer: "the answer"}}, sessions.exchanges)
}

func TestQuery_CollectsToolSources(t *testing.T) {
	lesson := 1
	store := &fakeCourseStore{results: vectorstore.SearchResults{
		Documents: []string{"doc"},
		Metadata:  []vectorstore.ChunkMetadata{{CourseTitle: "RAG", LessonNumber: &lesson}},
	}}
	gen := &fakeGenerator{answer: "ok", toolName: "search_course_content", toolInput: `{"query": "x"}`}
	system := newTestSystem(gen, &fakeSessions{}, store)

	_, sources, err := system.Query(context.Background(), "q", "")
	require.NoError(t, err)

	require.Len(t, sources, 1)
	require.Equal(t, "RAG - Lesson 1", sources[0].Text)
}

func TestQuery_NoToolUseMeansNoSources(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	system := newTestSystem(gen, &fakeSessions{}, &fakeCourseStore{})

	_, sources, err := system.Query(context.Background(), "q", "")
	require.NoError(t, err)
	require.Empty(t, sources)
}

func TestQuery_GeneratorErrorPropagates(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("completion request failed")}
	sessions := &fakeSessions{}
	system := newTestSystem(gen, sessions, &fakeCourseStore{})

	_, _, err := system.Query(context.Background(), "q", "s1")
	require.Error(t, err)
	require.Empty(t, sessions.exchanges)
}

func TestCourseAnalytics(t *testing.T) {
	store := &fakeCourseStore{count: 2, titles: []string{"Course A", "Course B"}}
	system := newTestSystem(&fakeGenerator{}, &fakeSessions{}, store)

	analytics, err := system.CourseAnalytics(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, analytics.TotalCourses)
	require.Equal(t, []string{"Course A", "Course B"}, analytics.CourseTitles)
}

func TestAddCourseFolder_IndexesNewCoursesOnly(t *testing.T) {
	dir := t.TempDir()
	doc := "Course Title: Fresh Course\nCourse Link: https://example.com/fresh\nCourse Instructor: Ada\n\n" +
		"Lesson 0: Introduction\nWelcome to the course. This lesson covers the basics.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fresh.txt"), []byte(doc), 0o644))

	known := "Course Title: Known Course\nCourse Link: https://example.com/known\nCourse Instructor: Bob\n\n" +
		"Lesson 0: Old News\nAlready indexed content.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "known.txt"), []byte(known), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.pdf"), []byte("binary"), 0o644))

	store := &fakeCourseStore{titles: []string{"Known Course"}}
	system := newTestSystem(&fakeGenerator{}, &fakeSessions{}, store)

	courses, chunks, err := system.AddCourseFolder(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, 1, courses)
	require.Positive(t, chunks)
	require.Len(t, store.added, 1)
	require.Equal(t, "Fresh Course", store.added[0].Title)
}

func TestAddCourseFolder_MissingDirErrors(t *testing.T) {
	system := newTestSystem(&fakeGenerator{}, &fakeSessions{}, &fakeCourseStore{})

	_, _, err := system.AddCourseFolder(context.Background(), "/nonexistent/path")
	require.Error(t, err)
}

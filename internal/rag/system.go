// Package rag coordinates a single query end to end: prompt construction,
// session history, the completion loop with retrieval tools, and source
// collection.
package rag

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/campuskit/course-assistant/internal/ai"
	"github.com/campuskit/course-assistant/internal/ingest"
	"github.com/campuskit/course-assistant/internal/tools"
	"github.com/campuskit/course-assistant/internal/vectorstore"
)

var tracer = otel.Tracer("course-assistant/rag")

// Generator produces an answer for a query, running tool rounds as needed.
type Generator interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (string, error)
}

// SessionStore tracks conversation history across queries.
type SessionStore interface {
	CreateSession() string
	GetHistory(sessionID string) string
	AddExchange(sessionID, query, answer string)
	Delete(sessionID string)
}

// CourseStore is the retrieval collaborator plus the catalog operations the
// system needs beyond tool dispatch.
type CourseStore interface {
	tools.Retriever
	CourseCount(ctx context.Context) (int, error)
	CourseTitles(ctx context.Context) ([]string, error)
	AddCourse(ctx context.Context, meta vectorstore.CourseMeta, chunks []vectorstore.Chunk) error
}

// Analytics summarizes the indexed course catalog.
type Analytics struct {
	TotalCourses int
	CourseTitles []string
}

// System is the top-level per-query coordinator.
type System struct {
	generator Generator
	sessions  SessionStore
	store     CourseStore
	processor *ingest.Processor
}

// NewSystem wires the query pipeline together.
func NewSystem(generator Generator, sessions SessionStore, store CourseStore, processor *ingest.Processor) *System {
	return &System{
		generator: generator,
		sessions:  sessions,
		store:     store,
		processor: processor,
	}
}

// Sessions exposes the session store to the HTTP layer.
func (s *System) Sessions() SessionStore {
	return s.sessions
}

// Query answers a question, returning the answer text and the sources the
// tools drew upon. When sessionID is non-empty, conversation history is read
// before the query and the exchange is recorded after it.
func (s *System) Query(ctx context.Context, text string, sessionID string) (string, []tools.Source, error) {
	ctx, span := tracer.Start(ctx, "rag.query")
	defer span.End()
	span.SetAttributes(attribute.Bool("session.present", sessionID != ""))

	prompt := fmt.Sprintf("Answer this question about course materials: %s", text)

	history := ""
	if sessionID != "" {
		history = s.sessions.GetHistory(sessionID)
	}

	// One tool manager per query so concurrent queries cannot share a source
	// buffer
	manager := tools.NewManager(
		tools.NewCourseSearchTool(s.store),
		tools.NewCourseOutlineTool(s.store),
	)

	answer, err := s.generator.Generate(ctx, ai.GenerateRequest{
		Query:               prompt,
		ConversationHistory: history,
		Tools:               manager.GetToolParams(),
		Dispatcher:          manager,
	})
	if err != nil {
		return "", nil, err
	}

	sources := manager.LastSources()
	manager.ResetSources()
	span.SetAttributes(attribute.Int("sources.count", len(sources)))

	if sessionID != "" {
		s.sessions.AddExchange(sessionID, text, answer)
	}

	return answer, sources, nil
}

// CourseAnalytics reports how many courses are indexed and their titles.
func (s *System) CourseAnalytics(ctx context.Context) (Analytics, error) {
	count, err := s.store.CourseCount(ctx)
	if err != nil {
		return Analytics{}, err
	}
	titles, err := s.store.CourseTitles(ctx)
	if err != nil {
		return Analytics{}, err
	}
	return Analytics{TotalCourses: count, CourseTitles: titles}, nil
}

// AddCourseFolder ingests every course document in dir, skipping courses whose
// titles are already in the catalog. It returns the number of courses and
// chunks added.
func (s *System) AddCourseFolder(ctx context.Context, dir string) (int, int, error) {
	existing, err := s.store.CourseTitles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list existing courses: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, title := range existing {
		known[title] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read course folder: %w", err)
	}

	coursesAdded, chunksAdded := 0, 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		meta, chunks, err := s.processor.ProcessFile(path)
		if err != nil {
			log.Printf("Skipping %s: %v", entry.Name(), err)
			continue
		}
		if known[meta.Title] {
			log.Printf("Course %q already indexed, skipping", meta.Title)
			continue
		}

		if err := s.store.AddCourse(ctx, meta, chunks); err != nil {
			return coursesAdded, chunksAdded, fmt.Errorf("add course %q: %w", meta.Title, err)
		}
		known[meta.Title] = true
		coursesAdded++
		chunksAdded += len(chunks)
		log.Printf("Indexed course %q (%d chunks)", meta.Title, len(chunks))
	}
	return coursesAdded, chunksAdded, nil
}

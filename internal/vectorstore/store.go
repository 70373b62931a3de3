// Package vectorstore provides Qdrant-backed storage and retrieval of course
// material: a catalog collection with one point per course, and a content
// collection with one point per text chunk.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	catalogCollection = "course_catalog"
	contentCollection = "course_content"
)

// Lesson describes one lesson within a course.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

// CourseMeta is the catalog entry for a course.
type CourseMeta struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// Chunk is one indexed piece of course content.
type Chunk struct {
	Content      string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
}

// ChunkMetadata is the provenance attached to each search hit. LessonNumber is
// nil for content that is not tied to a specific lesson.
type ChunkMetadata struct {
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
}

// SearchResults holds parallel slices of documents, their metadata, and their
// similarity distances.
type SearchResults struct {
	Documents []string
	Metadata  []ChunkMetadata
	Distances []float64
}

// IsEmpty reports whether the search produced no hits.
func (r SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}

// Embedder converts texts into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store talks to Qdrant over its HTTP API. All vectors come from the injected
// Embedder.
type Store struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	embedder   Embedder
	maxResults int
}

// NewStore creates a Store for the Qdrant instance at baseURL. maxResults caps
// the number of hits returned by Search.
func NewStore(baseURL, apiKey string, embedder Embedder, maxResults int) *Store {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 15 * time.Second},
		embedder:   embedder,
		maxResults: maxResults,
	}
}

// EnsureCollections creates the catalog and content collections if they do not
// exist yet.
func (s *Store) EnsureCollections(ctx context.Context, vectorSize int) error {
	for _, name := range []string{catalogCollection, contentCollection} {
		body := map[string]any{
			"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
		}
		err := s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", url.PathEscape(name)), body, nil)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}
	return nil
}

// AddCourse upserts a course's catalog entry and all of its content chunks.
func (s *Store) AddCourse(ctx context.Context, meta CourseMeta, chunks []Chunk) error {
	titleVecs, err := s.embedder.Embed(ctx, []string{meta.Title})
	if err != nil {
		return fmt.Errorf("embed course title: %w", err)
	}

	catalogPoint := map[string]any{
		"id":     uuid.NewString(),
		"vector": titleVecs[0],
		"payload": map[string]any{
			"title":       meta.Title,
			"course_link": meta.Link,
			"instructor":  meta.Instructor,
			"lessons":     meta.Lessons,
		},
	}
	if err := s.upsert(ctx, catalogCollection, []map[string]any{catalogPoint}); err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}

	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed content chunks: %w", err)
	}

	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{
			"course_title": c.CourseTitle,
			"chunk_index":  c.ChunkIndex,
			"content":      c.Content,
		}
		if c.LessonNumber != nil {
			payload["lesson_number"] = *c.LessonNumber
		}
		points[i] = map[string]any{
			"id":      uuid.NewString(),
			"vector":  vecs[i],
			"payload": payload,
		}
	}
	if err := s.upsert(ctx, contentCollection, points); err != nil {
		return fmt.Errorf("upsert content chunks: %w", err)
	}
	return nil
}

// Search runs a similarity search over course content. A non-empty courseName
// is resolved against the catalog first, so partial names like "MCP" match the
// full course title. A non-nil lessonNumber restricts hits to that lesson.
func (s *Store) Search(ctx context.Context, query string, courseName string, lessonNumber *int) (SearchResults, error) {
	var must []map[string]any
	if courseName != "" {
		title, err := s.resolveCourseName(ctx, courseName)
		if err != nil {
			return SearchResults{}, err
		}
		must = append(must, map[string]any{"key": "course_title", "match": map[string]any{"value": title}})
	}
	if lessonNumber != nil {
		must = append(must, map[string]any{"key": "lesson_number", "match": map[string]any{"value": *lessonNumber}})
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return SearchResults{}, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"vector":       vecs[0],
		"limit":        s.maxResults,
		"with_payload": true,
	}
	if len(must) > 0 {
		reqBody["filter"] = map[string]any{"must": must}
	}

	var resp envelope[[]pointResult]
	err = s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", url.PathEscape(contentCollection)), reqBody, &resp)
	if err != nil {
		return SearchResults{}, fmt.Errorf("search course content: %w", err)
	}

	results := SearchResults{}
	for _, point := range resp.Result {
		var payload chunkPayload
		if err := json.Unmarshal(point.Payload, &payload); err != nil {
			return SearchResults{}, fmt.Errorf("decode chunk payload: %w", err)
		}
		results.Documents = append(results.Documents, payload.Content)
		results.Metadata = append(results.Metadata, ChunkMetadata{
			CourseTitle:  payload.CourseTitle,
			LessonNumber: payload.LessonNumber,
			ChunkIndex:   payload.ChunkIndex,
		})
		results.Distances = append(results.Distances, 1-point.Score)
	}
	return results, nil
}

// GetCourseOutline resolves courseName and returns the course's catalog entry.
func (s *Store) GetCourseOutline(ctx context.Context, courseName string) (CourseMeta, error) {
	title, err := s.resolveCourseName(ctx, courseName)
	if err != nil {
		return CourseMeta{}, err
	}
	return s.catalogEntry(ctx, title)
}

// GetLessonLink returns the link for a specific lesson of a course, or "" if
// the course or lesson has none.
func (s *Store) GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) string {
	meta, err := s.catalogEntry(ctx, courseTitle)
	if err != nil {
		return ""
	}
	for _, lesson := range meta.Lessons {
		if lesson.Number == lessonNumber {
			return lesson.Link
		}
	}
	return ""
}

// GetCourseLink returns the course-level link, or "" if the course has none.
func (s *Store) GetCourseLink(ctx context.Context, courseTitle string) string {
	meta, err := s.catalogEntry(ctx, courseTitle)
	if err != nil {
		return ""
	}
	return meta.Link
}

// CourseCount returns the number of courses in the catalog.
func (s *Store) CourseCount(ctx context.Context) (int, error) {
	var resp envelope[countResult]
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", url.PathEscape(catalogCollection)), map[string]any{"exact": true}, &resp)
	if err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return resp.Result.Count, nil
}

// CourseTitles returns the titles of all courses in the catalog.
func (s *Store) CourseTitles(ctx context.Context) ([]string, error) {
	reqBody := map[string]any{
		"limit":        1000,
		"with_payload": true,
	}
	var resp envelope[scrollResult]
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", url.PathEscape(catalogCollection)), reqBody, &resp)
	if err != nil {
		return nil, fmt.Errorf("scroll catalog: %w", err)
	}
	titles := []string{}
	for _, point := range resp.Result.Points {
		var payload CourseMeta
		if err := json.Unmarshal(point.Payload, &payload); err != nil {
			continue
		}
		if payload.Title != "" {
			titles = append(titles, payload.Title)
		}
	}
	return titles, nil
}

// resolveCourseName finds the best-matching course title for a possibly
// partial or fuzzy name via a similarity search over the catalog.
func (s *Store) resolveCourseName(ctx context.Context, name string) (string, error) {
	vecs, err := s.embedder.Embed(ctx, []string{name})
	if err != nil {
		return "", fmt.Errorf("embed course name: %w", err)
	}
	reqBody := map[string]any{
		"vector":       vecs[0],
		"limit":        1,
		"with_payload": true,
	}
	var resp envelope[[]pointResult]
	err = s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", url.PathEscape(catalogCollection)), reqBody, &resp)
	if err != nil {
		return "", fmt.Errorf("search catalog: %w", err)
	}
	if len(resp.Result) == 0 {
		return "", fmt.Errorf("no course found matching '%s'", name)
	}
	var payload CourseMeta
	if err := json.Unmarshal(resp.Result[0].Payload, &payload); err != nil {
		return "", fmt.Errorf("decode catalog payload: %w", err)
	}
	return payload.Title, nil
}

func (s *Store) catalogEntry(ctx context.Context, title string) (CourseMeta, error) {
	reqBody := map[string]any{
		"limit":        1,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "title", "match": map[string]any{"value": title}},
			},
		},
	}
	var resp envelope[scrollResult]
	err := s.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", url.PathEscape(catalogCollection)), reqBody, &resp)
	if err != nil {
		return CourseMeta{}, fmt.Errorf("scroll catalog: %w", err)
	}
	if len(resp.Result.Points) == 0 {
		return CourseMeta{}, fmt.Errorf("course '%s' not found in catalog", title)
	}
	var payload CourseMeta
	if err := json.Unmarshal(resp.Result.Points[0].Payload, &payload); err != nil {
		return CourseMeta{}, fmt.Errorf("decode catalog payload: %w", err)
	}
	return payload, nil
}

func (s *Store) upsert(ctx context.Context, collection string, points []map[string]any) error {
	reqBody := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(collection)), reqBody, nil)
}

func (s *Store) do(ctx context.Context, method, path string, body any, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("qdrant %s %s -> http %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return err
		}
	}
	return nil
}

// --- Qdrant wire types ---

type envelope[T any] struct {
	Result T   `json:"result"`
	Status any `json:"status"`
}

type pointResult struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload json.RawMessage `json:"payload"`
}

type scrollResult struct {
	Points []pointResult `json:"points"`
}

type countResult struct {
	Count int `json:"count"`
}

type chunkPayload struct {
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number"`
	ChunkIndex   int    `json:"chunk_index"`
	Content      string `json:"content"`
}

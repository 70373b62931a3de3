// Package ingest parses course documents and splits them into overlapping
// chunks for indexing.
//
// A course document starts with header lines (Course Title, Course Link,
// Course Instructor), followed by lesson sections introduced by
// "Lesson N: <title>" lines, each optionally followed by a "Lesson Link:"
// line.
package ingest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/campuskit/course-assistant/internal/vectorstore"
)

var lessonHeaderRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.+)$`)

// Processor splits lesson text into chunks of roughly chunkSize characters,
// with chunkOverlap characters repeated between adjacent chunks.
type Processor struct {
	chunkSize    int
	chunkOverlap int
}

// NewProcessor creates a Processor; non-positive arguments fall back to
// 800/100.
func NewProcessor(chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 100
	}
	return &Processor{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// ProcessFile parses one course document into its catalog entry and content
// chunks.
func (p *Processor) ProcessFile(path string) (vectorstore.CourseMeta, []vectorstore.Chunk, error) {
	f, err := os.Open(path)
	if err != nil {
		return vectorstore.CourseMeta{}, nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return vectorstore.CourseMeta{}, nil, fmt.Errorf("read %s: %w", path, err)
	}

	meta, rest := parseHeader(lines)
	if meta.Title == "" {
		// Fall back to the file name so untitled documents are still indexed
		meta.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	chunks := p.parseLessons(&meta, rest)
	return meta, chunks, nil
}

// parseHeader consumes the leading metadata lines and returns the remaining
// document lines.
func parseHeader(lines []string) (vectorstore.CourseMeta, []string) {
	meta := vectorstore.CourseMeta{}
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "Course Title:"):
			meta.Title = strings.TrimSpace(strings.TrimPrefix(line, "Course Title:"))
		case strings.HasPrefix(line, "Course Link:"):
			meta.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
		case strings.HasPrefix(line, "Course Instructor:"):
			meta.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
		case line == "":
			// blank lines between headers are fine
		default:
			return meta, lines[i:]
		}
	}
	return meta, nil
}

// parseLessons walks the lesson sections, records each lesson in the catalog
// entry, and chunks the lesson text.
func (p *Processor) parseLessons(meta *vectorstore.CourseMeta, lines []string) []vectorstore.Chunk {
	var chunks []vectorstore.Chunk
	var buf []string
	var currentLesson *int

	flush := func() {
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = nil
		if text == "" {
			return
		}
		for _, piece := range p.chunkText(text) {
			content := fmt.Sprintf("Course %s content: %s", meta.Title, piece)
			if currentLesson != nil {
				content = fmt.Sprintf("Course %s Lesson %d content: %s", meta.Title, *currentLesson, piece)
			}
			chunks = append(chunks, vectorstore.Chunk{
				Content:      content,
				CourseTitle:  meta.Title,
				LessonNumber: currentLesson,
				ChunkIndex:   len(chunks),
			})
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if match := lessonHeaderRe.FindStringSubmatch(strings.TrimSpace(line)); match != nil {
			flush()
			number, _ := strconv.Atoi(match[1])
			lesson := vectorstore.Lesson{Number: number, Title: strings.TrimSpace(match[2])}
			if i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if strings.HasPrefix(next, "Lesson Link:") {
					lesson.Link = strings.TrimSpace(strings.TrimPrefix(next, "Lesson Link:"))
					i++
				}
			}
			meta.Lessons = append(meta.Lessons, lesson)
			currentLesson = &lesson.Number
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return chunks
}

// chunkText splits text into sentence-aligned pieces of at most chunkSize
// characters, repeating roughly chunkOverlap trailing characters at the start
// of the next piece.
func (p *Processor) chunkText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var pieces []string
	var current []string
	currentLen := 0

	for i := 0; i < len(sentences); i++ {
		s := sentences[i]
		if currentLen > 0 && currentLen+len(s)+1 > p.chunkSize {
			pieces = append(pieces, strings.Join(current, " "))

			// Carry trailing sentences forward as overlap
			overlap := []string{}
			overlapLen := 0
			for j := len(current) - 1; j >= 0 && overlapLen < p.chunkOverlap; j-- {
				overlap = append([]string{current[j]}, overlap...)
				overlapLen += len(current[j]) + 1
			}
			current = overlap
			currentLen = overlapLen
		}
		current = append(current, s)
		currentLen += len(s) + 1
	}
	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}
	return pieces
}

// splitSentences breaks text on sentence-ending punctuation followed by
// whitespace. Collapsed whitespace keeps chunk sizes predictable.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			end := i + 1
			for end < len(text) && (text[end] == '.' || text[end] == '!' || text[end] == '?') {
				end++
			}
			if end >= len(text) || text[end] == ' ' {
				sentences = append(sentences, strings.TrimSpace(text[start:end]))
				i = end
				start = end + 1
			}
		}
	}
	if start < len(text) {
		if tail := strings.TrimSpace(text[start:]); tail != "" {
			sentences = append(sentences, tail)
		}
	}
	return sentences
}

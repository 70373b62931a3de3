// Package api exposes the query pipeline over HTTP.
package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/course-assistant/internal/rag"
	"github.com/campuskit/course-assistant/internal/tools"
)

// RAGService is the part of the query pipeline the HTTP layer depends on.
type RAGService interface {
	Query(ctx context.Context, text string, sessionID string) (string, []tools.Source, error)
	CourseAnalytics(ctx context.Context) (rag.Analytics, error)
	Sessions() rag.SessionStore
}

// Server wraps a gin engine around the query pipeline.
type Server struct {
	Engine *gin.Engine
	rag    RAGService
}

// NewServer creates a Server with all API routes registered.
func NewServer(ragService RAGService) *Server {
	s := &Server{
		Engine: gin.Default(),
		rag:    ragService,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.Engine.Group("/api")
	api.POST("/query", s.handleQuery)
	api.GET("/courses", s.handleCourses)
	api.DELETE("/session/:id", s.handleDeleteSession)
}

// Start runs the HTTP server on the given port.
func (s *Server) Start(port string) error {
	if port == "" {
		port = "8000"
	}
	addr := ":" + port
	log.Printf("Server starting on %s", addr)
	return s.Engine.Run(addr)
}

type queryRequest struct {
	// Query is a pointer so a missing field can be told apart from a present
	// but empty question, which is valid
	Query     *string `json:"query"`
	SessionID string  `json:"session_id"`
}

type queryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

type courseStats struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	if req.Query == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "field 'query' is required"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.rag.Sessions().CreateSession()
	}

	answer, sources, err := s.rag.Query(c.Request.Context(), *req.Query, sessionID)
	if err != nil {
		log.Printf("Query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if sources == nil {
		sources = []tools.Source{}
	}

	c.JSON(http.StatusOK, queryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	})
}

func (s *Server) handleCourses(c *gin.Context) {
	analytics, err := s.rag.CourseAnalytics(c.Request.Context())
	if err != nil {
		log.Printf("Course analytics failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	titles := analytics.CourseTitles
	if titles == nil {
		titles = []string{}
	}
	c.JSON(http.StatusOK, courseStats{
		TotalCourses: analytics.TotalCourses,
		CourseTitles: titles,
	})
}

// handleDeleteSession deletes a session if it exists. The delete is
// idempotent: unknown ids also report ok.
func (s *Server) handleDeleteSession(c *gin.Context) {
	s.rag.Sessions().Delete(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Package api exposes the engine over HTTP with gin: chat, document upload,
// feedback, and health.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deepthink-ai/deepthink/pkg/assistant"
	"github.com/deepthink-ai/deepthink/pkg/store"
)

// Service is the assistant surface the API depends on.
type Service interface {
	Handle(ctx context.Context, req assistant.Request) (*assistant.Response, error)
	UploadDocument(ctx context.Context, sessionID, filename, parsedText string) (int64, error)
	RecordFeedback(ctx context.Context, userID, sessionID string, historyID int64, rating int, comment string) error
}

// HealthFunc reports backing-store health.
type HealthFunc func(ctx context.Context) error

// Server is the HTTP server.
type Server struct {
	engine  *gin.Engine
	service Service
	health  HealthFunc
}

// NewServer builds the router. health may be nil when no backing store needs
// probing.
func NewServer(service Service, health HealthFunc) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:  gin.New(),
		service: service,
		health:  health,
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", s.handleHealth)
	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/chat", s.handleChat)
		v1.POST("/documents", s.handleUploadDocument)
		v1.POST("/feedback", s.handleFeedback)
	}
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	slog.Info("HTTP server listening", "addr", addr)
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type chatRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	SessionID string `json:"session_id"`
	ThreadID  string `json:"thread_id"`
	Message   string `json:"message" binding:"required"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.service.Handle(c.Request.Context(), assistant.Request{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		ThreadID:  req.ThreadID,
		Message:   req.Message,
	})
	if err != nil {
		slog.Error("Chat request failed", "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type uploadDocumentRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Filename  string `json:"filename" binding:"required"`
	Text      string `json:"text" binding:"required"`
}

func (s *Server) handleUploadDocument(c *gin.Context) {
	var req uploadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := s.service.UploadDocument(c.Request.Context(), req.SessionID, req.Filename, req.Text)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type feedbackRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	SessionID string `json:"session_id"`
	HistoryID int64  `json:"history_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required"`
	Comment   string `json:"comment"`
}

func (s *Server) handleFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.service.RecordFeedback(c.Request.Context(),
		req.UserID, req.SessionID, req.HistoryID, req.Rating, req.Comment)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "interaction not found"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

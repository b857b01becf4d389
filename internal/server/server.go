package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/phonobot/internal/database"
	"github.com/example/phonobot/internal/session"
	"github.com/example/phonobot/pkg/models"
)

// MasteryHistory reads the append-only mastery log for trend reporting.
type MasteryHistory interface {
	HistoryForUser(userID int64) ([]models.MasteryRecord, error)
}

// Server exposes the training engine over HTTP.
type Server struct {
	manager *session.Manager
	mastery MasteryHistory
	router  *gin.Engine
}

// New creates a server and registers its routes
func New(manager *session.Manager, masteryRepo MasteryHistory) *Server {
	s := &Server{
		manager: manager,
		mastery: masteryRepo,
		router:  gin.Default(),
	}
	s.routes()
	return s
}

// Router returns the underlying gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) routes() {
	s.router.POST("/stages", s.handleStartStage)
	s.router.POST("/stages/:sessionID/problems", s.handleGenerateProblems)
	s.router.POST("/stages/:sessionID/attempts", s.handleSubmitAttempt)
	s.router.POST("/stages/:sessionID/complete", s.handleCompleteStage)
	s.router.GET("/users/:userID/mastery", s.handleMasteryHistory)
}

type startStageRequest struct {
	UserID        int64        `json:"user_id" binding:"required"`
	Stage         models.Stage `json:"stage" binding:"required"`
	TotalProblems int          `json:"total_problems" binding:"required,gt=0"`
}

func (s *Server) handleStartStage(c *gin.Context) {
	var req startStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.manager.StartStage(req.UserID, req.Stage, req.TotalProblems)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type generateProblemsRequest struct {
	Stage models.Stage `json:"stage" binding:"required"`
	Count int          `json:"count" binding:"required,gt=0"`
}

func (s *Server) handleGenerateProblems(c *gin.Context) {
	var req generateProblemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	problems, err := s.manager.GenerateProblems(c.Param("sessionID"), req.Stage, req.Count)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"problems": problems})
}

type submitAttemptRequest struct {
	UserID         int64        `json:"user_id" binding:"required"`
	ProblemNumber  int          `json:"problem_number" binding:"required,gt=0"`
	Stage          models.Stage `json:"stage"`
	AttemptNumber  int          `json:"attempt_number" binding:"required,gt=0"`
	ProblemContent string       `json:"problem_content"`
	Answer         string       `json:"answer"`
	IsCorrect      bool         `json:"is_correct"`
	IsReplyCorrect bool         `json:"is_reply_correct"`
	AudioURL       string       `json:"audio_url"`
}

func (s *Server) handleSubmitAttempt(c *gin.Context) {
	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.manager.SubmitAttempt(req.UserID, session.SubmitAttemptRequest{
		SessionID:      c.Param("sessionID"),
		ProblemNumber:  req.ProblemNumber,
		Stage:          req.Stage,
		AttemptNumber:  req.AttemptNumber,
		ProblemContent: req.ProblemContent,
		Answer:         req.Answer,
		IsCorrect:      req.IsCorrect,
		IsReplyCorrect: req.IsReplyCorrect,
		AudioURL:       req.AudioURL,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCompleteStage(c *gin.Context) {
	result, err := s.manager.CompleteStage(c.Param("sessionID"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type masteryHistoryQuery struct {
	UserID int64 `uri:"userID" binding:"required"`
}

func (s *Server) handleMasteryHistory(c *gin.Context) {
	var q masteryHistoryQuery
	if err := c.ShouldBindUri(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	history, err := s.mastery.HistoryForUser(q.UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// writeError maps engine errors onto HTTP statuses: missing references and
// sessions are client errors the caller can react to, everything else is a
// server fault.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "detail": err.Error()})
	case errors.Is(err, session.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid state", "detail": err.Error()})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

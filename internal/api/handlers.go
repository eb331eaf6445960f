package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/project"
)

// Response is the envelope of every JSON response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ConceptRequest is the body of project creation and concept edits.
type ConceptRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// FeedbackRequest is the optional body of a phase start.
type FeedbackRequest struct {
	Feedback string `json:"feedback"`
}

// ReviewRequest is the body of a review decision.
type ReviewRequest struct {
	Action   string `json:"action"`
	Feedback string `json:"feedback"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"status": "ok"}})
}

func (s *Server) createProject(c *gin.Context) {
	var req ConceptRequest
	if !s.bind(c, &req, true) {
		return
	}
	p, err := s.pipeline.CreateProject(c.Request.Context(), req.Title, req.Description)
	s.reply(c, http.StatusCreated, p, err)
}

func (s *Server) listProjects(c *gin.Context) {
	projects, err := s.pipeline.ListProjects(c.Request.Context())
	if projects == nil {
		projects = []*project.Project{}
	}
	s.reply(c, http.StatusOK, projects, err)
}

func (s *Server) getProject(c *gin.Context) {
	status, err := s.pipeline.GetStatus(c.Request.Context(), c.Param("id"))
	s.reply(c, http.StatusOK, status, err)
}

func (s *Server) startPipeline(c *gin.Context) {
	p, err := s.pipeline.StartPipeline(c.Request.Context(), c.Param("id"))
	s.reply(c, http.StatusOK, p, err)
}

func (s *Server) startPhase(c *gin.Context) {
	var req FeedbackRequest
	if !s.bind(c, &req, false) {
		return
	}
	p, err := s.pipeline.StartPhase(c.Request.Context(), c.Param("id"), project.Phase(c.Param("phase")), req.Feedback)
	s.reply(c, http.StatusOK, p, err)
}

func (s *Server) updateConcept(c *gin.Context) {
	var req ConceptRequest
	if !s.bind(c, &req, true) {
		return
	}
	p, err := s.pipeline.UpdateConcept(c.Request.Context(), c.Param("id"), req.Title, req.Description)
	s.reply(c, http.StatusOK, p, err)
}

func (s *Server) advanceConceptStep(c *gin.Context) {
	p, err := s.pipeline.AdvanceConceptStep(c.Request.Context(), c.Param("id"), project.Step(c.Param("step")))
	s.reply(c, http.StatusOK, p, err)
}

func (s *Server) review(c *gin.Context) {
	var req ReviewRequest
	if !s.bind(c, &req, true) {
		return
	}
	p, err := s.pipeline.ReviewPhase(c.Request.Context(), c.Param("id"), req.Action, req.Feedback)
	s.reply(c, http.StatusOK, p, err)
}

func (s *Server) retryCouncil(c *gin.Context) {
	p, err := s.pipeline.RetryCouncil(c.Request.Context(), c.Param("id"))
	s.reply(c, http.StatusOK, p, err)
}

// bind decodes the JSON body into v. An empty body is accepted unless
// required is set.
func (s *Server) bind(c *gin.Context, v any, required bool) bool {
	err := c.ShouldBindJSON(v)
	if err == nil || (!required && errors.Is(err, io.EOF)) {
		return true
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   "invalid request body: " + err.Error(),
		Code:    "invalid_body",
	})
	return false
}

func (s *Server) reply(c *gin.Context, status int, data any, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, Response{Success: true, Data: data})
}

func (s *Server) fail(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "project_id", c.Param("id"), "error", err)
		if !errors.IsUserFacing(err) {
			msg = "internal server error"
		}
	}
	c.AbortWithStatusJSON(status, Response{Success: false, Error: msg, Code: code})
}

// classify maps an operation error to an HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errors.ErrAlreadyStarted):
		return http.StatusConflict, "already_started"
	case errors.Is(err, errors.ErrNotInReview):
		return http.StatusConflict, "not_in_review"
	case errors.IsValidation(err):
		return http.StatusBadRequest, "invalid"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

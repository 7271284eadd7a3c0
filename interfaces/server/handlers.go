package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/felixgeelhaar/orbit/application"
	"github.com/felixgeelhaar/orbit/domain/agent"
	"github.com/felixgeelhaar/orbit/domain/checkpoint"
	"github.com/felixgeelhaar/orbit/infrastructure/logging"
)

// AgentRequest is the body of POST /api/v1/agent.
type AgentRequest struct {
	Message         string `json:"message"`
	SessionID       string `json:"session_id"`
	UserID          string `json:"user_id"`
	ThreadID        string `json:"thread_id,omitempty"`
	PermissionLevel int    `json:"permission_level,omitempty"`
}

func (r AgentRequest) toRequest() application.Request {
	return application.Request{
		Message:         r.Message,
		SessionID:       r.SessionID,
		UserID:          r.UserID,
		ThreadID:        r.ThreadID,
		PermissionLevel: r.PermissionLevel,
	}
}

// AgentResponse is the body returned by run and resume.
type AgentResponse struct {
	Messages     []string      `json:"messages"`
	Intent       agent.Intent  `json:"intent"`
	Command      string        `json:"command"`
	Status       string        `json:"status"`
	Outcome      agent.Outcome `json:"outcome,omitempty"`
	ThreadID     string        `json:"thread_id"`
	CheckpointID string        `json:"checkpoint_id"`
}

func newAgentResponse(r *application.Response) AgentResponse {
	return AgentResponse{
		Messages:     r.Messages,
		Intent:       r.Intent,
		Command:      r.Command,
		Status:       r.Status,
		Outcome:      r.Outcome,
		ThreadID:     r.ThreadID,
		CheckpointID: r.CheckpointID,
	}
}

// ResumeRequest is the optional body of POST /api/v1/threads/:id/resume.
type ResumeRequest struct {
	CheckpointID string `json:"checkpoint_id,omitempty"`
	Stream       bool   `json:"stream,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAgent(c echo.Context) error {
	var req AgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.engine.Run(c.Request().Context(), req.toRequest())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAgentResponse(resp))
}

func (s *Server) handleAgentStream(c echo.Context) error {
	var req AgentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	events, err := s.engine.Stream(c.Request().Context(), req.toRequest())
	if err != nil {
		return err
	}
	return s.streamEvents(c, events)
}

func (s *Server) handleResume(c echo.Context) error {
	var req ResumeRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	threadID := c.Param("id")
	ctx := c.Request().Context()

	if req.Stream {
		events, err := s.engine.ResumeStream(ctx, threadID, req.CheckpointID)
		if err != nil {
			return err
		}
		return s.streamEvents(c, events)
	}

	resp, err := s.engine.Resume(ctx, threadID, req.CheckpointID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newAgentResponse(resp))
}

func (s *Server) handleCheckpoints(c echo.Context) error {
	opts := checkpoint.ListOptions{Before: c.QueryParam("before")}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		opts.Limit = limit
	}

	entries, err := s.inspector.Timeline(c.Request().Context(), c.Param("id"), opts)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "thread not found")
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) handleGraph(c echo.Context) error {
	format := application.ExportFormat(c.QueryParam("format"))
	if format == "" {
		format = application.FormatJSON
	}
	out, err := application.ExportGraph(format)
	if err != nil {
		return err
	}

	contentType := echo.MIMETextPlainCharsetUTF8
	if format == application.FormatJSON {
		contentType = echo.MIMEApplicationJSONCharsetUTF8
	}
	return c.Blob(http.StatusOK, contentType, out)
}

// errorHandler maps domain errors to status codes and renders them as
// ErrorResponse.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := err.Error()

	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(he.Code)
		}
	case errors.Is(err, application.ErrEmptyMessage),
		errors.Is(err, checkpoint.ErrInvalidThreadID),
		errors.Is(err, application.ErrUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.Is(err, checkpoint.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, application.ErrNothingToResume),
		errors.Is(err, application.ErrThreadBusy):
		status = http.StatusConflict
	}

	if status >= http.StatusInternalServerError {
		logging.Error().
			Add(logging.Component("server")).
			Add(logging.Str("uri", c.Request().RequestURI)).
			Add(logging.ErrorField(err)).
			Msg("request failed")
		msg = "internal server error"
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, ErrorResponse{Error: msg})
}

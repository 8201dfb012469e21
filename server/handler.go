// Package server provides the HTTP layer: request intake, session polling,
// pause/resume and message history, mapped 1:1 onto orchestrator
// operations.
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hupe1980/caremesh/logging"
	"github.com/hupe1980/caremesh/metrics"
	"github.com/hupe1980/caremesh/orchestrator"
)

// defaultHistoryLimit caps /messages responses when no limit is given.
const defaultHistoryLimit = 50

// ProcedureRequest is the request body for POST /procedures.
type ProcedureRequest struct {
	UserText string `json:"user_text"`
	Setting  string `json:"setting"`
}

// ProcedureResponse acknowledges an accepted request; the workflow result
// is polled via the session endpoint.
type ProcedureResponse struct {
	SessionID   string `json:"session_id"`
	ServiceName string `json:"service_name"`
	Setting     string `json:"setting"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// SessionStatusResponse is the polling response for one session.
type SessionStatusResponse struct {
	SessionID string         `json:"session_id"`
	Status    string         `json:"status"`
	Progress  any            `json:"progress,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     any            `json:"error,omitempty"`
}

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	// Metrics enables request metrics and the /metrics endpoint.
	Metrics *metrics.Collector
	// Logging services.
	Logger logging.Logger
}

// Handler handles HTTP requests.
type Handler struct {
	orch    *orchestrator.Orchestrator
	metrics *metrics.Collector
	logger  logging.Logger
}

// NewHandler creates a new handler around an orchestrator.
func NewHandler(orch *orchestrator.Orchestrator, optFns ...func(o *HandlerOptions)) *Handler {
	opts := HandlerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Handler{orch: orch, metrics: opts.Metrics, logger: opts.Logger}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	if h.metrics != nil {
		e.Use(h.requestMetrics)
		e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}

	e.POST("/procedures", h.CreateProcedure)
	e.GET("/sessions/:session_id", h.GetSession)
	e.POST("/sessions/:session_id/pause", h.PauseSession)
	e.POST("/sessions/:session_id/resume", h.ResumeSession)
	e.GET("/messages", h.GetMessages)
	e.GET("/health", h.Health)
}

// CreateProcedure creates a session, launches the workflow in the
// background and returns the session id immediately.
// POST /procedures
func (h *Handler) CreateProcedure(c echo.Context) error {
	var req ProcedureRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.UserText) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_text is required"})
	}
	switch strings.ToLower(req.Setting) {
	case "home", "hospital":
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "setting must be either 'Home' or 'Hospital'"})
	}

	sessionID := h.orch.CreateSession()
	h.logger.Info("processing procedure request session_id=%s service=%s setting=%s",
		sessionID, req.UserText, req.Setting)

	// The workflow outlives this request, so it gets its own context.
	h.orch.Launch(context.Background(), sessionID, req.UserText, req.Setting)

	return c.JSON(http.StatusOK, ProcedureResponse{
		SessionID:   sessionID,
		ServiceName: req.UserText,
		Setting:     req.Setting,
		Status:      "processing",
		Message:     "Request is being processed. Use session_id to check status.",
	})
}

// GetSession returns the status of a processing session.
// GET /sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	sess, ok := h.orch.Sessions().Get(sessionID)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}

	resp := SessionStatusResponse{
		SessionID: sessionID,
		Status:    string(sess.Status),
		Progress:  sess.Data["progress"],
		Error:     sess.Data["error"],
	}
	if result, ok := sess.Data["result"].(map[string]any); ok {
		resp.Result = result
	}

	return c.JSON(http.StatusOK, resp)
}

// PauseSession pauses a running workflow.
// POST /sessions/:session_id/pause
func (h *Handler) PauseSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	if !h.orch.Pause(sessionID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found or cannot be paused"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "paused", "session_id": sessionID})
}

// ResumeSession resumes a paused workflow.
// POST /sessions/:session_id/resume
func (h *Handler) ResumeSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	if !h.orch.Resume(context.Background(), sessionID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found or cannot be resumed"})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "resumed", "session_id": sessionID})
}

// GetMessages returns recent bus history, optionally filtered by agent_id.
// GET /messages?agent_id=&limit=
func (h *Handler) GetMessages(c echo.Context) error {
	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = parsed
	}

	msgs := h.orch.Bus().History(c.QueryParam("agent_id"), limit)

	return c.JSON(http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// Health returns health status.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		h.metrics.RecordRequest(c.Path(), strconv.Itoa(c.Response().Status), time.Since(start))
		return err
	}
}

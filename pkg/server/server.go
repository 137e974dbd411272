// Package server is the HTTP surface: structured planning, free-text
// planning behind the guardrail and interpreter, and playlist retrieval.
package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/db"
	"github.com/dock108/reelplan/pkg/interpret"
	"github.com/dock108/reelplan/pkg/models"
	"github.com/dock108/reelplan/pkg/service"
)

type Server struct {
	planner     *service.Planner
	interpreter interpret.Interpreter
	guardrail   interpret.Guardrail
	log         *zap.Logger
}

func New(planner *service.Planner, interpreter interpret.Interpreter, guardrail interpret.Guardrail, log *zap.Logger) *Server {
	return &Server{
		planner:     planner,
		interpreter: interpreter,
		guardrail:   guardrail,
		log:         log,
	}
}

// Echo builds the router with all routes registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	v1 := e.Group("/v1")
	v1.POST("/plan", s.handlePlan)
	v1.POST("/plan/text", s.handlePlanText)
	v1.GET("/playlists/:id", s.handleGetPlaylist)

	return e
}

type planResponse struct {
	Playlist    *models.Playlist    `json:"playlist"`
	CacheStatus service.CacheStatus `json:"cache_status"`
}

func (s *Server) handlePlan(c echo.Context) error {
	var spec models.RequestSpec
	if err := c.Bind(&spec); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	playlist, status, err := s.planner.Plan(c.Request().Context(), spec)
	if err != nil {
		return s.planError(c, err)
	}

	return c.JSON(http.StatusOK, planResponse{Playlist: playlist, CacheStatus: status})
}

type planTextRequest struct {
	Text string `json:"text"`
}

func (s *Server) handlePlanText(c echo.Context) error {
	var req planTextRequest
	if err := c.Bind(&req); err != nil || req.Text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text must not be empty"})
	}

	ctx := c.Request().Context()

	verdict, err := s.guardrail.Check(ctx, req.Text)
	if err != nil {
		s.log.Error("guardrail check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "guardrail unavailable"})
	}
	if !verdict.Allowed {
		return c.JSON(http.StatusForbidden, map[string]string{
			"error":  "request blocked",
			"reason": verdict.Reason,
		})
	}

	result, err := s.interpreter.Interpret(ctx, req.Text)
	if err != nil {
		s.log.Error("interpretation failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "interpreter unavailable"})
	}
	if result.NeedsClarification != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"clarification": result.NeedsClarification,
		})
	}

	playlist, status, err := s.planner.Plan(ctx, *result.Parsed)
	if err != nil {
		return s.planError(c, err)
	}

	return c.JSON(http.StatusOK, planResponse{Playlist: playlist, CacheStatus: status})
}

func (s *Server) handleGetPlaylist(c echo.Context) error {
	playlist, err := s.planner.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "playlist not found"})
	}
	if err != nil {
		s.log.Error("playlist lookup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, playlist)
}

// planError maps coordinator failures: retryable ones tell the client to
// try again, everything else is a bad request.
func (s *Server) planError(c echo.Context, err error) error {
	if errors.Is(err, service.ErrRetryable) {
		s.log.Warn("plan failed with retryable error", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "temporarily unavailable, retry"})
	}
	s.log.Info("plan rejected", zap.Error(err))
	return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
}

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tourwise/server/internal/agent/model"
	errx "github.com/tourwise/server/internal/core/error"
	"github.com/tourwise/server/internal/ingest"
	logx "github.com/tourwise/server/pkg/logger"
)

// TurnEngine drives one conversation turn. Implemented by agent.Engine.
type TurnEngine interface {
	HandleTurn(ctx context.Context, userID, sessionID, query string) (*model.TurnOutput, error)
}

// BookingLister reads back a user's persisted bookings. Implemented by
// booking.Store.
type BookingLister interface {
	ListByUser(ctx context.Context, userID string) ([]*model.Booking, error)
}

// Server exposes the chat and ingestion HTTP API.
type Server struct {
	e        *echo.Echo
	engine   TurnEngine
	ingest   *ingest.Service
	bookings BookingLister
	config   model.ServerConfig
}

func New(engine TurnEngine, ingestSvc *ingest.Service, bookings BookingLister, config model.ServerConfig) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		e:        e,
		engine:   engine,
		ingest:   ingestSvc,
		bookings: bookings,
		config:   config,
	}

	e.GET("/healthz", s.handleHealth)
	e.POST("/api/users/:userid/chat", s.handleChat)
	e.GET("/api/users/:userid/bookings", s.handleBookings)
	e.POST("/admin/ingestion/ingest-file", s.handleIngest)
	return s
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.config.Addr).Msg("http server listening")
		errCh <- s.e.Start(s.config.Addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		return s.e.Shutdown(context.Background())
	}
}

type chatRequest struct {
	UserQuery string `json:"user_query"`
}

type chatResponse struct {
	Intent   model.Intent        `json:"intent"`
	Response *model.TurnResponse `json:"response"`
	Title    string              `json:"title,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	userID := c.Param("userid")
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
	}
	if strings.TrimSpace(req.UserQuery) == "" {
		return c.JSON(http.StatusBadRequest, errorBody("user_query is required"))
	}

	sessionID := "session_" + userID
	out, err := s.engine.HandleTurn(c.Request().Context(), userID, sessionID, req.UserQuery)
	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(http.StatusOK, chatResponse{
		Intent:   out.Intent,
		Response: out.Response,
		Title:    out.Title,
	})
}

func (s *Server) handleIngest(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("file is required"))
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("cannot open uploaded file"))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("cannot read uploaded file"))
	}

	ctx := c.Request().Context()
	var chunks int
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".json":
		chunks, err = s.ingest.IngestJSON(ctx, fileHeader.Filename, data)
	case ".txt":
		chunks, err = s.ingest.IngestText(ctx, fileHeader.Filename, string(data))
	default:
		return c.JSON(http.StatusBadRequest, errorBody("only .json and .txt files are supported"))
	}
	if err != nil {
		return s.renderError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "Ingestion successful",
		"chunks":  chunks,
	})
}

func (s *Server) handleBookings(c echo.Context) error {
	bookings, err := s.bookings.ListByUser(c.Request().Context(), c.Param("userid"))
	if err != nil {
		return s.renderError(c, err)
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return c.JSON(http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// renderError maps internal failures to polite client responses without
// leaking details; everything is logged with full context server-side.
func (s *Server) renderError(c echo.Context, err error) error {
	logx.Error().Err(err).Str("path", c.Path()).Msg("request failed")

	if errors.Is(err, context.DeadlineExceeded) {
		return c.JSON(http.StatusGatewayTimeout, errorBody("request timed out"))
	}

	var appErr *errx.Error
	if errors.As(err, &appErr) {
		return c.JSON(appErr.Status, errorBody(appErr.Message))
	}
	return c.JSON(http.StatusInternalServerError, errorBody(errx.SystemErrorMessage))
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// Package api exposes the service over HTTP: JSON endpoints for identity,
// zones, notes, documents and the planner, plus the SSE planner stream and
// the ICS export.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"smartzone/internal/documents"
	"smartzone/internal/identity"
	"smartzone/internal/notes"
	"smartzone/internal/planner"
	"smartzone/internal/settings"
	"smartzone/internal/store"
	"smartzone/internal/zones"
	"smartzone/pkg/logx"
)

// Deps carries everything the HTTP layer needs. All fields are required
// except Log.
type Deps struct {
	Identity  *identity.Service
	Zones     *zones.Service
	Notes     *notes.Service
	Documents *documents.Service
	Planner   *planner.Service
	Settings  *settings.Service
	Log       logx.Logger
}

type Server struct {
	e   *echo.Echo
	log logx.Logger
}

type appValidator struct {
	validate *validator.Validate
}

func (v *appValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

func New(d Deps) *Server {
	log := d.Log
	if log.IsZero() {
		log = logx.Nop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(requestLogger(log))
	e.Validator = &appValidator{validate: validator.New()}
	e.HTTPErrorHandler = errorHandler(log)

	s := &Server{e: e, log: log}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h := &handlers{d: d}
	v1 := e.Group("/v1")

	v1.POST("/auth/register", h.register)
	v1.POST("/auth/login", h.login)

	auth := v1.Group("", authMiddleware(d.Identity))
	auth.GET("/me", h.profile)
	auth.PATCH("/me", h.updateProfile)
	auth.POST("/me/password", h.changePassword)
	auth.DELETE("/me", h.deleteAccount)

	auth.GET("/zones", h.listZones)
	auth.POST("/zones", h.createZone)
	auth.GET("/zones/:id", h.getZone)
	auth.PUT("/zones/:id", h.updateZone)
	auth.DELETE("/zones/:id", h.deleteZone)

	auth.GET("/zones/:id/notes", h.listNotes)
	auth.POST("/zones/:id/notes", h.addNote)
	auth.PUT("/zones/:id/notes/:noteID", h.updateNote)
	auth.DELETE("/zones/:id/notes/:noteID", h.deleteNote)

	auth.GET("/zones/:id/documents", h.listDocuments)
	auth.POST("/zones/:id/documents", h.addDocument)
	auth.DELETE("/zones/:id/documents/:docID", h.deleteDocument)

	auth.GET("/planner", h.listPlanner)
	auth.POST("/planner", h.savePlannerEvent)
	auth.PUT("/planner/:id", h.savePlannerEvent)
	auth.DELETE("/planner/:id", h.deletePlannerEvent)
	auth.GET("/planner/export.ics", h.exportICS)
	auth.GET("/planner/watch", h.watchPlanner)

	return s
}

// Start blocks serving on addr until Shutdown.
func (s *Server) Start(addr string) error {
	err := s.e.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

func requestLogger(log logx.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			log.Debug("http request",
				logx.String("method", c.Request().Method),
				logx.String("path", c.Request().URL.Path),
				logx.Int("status", c.Response().Status),
				logx.Duration("took", time.Since(start)),
			)
			return nil
		}
	}
}

func errorHandler(log logx.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := any("internal error")

		var httpErr *echo.HTTPError
		var valErrs validator.ValidationErrors
		switch {
		case errors.As(err, &httpErr):
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &valErrs):
			fields := make(map[string]string, len(valErrs))
			for _, fe := range valErrs {
				fields[fe.Field()] = "failed on " + fe.Tag()
			}
			code = http.StatusBadRequest
			message = fields
		case errors.Is(err, identity.ErrNotAuthenticated),
			errors.Is(err, identity.ErrInvalidCredentials):
			code = http.StatusUnauthorized
			message = err.Error()
		case errors.Is(err, identity.ErrEmailTaken):
			code = http.StatusConflict
			message = err.Error()
		case errors.Is(err, store.ErrNotFound):
			code = http.StatusNotFound
			message = "not found"
		case errors.Is(err, identity.ErrWeakPassword),
			errors.Is(err, settings.ErrPasswordMismatch),
			errors.Is(err, settings.ErrEmptyUpdate),
			errors.Is(err, documents.ErrEmptyFileURI),
			errors.Is(err, planner.ErrInvalidTimezone),
			errors.Is(err, planner.ErrInvalidWeekday),
			errors.Is(err, planner.ErrInvalidMinutes),
			errors.Is(err, planner.ErrInvalidLead):
			code = http.StatusBadRequest
			message = err.Error()
		default:
			log.Error("request failed",
				logx.String("path", c.Request().URL.Path),
				logx.Err(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, map[string]any{"error": message})
	}
}

// Package server exposes the report editor over HTTP, a websocket event
// stream and MCP tools. HTTP handlers and MCP tools share the same
// kit.Endpoint implementations.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hazyhaar/reportedit/chart"
	"github.com/hazyhaar/reportedit/editor"
	"github.com/hazyhaar/reportedit/horosafe"
	"github.com/hazyhaar/reportedit/publish"
	"github.com/hazyhaar/reportedit/sandbox"
	"github.com/hazyhaar/reportedit/sections"
	"github.com/hazyhaar/reportedit/theme"
	"github.com/hazyhaar/reportedit/toolbar"
)

var errBadRequest = errors.New("server: bad request")

// Reports reads published reports back.
type Reports interface {
	Get(ctx context.Context, id string) (publish.Report, error)
	List(ctx context.Context) ([]publish.Report, error)
}

// Config configures a Server.
type Config struct {
	// Reports serves published reports. Nil disables the /reports routes.
	Reports Reports

	// Health probes the sandbox browser. Nil reports healthy.
	Health func(ctx context.Context) error

	// Details adds process information to /healthz, optional.
	Details func() any

	CORSOrigins []string

	// RequestTimeout bounds every API request except /events. Default: 60s.
	RequestTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 60 * time.Second
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Server is the operator API around one editor Controller.
type Server struct {
	cfg    Config
	ed     *editor.Controller
	logger *slog.Logger
	router chi.Router
}

// New builds the router.
func New(ed *editor.Controller, cfg Config) *Server {
	cfg.defaults()
	s := &Server{cfg: cfg, ed: ed, logger: cfg.Logger}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(headToGet)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Report-Name"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	// Long-lived, outside the request timeout.
	r.Get("/events", s.handleEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))

		if s.cfg.Reports != nil {
			r.Get("/reports", s.handleListReports)
			r.Get("/reports/{file}", s.handleReportHTML)
			r.Get("/reports/{id}/charts", s.endpointHandler(s.op("report_charts", s.reportChartsEndpoint), func(r *http.Request) (any, error) {
				return &reportRequest{ID: chi.URLParam(r, "id")}, nil
			}))
		}

		r.Group(func(r chi.Router) {
			r.Use(apiHeaders)

			r.Get("/healthz", s.handleHealth)

			r.Post("/document", s.endpointHandler(s.op("load", s.loadEndpoint), decodeDocument))
			r.Get("/document/download", s.handleDownload)
			r.Get("/document/markdown", s.handleMarkdown)

			r.Post("/edit", s.endpointHandler(s.op("enable", s.enableEndpoint), noRequest))
			r.Delete("/edit", s.endpointHandler(s.op("disable", s.disableEndpoint), noRequest))
			r.Post("/save", s.endpointHandler(s.op("save", s.saveEndpoint), noRequest))
			r.Post("/cancel", s.endpointHandler(s.op("cancel", s.cancelEndpoint), noRequest))

			r.Get("/charts", s.endpointHandler(s.op("list_charts", s.listChartsEndpoint), noRequest))
			r.Get("/charts/{id}", s.endpointHandler(s.op("get_chart", s.getChartEndpoint), func(r *http.Request) (any, error) {
				return &chartRequest{ID: chi.URLParam(r, "id")}, nil
			}))
			r.Put("/charts/{id}", s.endpointHandler(s.op("update_chart", s.updateChartEndpoint), func(r *http.Request) (any, error) {
				var req updateChartRequest
				if err := decodeJSON(r, &req.Chart); err != nil {
					return nil, err
				}
				req.ID = chi.URLParam(r, "id")
				return &req, nil
			}))
			r.Post("/charts/{id}/ops", s.endpointHandler(s.op("chart_ops", s.chartOpsEndpoint), func(r *http.Request) (any, error) {
				var req chartOpsRequest
				if err := decodeJSON(r, &req); err != nil {
					return nil, err
				}
				req.ID = chi.URLParam(r, "id")
				return &req, nil
			}))

			r.Get("/sections", s.endpointHandler(s.op("list_sections", s.listSectionsEndpoint), noRequest))
			r.Post("/sections/move", s.endpointHandler(s.op("move_section", s.moveSectionEndpoint), decodeInto[moveRequest]))

			r.Get("/toolbar", s.endpointHandler(s.op("toolbar", s.toolbarEndpoint), noRequest))
			r.Put("/toolbar/frame", s.endpointHandler(s.op("frame", s.frameEndpoint), decodeInto[toolbar.Point]))
			r.Post("/format", s.endpointHandler(s.op("format", s.formatEndpoint), decodeInto[editor.FormatRequest]))
			r.Post("/theme", s.endpointHandler(s.op("theme", s.themeEndpoint), decodeInto[theme.Overrides]))
			r.Get("/theme/fonts", s.endpointHandler(s.op("fonts", s.fontsEndpoint), noRequest))
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "mode": s.ed.Mode()}
	if s.cfg.Details != nil {
		status["browser"] = s.cfg.Details()
	}
	if s.cfg.Health != nil {
		if err := s.cfg.Health(r.Context()); err != nil {
			status["status"] = "degraded"
			status["sandbox"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, horosafe.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest),
		errors.Is(err, chart.ErrIndex),
		errors.Is(err, chart.ErrType),
		errors.Is(err, sections.ErrMove),
		errors.Is(err, theme.ErrColor),
		errors.Is(err, theme.ErrFont),
		errors.Is(err, toolbar.ErrColor),
		errors.Is(err, editor.ErrFormat):
		return http.StatusBadRequest
	case errors.Is(err, chart.ErrNotFound), errors.Is(err, publish.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrNotEditing), errors.Is(err, editor.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, sandbox.ErrUnavailable), errors.Is(err, editor.ErrExtract):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		requestLog(r.Context()).Error("server: handler", "error", err)
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

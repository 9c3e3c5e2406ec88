package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/reportedit/kit"
)

type contextKey string

// loggerKey holds the per-request structured logger.
const loggerKey contextKey = "server_logger"

// apiHeaders is applied to JSON routes. Published reports get their own
// policy in handleReportHTML.
func apiHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// headToGet lets r.Get routes answer HEAD; net/http drops the body.
func headToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger attaches a logger carrying the chi request id to the
// context and logs one line per request once it completes.
func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			logger := base.With("request_id", reqID, "method", r.Method, "path", r.URL.Path)

			ctx := kit.WithRequestID(r.Context(), reqID)
			ctx = kit.WithTransport(ctx, "http")
			ctx = context.WithValue(ctx, loggerKey, logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			level := slog.LevelInfo
			if ww.Status() >= 500 {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "server: request",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// requestLog returns the per-request logger, or slog.Default().
func requestLog(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// recoverEndpoint turns a panic inside an endpoint into an error. chi's
// Recoverer only covers HTTP; MCP tool calls need the same guard.
func recoverEndpoint(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("server: endpoint panic: %v", p)
			}
		}()
		return next(ctx, req)
	}
}

// logged tags the context with the active edit session and logs the
// operation with its transport. Failures log at warn level.
func (s *Server) logged(op string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			if sess, ok := s.ed.Session(); ok {
				ctx = kit.WithSessionID(ctx, sess.ID)
			}
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{"op", op, "transport", kit.GetTransport(ctx),
				"duration_ms", time.Since(start).Milliseconds()}
			if id := kit.GetRequestID(ctx); id != "" {
				attrs = append(attrs, "request_id", id)
			}
			if id := kit.GetSessionID(ctx); id != "" {
				attrs = append(attrs, "session", id)
			}
			if err != nil {
				s.logger.Warn("server: operation failed", append(attrs, "error", err)...)
			} else {
				s.logger.Debug("server: operation", attrs...)
			}
			return resp, err
		}
	}
}

// op wraps an endpoint with the middleware shared by HTTP and MCP.
func (s *Server) op(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(recoverEndpoint, s.logged(name))(ep)
}

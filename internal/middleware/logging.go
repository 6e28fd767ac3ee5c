package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/99designs/gqlgen/graphql"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter captures HTTP status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// ResolverLoggerExtension logs resolver execution times
type ResolverLoggerExtension struct {
	Logger *slog.Logger
}

// ExtensionName implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) ExtensionName() string {
	return "ResolverLogger"
}

// Validate implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) Validate(schema graphql.ExecutableSchema) error {
	return nil
}

// InterceptField logs each resolver duration and errors. Failed resolvers log
// at warn.
func (r *ResolverLoggerExtension) InterceptField(ctx context.Context, next graphql.Resolver) (res any, err error) {
	start := time.Now()
	res, err = next(ctx)

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	attrs := []slog.Attr{slog.Duration("duration", time.Since(start))}
	if fc := graphql.GetFieldContext(ctx); fc != nil {
		attrs = append(attrs, slog.String("object", fc.Object), slog.String("field", fc.Field.Name))
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.LogAttrs(ctx, level, "graphql resolver", attrs...)
	return res, err
}

// LoggingMiddleware logs one structured line per request. Server errors log
// at error level, client errors at warn.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			level := slog.LevelInfo
			switch {
			case rw.statusCode >= http.StatusInternalServerError:
				level = slog.LevelError
			case rw.statusCode >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

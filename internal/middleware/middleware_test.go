package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/99designs/gqlgen/graphql"
	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"
)

type emptyFetcher struct{}

func (emptyFetcher) GetMany(context.Context, []uuid.UUID) ([]domain.MembershipTypeDefinition, error) {
	return nil, nil
}

func TestDataLoaderMiddlewareAttachesLoader(t *testing.T) {
	var seen bool
	handler := DataLoaderMiddleware(emptyFetcher{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TypeLoaderFromContext(r.Context()) != nil
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !seen {
		t.Fatalf("expected loader in request context")
	}
	if TypeLoaderFromContext(context.Background()) != nil {
		t.Fatalf("expected no loader outside the middleware")
	}
}

func TestLoggingMiddlewareRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/membership-types/x", nil))

	line := buf.String()
	if !strings.Contains(line, "status=409") || !strings.Contains(line, "level=WARN") {
		t.Fatalf("unexpected log line: %s", line)
	}
	if !strings.Contains(line, "path=/membership-types/x") {
		t.Fatalf("expected path in log line: %s", line)
	}
}

func TestResolverLoggerExtensionLogsFieldAndError(t *testing.T) {
	var buf bytes.Buffer
	ext := &ResolverLoggerExtension{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	ctx := graphql.WithFieldContext(context.Background(), &graphql.FieldContext{
		Object: "Query",
		Field:  graphql.CollectedField{Field: &ast.Field{Name: "member", Alias: "member"}},
	})

	res, err := ext.InterceptField(ctx, func(context.Context) (any, error) {
		return nil, errors.New("member not found")
	})
	if res != nil || err == nil {
		t.Fatalf("expected resolver error to pass through, got %v, %v", res, err)
	}

	line := buf.String()
	for _, want := range []string{"level=WARN", "object=Query", "field=member", `error="member not found"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in log line: %s", want, line)
		}
	}
}

func TestResolverLoggerExtensionSuccessIsDebug(t *testing.T) {
	var buf bytes.Buffer
	ext := &ResolverLoggerExtension{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	res, err := ext.InterceptField(context.Background(), func(context.Context) (any, error) {
		return "ok", nil
	})
	if err != nil || res != "ok" {
		t.Fatalf("unexpected result %v, %v", res, err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected nothing at info level, got %s", buf.String())
	}
	if ext.ExtensionName() != "ResolverLogger" || ext.Validate(nil) != nil {
		t.Fatalf("unexpected extension metadata")
	}
}

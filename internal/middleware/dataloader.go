package middleware

import (
	"context"
	"net/http"

	"github.com/rpattn/clubhouse/internal/typeloader"
)

type ctxKey string

const typeLoaderKey ctxKey = "typeLoader"

// DataLoaderMiddleware attaches a per-request membership type loader to the request context
func DataLoaderMiddleware(fetcher typeloader.Fetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := typeloader.NewTypeLoader(fetcher)
			ctx := context.WithValue(r.Context(), typeLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TypeLoaderFromContext retrieves the loader from context
func TypeLoaderFromContext(ctx context.Context) *typeloader.TypeLoader {
	if l, ok := ctx.Value(typeLoaderKey).(*typeloader.TypeLoader); ok {
		return l
	}
	return nil
}

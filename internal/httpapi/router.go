package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rpattn/clubhouse/internal/audit"
	"github.com/rpattn/clubhouse/internal/auth"
	"github.com/rpattn/clubhouse/internal/catalog"
	"github.com/rpattn/clubhouse/internal/editsession"
	"github.com/rpattn/clubhouse/internal/eligibility"
	"github.com/rpattn/clubhouse/internal/fees"
	"github.com/rpattn/clubhouse/internal/ingestion"
	"github.com/rpattn/clubhouse/internal/middleware"
	"github.com/rpattn/clubhouse/internal/renewal"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Services are the collaborators the API serves.
type Services struct {
	Catalog    *catalog.Catalog
	Resolver   *eligibility.Resolver
	Aggregator *fees.Aggregator
	Formatter  *fees.Formatter
	Members    repository.MemberRepository
	Sessions   *editsession.Registry
	Trail      *audit.Trail
	Renewals   *renewal.Scheduler
	Importer   *ingestion.Service
}

// API holds the HTTP handlers.
type API struct {
	svc     Services
	logger  *slog.Logger
	now     func() time.Time
	metrics http.Handler
	graphql http.Handler
	health  func(ctx context.Context) error
}

type Option func(*API)

func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *API) {
		a.metrics = h
	}
}

// WithGraphQL serves h at /query behind the actor and loader middleware.
func WithGraphQL(h http.Handler) Option {
	return func(a *API) {
		a.graphql = h
	}
}

// WithHealthCheck makes /healthz report check failures as 503.
func WithHealthCheck(check func(ctx context.Context) error) Option {
	return func(a *API) {
		a.health = check
	}
}

// New constructs the API.
func New(svc Services, opts ...Option) *API {
	a := &API{svc: svc, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.svc.Formatter == nil {
		a.svc.Formatter = fees.NewFormatter("en-GB")
	}
	return a
}

// Router mounts every route.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.LoggingMiddleware(a.logger))

	r.Get("/healthz", a.healthz)
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.ActorMiddleware)
		r.Use(middleware.DataLoaderMiddleware(a.svc.Catalog))

		r.Post("/fees/quote", a.quoteTypes)
		if a.graphql != nil {
			r.Handle("/query", a.graphql)
		}

		r.Route("/members/{memberID}", func(r chi.Router) {
			r.Get("/", a.getMember)
			r.Get("/eligibility", a.eligibility)
			r.Get("/quote", a.memberQuote)

			r.Post("/sections/{section}/edit", a.startEdit)
			r.Put("/sections/{section}", a.saveEdit)
			r.Delete("/sections/{section}/edit", a.cancelEdit)

			r.Get("/changes", a.changes)

			r.Get("/renewal/preview", a.renewalPreview)
			r.Post("/renewals", a.commitRenewal)
			r.Get("/renewals", a.renewalHistory)
		})

		r.Route("/membership-types", func(r chi.Router) {
			r.Get("/", a.listTypes)
			r.Post("/", a.createType)
			if a.svc.Importer != nil {
				r.Method(http.MethodPost, "/import", ingestion.NewHTTPHandler(a.svc.Importer))
			}
			r.Get("/{typeID}", a.getType)
			r.Put("/{typeID}", a.updateType)
			r.Post("/{typeID}/deactivate", a.deactivateType)
			r.Delete("/{typeID}", a.deleteType)
		})
	})
	return r
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		if err := a.health(r.Context()); err != nil {
			a.logger.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

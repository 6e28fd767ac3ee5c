package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rpattn/clubhouse/internal/audit"
	"github.com/rpattn/clubhouse/internal/catalog"
	"github.com/rpattn/clubhouse/internal/config"
	"github.com/rpattn/clubhouse/internal/db"
	"github.com/rpattn/clubhouse/internal/editsession"
	"github.com/rpattn/clubhouse/internal/eligibility"
	"github.com/rpattn/clubhouse/internal/fees"
	"github.com/rpattn/clubhouse/internal/graphql"
	"github.com/rpattn/clubhouse/internal/httpapi"
	"github.com/rpattn/clubhouse/internal/ingestion"
	"github.com/rpattn/clubhouse/internal/metrics"
	"github.com/rpattn/clubhouse/internal/renewal"
	"github.com/rpattn/clubhouse/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// stores are the persistence ports behind every service.
type stores struct {
	types    repository.MembershipTypeRepository
	members  repository.MemberRepository
	changes  repository.ChangeRecordRepository
	renewals repository.RenewalRepository
	tx       repository.Transactor
}

// App is the wired service graph for one process.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Services httpapi.Services

	registry *prometheus.Registry
	checks   []func(ctx context.Context) error
	closers  []func()
}

// NewApp connects the configured store and cache and builds the services.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger, registry: prometheus.NewRegistry()}
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(app.registry)

	var st stores
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		mem := repository.NewMemoryStore()
		st = stores{types: mem, members: mem, changes: mem, renewals: mem, tx: mem}
	default:
		conn, err := db.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		app.closers = append(app.closers, conn.Close)
		app.checks = append(app.checks, func(ctx context.Context) error { return conn.Pool.Ping(ctx) })
		st = stores{
			types:    repository.NewMembershipTypeRepository(conn),
			members:  repository.NewMemberRepository(conn),
			changes:  repository.NewChangeRecordRepository(conn),
			renewals: repository.NewRenewalRepository(conn),
			tx:       conn,
		}
	}

	catalogOpts := []catalog.Option{catalog.WithLogger(logger)}
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable; catalog reads fall back to the store", "addr", cfg.Redis.Addr, "error", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		app.checks = append(app.checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		cache := catalog.NewCache(catalog.RepositoryReader{Repo: st.types}, client,
			catalog.WithCacheTTL(cfg.Redis.TTL),
			catalog.WithCacheLogger(logger),
			catalog.WithCacheMetrics(m),
		)
		catalogOpts = append(catalogOpts, catalog.WithCache(cache))
	}

	calendar, err := cfg.Calendar()
	if err != nil {
		app.Close()
		return nil, err
	}

	cat := catalog.New(st.types, catalogOpts...)
	resolver := eligibility.New(cat, eligibility.WithLogger(logger), eligibility.WithMetrics(m))
	aggregator := fees.New(fees.WithLogger(logger), fees.WithMetrics(m))
	trail := audit.New(st.changes, audit.WithLogger(logger), audit.WithMetrics(m))
	editor := editsession.NewEditor(st.members, trail, st.tx,
		editsession.WithLogger(logger),
		editsession.WithMetrics(m),
		editsession.WithLayout(cfg.Layout()),
		editsession.WithStrictVersion(cfg.Edit.StrictVersion),
	)
	scheduler := renewal.New(st.members, st.renewals, st.tx, resolver, cat,
		renewal.WithLogger(logger),
		renewal.WithMetrics(m),
		renewal.WithCalendar(calendar),
		renewal.WithAggregator(aggregator),
	)

	app.Services = httpapi.Services{
		Catalog:    cat,
		Resolver:   resolver,
		Aggregator: aggregator,
		Members:    st.members,
		Sessions:   editsession.NewRegistry(editor),
		Trail:      trail,
		Renewals:   scheduler,
		Importer:   ingestion.NewService(cat, ingestion.WithLogger(logger)),
	}
	return app, nil
}

// Handler returns the HTTP API including /query, /metrics and /healthz.
func (a *App) Handler() http.Handler {
	resolver := graphql.NewResolver(graphql.Services{
		Catalog:    a.Services.Catalog,
		Resolver:   a.Services.Resolver,
		Aggregator: a.Services.Aggregator,
		Formatter:  a.Services.Formatter,
		Members:    a.Services.Members,
		Sessions:   a.Services.Sessions,
		Trail:      a.Services.Trail,
		Renewals:   a.Services.Renewals,
	}, graphql.WithLogger(a.Logger))
	api := httpapi.New(a.Services,
		httpapi.WithLogger(a.Logger),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})),
		httpapi.WithHealthCheck(a.Health),
		httpapi.WithGraphQL(graphql.NewHandler(resolver)),
	)
	return api.Router()
}

// Health runs every backing-service check.
func (a *App) Health(ctx context.Context) error {
	for _, check := range a.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

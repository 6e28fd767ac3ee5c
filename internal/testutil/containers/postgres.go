//go:build integration

package containers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/rpattn/clubhouse/internal/db"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresContainer wraps a migrated testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	Config    db.Config
	Conn      *db.Connection
}

// NewPostgresContainer starts Postgres, applies the embedded migrations and
// opens a pool. The container is terminated on test cleanup.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()
	cfg := db.DefaultConfig()
	cfg.Password = "clubhouse"

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(cfg.DBName),
		tcpostgres.WithUsername(cfg.User),
		tcpostgres.WithPassword(cfg.Password),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get postgres host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get postgres port: %v", err)
	}
	cfg.Host = host
	cfg.Port = port.Int()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := db.RunMigrations(cfg, logger); err != nil {
		t.Fatalf("failed to migrate postgres: %v", err)
	}

	conn, err := db.NewConnection(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(conn.Close)

	return &PostgresContainer{Container: container, Config: cfg, Conn: conn}
}

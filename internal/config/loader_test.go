package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, domain.DefaultSectionLayout(), cfg.Layout())
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoadReadsFile(t *testing.T) {
	cfg, err := Load("testdata")
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, []string{"https://members.example.org"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TTL)
	assert.True(t, cfg.Edit.StrictVersion)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())

	calendar, err := cfg.Calendar()
	require.NoError(t, err)
	assert.Len(t, calendar.Seasons(), 2)

	layout := cfg.Layout()
	require.Len(t, layout, 1)
	section, err := layout.Find("contact-information")
	require.NoError(t, err)
	assert.True(t, section.Fields[0].Required)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CLUBHOUSE_DATABASE_HOST", "pg.example")
	t.Setenv("CLUBHOUSE_EDIT_STRICT_VERSION", "true")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "pg.example", cfg.Database.Host)
	assert.True(t, cfg.Edit.StrictVersion)
}

func TestLoadRejectsBadSeason(t *testing.T) {
	dir := t.TempDir()
	body := "seasons:\n  - name: Winter\n    start: \"13-01\"\n    end: \"03-31\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))

	_, err := Load(dir)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoadRejectsOverlappingSections(t *testing.T) {
	dir := t.TempDir()
	body := `sections:
  - name: Contact
    fields:
      - {key: email, type: string}
  - name: Login
    fields:
      - {key: email, type: string}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))

	_, err := Load(dir)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

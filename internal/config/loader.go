package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpattn/clubhouse/internal/db"
	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/renewal"
	layoutvalidator "github.com/rpattn/clubhouse/internal/schema/validator"

	"github.com/spf13/viper"
)

const envPrefix = "CLUBHOUSE"

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SeasonConfig is one yearly window with "MM-DD" bounds.
type SeasonConfig struct {
	Name  string `mapstructure:"name"`
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

type EditConfig struct {
	StrictVersion bool `mapstructure:"strict_version"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full service configuration.
type Config struct {
	Store    string           `mapstructure:"store"`
	Database db.Config        `mapstructure:"database"`
	HTTP     HTTPConfig       `mapstructure:"http"`
	Redis    RedisConfig      `mapstructure:"redis"`
	Seasons  []SeasonConfig   `mapstructure:"seasons"`
	Sections []domain.Section `mapstructure:"sections"`
	Edit     EditConfig       `mapstructure:"edit"`
	Log      LogConfig        `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()
	v.SetDefault("store", StorePostgres)
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("edit.strict_version", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads config.yaml from configPath when present, then applies
// CLUBHOUSE_* environment overrides such as CLUBHOUSE_DATABASE_HOST.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		slog.Debug("no config.yaml found, using defaults and env vars", "path", configPath)
	} else {
		slog.Debug("loaded config", "file", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the parts of the configuration that are parsed lazily.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("%w: store must be %q or %q, got %q", domain.ErrInvalidInput, StorePostgres, StoreMemory, c.Store)
	}
	if _, err := c.Calendar(); err != nil {
		return err
	}
	if err := layoutvalidator.ValidateLayout(c.Layout()); err != nil {
		return fmt.Errorf("sections: %w", err)
	}
	return nil
}

// Calendar builds the season calendar for seasonal renewals.
func (c Config) Calendar() (renewal.Calendar, error) {
	seasons := make([]renewal.Season, 0, len(c.Seasons))
	for _, sc := range c.Seasons {
		season, err := renewal.ParseSeason(sc.Name, sc.Start, sc.End)
		if err != nil {
			return renewal.Calendar{}, err
		}
		seasons = append(seasons, season)
	}
	return renewal.NewCalendar(seasons...), nil
}

// Layout returns the configured sections or the default member layout.
func (c Config) Layout() domain.SectionLayout {
	if len(c.Sections) == 0 {
		return domain.DefaultSectionLayout()
	}
	return domain.SectionLayout(c.Sections)
}

// LogLevel maps log.level onto slog; unknown values fall back to info.
func (c Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

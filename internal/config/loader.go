package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bundlelib/internal/catalog"
	"bundlelib/pkg/database"
)

// ConfigName is the base name of the optional config file.
const ConfigName = "bundlelib"

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"catalog.backend":        "BUNDLELIB_BACKEND",
	"catalog.match":          "BUNDLELIB_MATCH",
	"catalog.sqlite.path":    "BUNDLELIB_DB_PATH",
	"catalog.rest.url":       "BUNDLELIB_REST_URL",
	"catalog.rest.table":     "BUNDLELIB_REST_TABLE",
	"catalog.rest.token":     "BUNDLELIB_REST_TOKEN",
	"catalog.rest.timeout":   "BUNDLELIB_REST_TIMEOUT",
	"catalog.postgres.dsn":   "BUNDLELIB_POSTGRES_DSN",
	"catalog.postgres.table": "BUNDLELIB_POSTGRES_TABLE",
	"workers":                "BUNDLELIB_WORKERS",
	"log.level":              "LOG_LEVEL",
	"log.format":             "LOG_FORMAT",
	"log.output":             "LOG_OUTPUT",
	"server.addr":            "BUNDLELIB_SERVER_ADDR",
	"server.table":           "BUNDLELIB_SERVER_TABLE",
	"server.jwt_secret":      "BUNDLELIB_JWT_SECRET",
	"server.jwt_issuer":      "BUNDLELIB_JWT_ISSUER",
	"server.token_ttl":       "BUNDLELIB_TOKEN_TTL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.backend", string(catalog.BackendSQLite))
	v.SetDefault("catalog.match", "")
	v.SetDefault("catalog.sqlite.path", database.DefaultPath())
	v.SetDefault("catalog.rest.url", "")
	v.SetDefault("catalog.rest.table", catalog.DefaultRESTTable)
	v.SetDefault("catalog.rest.token", "")
	v.SetDefault("catalog.rest.timeout", catalog.DefaultRESTTimeout)
	v.SetDefault("catalog.postgres.dsn", "")
	v.SetDefault("catalog.postgres.table", catalog.DefaultRESTTable)
	v.SetDefault("workers", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.table", catalog.DefaultRESTTable)
	// dev default, override in any shared deployment
	v.SetDefault("server.jwt_secret", "dev-secret-change-me")
	v.SetDefault("server.jwt_issuer", "bundlelib")
	v.SetDefault("server.token_ttl", "720h")
}

// New returns a viper instance with defaults and environment bindings in
// place. Callers bind command-line flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// LoadEnvFiles loads .env from the working directory. Variables already set
// in the environment win.
func LoadEnvFiles() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads the config file (explicit path, or bundlelib.yaml in the working
// or home directory), decodes everything and validates it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	cfg.Catalog.SQLite.Path = expandHome(cfg.Catalog.SQLite.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	if b, err := catalog.ParseBackend(string(cfg.Catalog.Backend)); err == nil {
		cfg.Catalog.Backend = b
	}
	if cfg.Catalog.Match != "" {
		m, _ := catalog.ParseMatchStrategy(string(cfg.Catalog.Match))
		cfg.Catalog.Match = m
	}

	return cfg, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

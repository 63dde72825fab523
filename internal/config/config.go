// Package config loads bundlelib settings from flags, the environment, an
// optional .env file and an optional bundlelib.yaml, in that order of
// precedence, and validates them before anything touches a catalog.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"bundlelib/internal/catalog"
	"bundlelib/pkg/logging"
)

// Config holds all settings shared by the bundlelib tools.
type Config struct {
	Catalog catalog.Config `mapstructure:"catalog"`

	// Workers > 1 lets books with different base names reconcile in parallel.
	Workers int `mapstructure:"workers"`

	Log    logging.Config `mapstructure:"log"`
	Server ServerConfig   `mapstructure:"server"`
}

// ServerConfig holds api-server settings.
type ServerConfig struct {
	Addr      string        `mapstructure:"addr"`
	Table     string        `mapstructure:"table"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTIssuer string        `mapstructure:"jwt_issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Validate checks the catalog, worker and logging settings. Errors name the
// environment variable to fix.
func (c *Config) Validate() error {
	var errs []string

	backend, err := catalog.ParseBackend(string(c.Catalog.Backend))
	if err != nil {
		errs = append(errs, fmt.Sprintf("BUNDLELIB_BACKEND (%q) must be one of: sqlite, rest, postgres, memory", c.Catalog.Backend))
	}

	if c.Catalog.Match != "" {
		if _, err := catalog.ParseMatchStrategy(string(c.Catalog.Match)); err != nil {
			errs = append(errs, fmt.Sprintf("BUNDLELIB_MATCH (%q) must be one of: substring, prefix", c.Catalog.Match))
		}
	}

	switch backend {
	case catalog.BackendSQLite:
		if strings.TrimSpace(c.Catalog.SQLite.Path) == "" {
			errs = append(errs, "BUNDLELIB_DB_PATH is required for the sqlite backend")
		}
	case catalog.BackendREST:
		if strings.TrimSpace(c.Catalog.REST.URL) == "" {
			errs = append(errs, "BUNDLELIB_REST_URL is required for the rest backend")
		} else if u, err := url.Parse(c.Catalog.REST.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Sprintf("BUNDLELIB_REST_URL (%q) must be an http(s) URL", c.Catalog.REST.URL))
		}
		if c.Catalog.REST.Timeout < 0 {
			errs = append(errs, "BUNDLELIB_REST_TIMEOUT must be non-negative")
		}
	case catalog.BackendPostgres:
		if strings.TrimSpace(c.Catalog.Postgres.DSN) == "" {
			errs = append(errs, "BUNDLELIB_POSTGRES_DSN is required for the postgres backend")
		}
	}

	if c.Workers < 1 {
		errs = append(errs, fmt.Sprintf("BUNDLELIB_WORKERS (%d) must be at least 1", c.Workers))
	}

	if !logging.ValidLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: trace, debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "auto", "console", "pretty", "json":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: auto, console, json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ValidateServer checks the settings only the api-server needs.
func (c *Config) ValidateServer() error {
	var errs []string
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, "BUNDLELIB_SERVER_ADDR is required")
	}
	if strings.TrimSpace(c.Server.Table) == "" {
		errs = append(errs, "BUNDLELIB_SERVER_TABLE is required")
	}
	if len(c.Server.JWTSecret) < 16 {
		errs = append(errs, "BUNDLELIB_JWT_SECRET must be at least 16 bytes")
	}
	if c.Server.TokenTTL <= 0 {
		errs = append(errs, "BUNDLELIB_TOKEN_TTL must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a representation safe for logs: tokens, secrets and DSN
// passwords are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Catalog: {Backend: %q, Match: %q, SQLite: %q, ", c.Catalog.Backend, c.Catalog.Strategy(), c.Catalog.SQLite.Path)
	fmt.Fprintf(&b, "REST: {URL: %q, Table: %q, Token: %s, Timeout: %s}, ",
		c.Catalog.REST.URL, c.Catalog.REST.Table, mask(c.Catalog.REST.Token), c.Catalog.REST.Timeout)
	fmt.Fprintf(&b, "Postgres: {DSN: %q, Table: %q}}, ", maskDSN(c.Catalog.Postgres.DSN), c.Catalog.Postgres.Table)
	fmt.Fprintf(&b, "Workers: %d, ", c.Workers)
	fmt.Fprintf(&b, "Log: {Level: %q, Format: %q}, ", c.Log.Level, c.Log.Format)
	fmt.Fprintf(&b, "Server: {Addr: %q, Table: %q, JWTSecret: %s}", c.Server.Addr, c.Server.Table, mask(c.Server.JWTSecret))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[unset]"
	}
	return "[MASKED]"
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		// key=value DSNs may embed password=...; hide the lot.
		return "[MASKED]"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "MASKED")
	}
	return u.String()
}

package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend names a catalog implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendREST     Backend = "rest"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// DefaultMatch is the strategy each backend has historically used: SQLite
// files matched with instr(), the hosted table with ILIKE 'base*'.
func (b Backend) DefaultMatch() MatchStrategy {
	switch b {
	case BackendREST, BackendPostgres:
		return MatchPrefix
	default:
		return MatchSubstring
	}
}

// ParseBackend accepts the backend names used in configuration.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendSQLite, BackendREST, BackendPostgres, BackendMemory:
		return b, nil
	case "", "local", "embedded":
		return BackendSQLite, nil
	case "remote", "supabase", "postgrest":
		return BackendREST, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// Config selects a backend and carries its connection settings.
type Config struct {
	Backend Backend `mapstructure:"backend"`
	// Match overrides the backend's default strategy when set.
	Match MatchStrategy `mapstructure:"match"`

	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	REST     RESTConfig     `mapstructure:"rest"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RESTConfig struct {
	// URL is the REST root, e.g. https://project.supabase.co/rest/v1.
	URL     string        `mapstructure:"url"`
	Table   string        `mapstructure:"table"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// Strategy returns the configured strategy or the backend default.
func (c Config) Strategy() MatchStrategy {
	if c.Match != "" {
		return c.Match
	}
	return c.Backend.DefaultMatch()
}

// Open connects to the configured backend. The caller owns the returned
// catalog and must Close it.
func Open(ctx context.Context, cfg Config) (Catalog, error) {
	backend, err := ParseBackend(string(cfg.Backend))
	if err != nil {
		return nil, err
	}
	cfg.Backend = backend

	match, err := ParseMatchStrategy(string(cfg.Strategy()))
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendSQLite:
		return OpenSQLite(cfg.SQLite.Path, match)
	case BackendREST:
		return NewRESTStore(cfg.REST, match)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg.Postgres, match)
	case BackendMemory:
		return NewMemoryStore(match), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"bundlelib/pkg/models"
)

const pgUniqueViolation = "23505"

// PostgresStore keeps the catalog in a Postgres table, the same table a
// hosted PostgREST would expose, accessed directly over the wire protocol.
type PostgresStore struct {
	Pool  *pgxpool.Pool
	table string
	match MatchStrategy
}

// OpenPostgres connects, pings, and creates the table if it is missing.
func OpenPostgres(ctx context.Context, cfg PostgresConfig, match MatchStrategy) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres catalog: dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	// One reconciliation runs one statement at a time.
	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewPostgresStore(pool, cfg.Table, match)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(pool *pgxpool.Pool, table string, match MatchStrategy) *PostgresStore {
	if table == "" {
		table = DefaultRESTTable
	}
	return &PostgresStore{Pool: pool, table: table, match: match}
}

func (s *PostgresStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id     BIGSERIAL PRIMARY KEY,
			title  TEXT UNIQUE,
			bundle TEXT
		)
	`, s.ident()))
	if err != nil {
		return fmt.Errorf("ensure postgres schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Match() MatchStrategy { return s.match }

func (s *PostgresStore) Close() error {
	s.Pool.Close()
	return nil
}

// findSQL returns the lookup statement and its argument for base.
func (s *PostgresStore) findSQL(base string) (string, any) {
	if s.match == MatchPrefix {
		return fmt.Sprintf(`
			SELECT id, title, bundle FROM %s
			WHERE title ILIKE $1 ESCAPE '\'
			ORDER BY id
			LIMIT 1
		`, s.ident()), likeLiteral(base) + "%"
	}
	return fmt.Sprintf(`
		SELECT id, title, bundle FROM %s
		WHERE strpos(title, $1) > 0
		ORDER BY id
		LIMIT 1
	`, s.ident()), base
}

func (s *PostgresStore) FindByBaseName(ctx context.Context, base string) (*models.CatalogEntry, error) {
	sqlStr, arg := s.findSQL(base)

	var e models.CatalogEntry
	err := s.Pool.QueryRow(ctx, sqlStr, arg).Scan(&e.ID, &e.Title, &e.Bundle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by base name %q: %w", base, err)
	}
	return &e, nil
}

func (s *PostgresStore) Insert(ctx context.Context, title, bundle string) error {
	_, err := s.Pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (title, bundle) VALUES ($1, $2)`, s.ident()),
		title, bundle)
	if err != nil {
		return fmt.Errorf("insert %q: %w", title, pgErr(err))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, id int64, title, bundle string) error {
	tag, err := s.Pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET title = $1, bundle = $2 WHERE id = $3`, s.ident()),
		title, bundle, id)
	if err != nil {
		return fmt.Errorf("update %d: %w", id, pgErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.Pool.Query(ctx, fmt.Sprintf(`SELECT id, title, bundle FROM %s ORDER BY id`, s.ident()))
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CatalogEntry, error) {
		var e models.CatalogEntry
		err := row.Scan(&e.ID, &e.Title, &e.Bundle)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("list scan: %w", err)
	}
	return out, nil
}

func pgErr(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %v", ErrDuplicateTitle, err)
	}
	return err
}

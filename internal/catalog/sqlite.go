package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"bundlelib/pkg/database"
	"bundlelib/pkg/models"
)

// SQLiteStore keeps the catalog in the embedded books table. Entry IDs are
// SQLite rowids.
type SQLiteStore struct {
	DB    *sql.DB
	match MatchStrategy
	owned bool
}

// NewSQLiteStore wraps an open database. The caller keeps ownership of db.
func NewSQLiteStore(db *sql.DB, match MatchStrategy) *SQLiteStore {
	return &SQLiteStore{DB: db, match: match}
}

// OpenSQLite opens (creating if needed) the catalog file at path.
func OpenSQLite(path string, match MatchStrategy) (*SQLiteStore, error) {
	db, err := database.Open(database.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{DB: db, match: match, owned: true}, nil
}

func (s *SQLiteStore) Match() MatchStrategy { return s.match }

func (s *SQLiteStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.DB.Close()
}

func (s *SQLiteStore) FindByBaseName(ctx context.Context, base string) (*models.CatalogEntry, error) {
	var row *sql.Row
	switch s.match {
	case MatchPrefix:
		row = s.DB.QueryRowContext(ctx, `
			SELECT rowid, title, bundle
			FROM books
			WHERE fold(title) GLOB ?
			ORDER BY rowid
			LIMIT 1
		`, globLiteral(database.Fold(base))+"*")
	default:
		row = s.DB.QueryRowContext(ctx, `
			SELECT rowid, title, bundle
			FROM books
			WHERE instr(title, ?) > 0
			ORDER BY rowid
			LIMIT 1
		`, base)
	}

	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by base name %q: %w", base, err)
	}
	return e, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, title, bundle string) error {
	_, err := s.InsertEntry(ctx, title, bundle)
	return err
}

// InsertEntry inserts a book and returns it with its new rowid.
func (s *SQLiteStore) InsertEntry(ctx context.Context, title, bundle string) (*models.CatalogEntry, error) {
	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO books (title, bundle)
		VALUES (?, ?)
	`, title, bundle)
	if err != nil {
		return nil, fmt.Errorf("insert %q: %w", title, sqliteErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %q id: %w", title, err)
	}
	return &models.CatalogEntry{ID: id, Title: title, Bundle: bundle}, nil
}

// InsertEntries inserts books in one transaction: either all are stored or
// none are.
func (s *SQLiteStore) InsertEntries(ctx context.Context, books []models.Book) ([]models.CatalogEntry, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]models.CatalogEntry, 0, len(books))
	for _, b := range books {
		res, err := tx.ExecContext(ctx, `INSERT INTO books (title, bundle) VALUES (?, ?)`, b.Title, b.Bundle)
		if err != nil {
			return nil, fmt.Errorf("insert %q: %w", b.Title, sqliteErr(err))
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert %q id: %w", b.Title, err)
		}
		out = append(out, models.CatalogEntry{ID: id, Title: b.Title, Bundle: b.Bundle})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", sqliteErr(err))
	}
	return out, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id int64, title, bundle string) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE books
		SET title = ?, bundle = ?
		WHERE rowid = ?
	`, title, bundle, id)
	if err != nil {
		return fmt.Errorf("update %d: %w", id, sqliteErr(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %d rows: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*models.CatalogEntry, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT rowid, title, bundle
		FROM books
		WHERE rowid = ?
	`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %d: %w", id, err)
	}
	return e, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.CatalogEntry, error) {
	return s.Query(ctx, Query{})
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return n, nil
}

// Query lists entries matching q in rowid order.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]models.CatalogEntry, error) {
	sqlStr, args := buildQuerySQL(q)

	rows, err := s.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	out := make([]models.CatalogEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func buildQuerySQL(q Query) (string, []any) {
	var where []string
	var args []any

	if q.ID != 0 {
		where = append(where, "rowid = ?")
		args = append(args, q.ID)
	}

	switch q.TitleOp {
	case TitleEq:
		where = append(where, "title = ?")
		args = append(args, q.Title)
	case TitleLike:
		where = append(where, "title GLOB ?")
		args = append(args, globFromPattern(q.Title))
	case TitleILike:
		where = append(where, "fold(title) GLOB ?")
		args = append(args, globFromPattern(database.Fold(q.Title)))
	}

	sqlStr := `SELECT rowid, title, bundle FROM books`
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Desc {
		sqlStr += " ORDER BY rowid DESC"
	} else {
		sqlStr += " ORDER BY rowid ASC"
	}

	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		sqlStr += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*models.CatalogEntry, error) {
	var (
		e      models.CatalogEntry
		title  sql.NullString
		bundle sql.NullString
	)
	if err := sc.Scan(&e.ID, &title, &bundle); err != nil {
		return nil, err
	}
	e.Title = title.String
	e.Bundle = bundle.String
	return &e, nil
}

func sqliteErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %v", ErrDuplicateTitle, err)
	}
	return err
}

package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sqlite3 "github.com/mattn/go-sqlite3"
	"golang.org/x/text/cases"
)

// DriverName is the go-sqlite3 driver variant registered with the catalog's
// SQL helper functions.
const DriverName = "sqlite3_bundlelib"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// fold(text) is deterministic so SQLite may use it in indexes.
			return conn.RegisterFunc("fold", Fold, true)
		},
	})
}

// Fold returns the Unicode case-folded form of s. It backs the fold() SQL
// function and must be used on the Go side of every comparison against it.
func Fold(s string) string {
	return cases.Fold().String(s)
}

type Config struct {
	Path string
}

// DefaultPath is ~/.bundlelib/books.db, or ./books.db without a home dir.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "books.db"
	}
	return filepath.Join(home, ".bundlelib", "books.db")
}

func EnsureDataDir(cfg Config) error {
	return os.MkdirAll(filepath.Dir(cfg.Path), 0o755)
}

func Open(cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("open sqlite: empty path")
	}
	if err := EnsureDataDir(cfg); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	db, err := sql.Open(DriverName, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma journal_mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

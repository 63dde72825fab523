package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) Config {
	t.Helper()
	return Config{Path: filepath.Join(t.TempDir(), "nested", "books.db")}
}

func TestOpenCreatesDataDirAndSchema(t *testing.T) {
	cfg := openTemp(t)

	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	// Idempotent.
	require.NoError(t, Migrate(db))

	_, err = db.Exec(`INSERT INTO books (title, bundle) VALUES (?, ?)`, "Dune", "Sci-Fi")
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO books (title, bundle) VALUES (?, ?)`, "Dune", "Other")
	assert.Error(t, err, "title must be unique")
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestFoldFunction(t *testing.T) {
	db, err := Open(openTemp(t))
	require.NoError(t, err)
	defer db.Close()

	var got string
	require.NoError(t, db.QueryRow(`SELECT fold(?)`, "ÉCOLE Straße").Scan(&got))
	assert.Equal(t, Fold("école strasse"), got)
	assert.Equal(t, Fold("DUNE"), Fold("dune"))
}

func TestDefaultPathUnderHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".bundlelib", "books.db"), DefaultPath())
}

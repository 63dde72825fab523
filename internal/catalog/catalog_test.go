package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlelib/internal/catalog"
	"bundlelib/internal/catalog/catalogtest"
	"bundlelib/pkg/models"
)

func TestMatchStrategyMatches(t *testing.T) {
	tests := []struct {
		match catalog.MatchStrategy
		title string
		base  string
		want  bool
	}{
		{catalog.MatchSubstring, "Dune, 1st Edition", "Dune", true},
		{catalog.MatchSubstring, "Children of Dune", "Dune", true},
		{catalog.MatchSubstring, "Dune, 1st Edition", "dune", false},
		{catalog.MatchSubstring, "Anything", "", true},
		{catalog.MatchPrefix, "Dune, 1st Edition", "dune", true},
		{catalog.MatchPrefix, "Children of Dune", "Dune", false},
		{catalog.MatchPrefix, "Straße der Sterne", "STRASSE", true},
		{catalog.MatchPrefix, "Anything", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.match.Matches(tt.title, tt.base), "%s.Matches(%q, %q)", tt.match, tt.title, tt.base)
	}
}

func TestParseMatchStrategy(t *testing.T) {
	m, err := catalog.ParseMatchStrategy(" Prefix ")
	require.NoError(t, err)
	assert.Equal(t, catalog.MatchPrefix, m)

	_, err = catalog.ParseMatchStrategy("fuzzy")
	assert.ErrorIs(t, err, catalog.ErrUnknownMatch)
}

func TestParseBackend(t *testing.T) {
	tests := map[string]catalog.Backend{
		"":         catalog.BackendSQLite,
		"sqlite":   catalog.BackendSQLite,
		"embedded": catalog.BackendSQLite,
		"REST":     catalog.BackendREST,
		"supabase": catalog.BackendREST,
		"postgres": catalog.BackendPostgres,
		"memory":   catalog.BackendMemory,
	}
	for in, want := range tests {
		got, err := catalog.ParseBackend(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := catalog.ParseBackend("mongo")
	assert.ErrorIs(t, err, catalog.ErrUnknownBackend)
}

func TestConfigStrategyDefaults(t *testing.T) {
	assert.Equal(t, catalog.MatchSubstring, catalog.Config{Backend: catalog.BackendSQLite}.Strategy())
	assert.Equal(t, catalog.MatchPrefix, catalog.Config{Backend: catalog.BackendREST}.Strategy())
	assert.Equal(t, catalog.MatchPrefix, catalog.Config{Backend: catalog.BackendPostgres}.Strategy())
	assert.Equal(t, catalog.MatchPrefix, catalog.Config{Backend: catalog.BackendSQLite, Match: catalog.MatchPrefix}.Strategy())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := catalog.Open(ctx, catalog.Config{Backend: catalog.BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &catalog.MemoryStore{}, c)
	require.NoError(t, c.Close())

	path := filepath.Join(t.TempDir(), "books.db")
	c, err = catalog.Open(ctx, catalog.Config{SQLite: catalog.SQLiteConfig{Path: path}})
	require.NoError(t, err)
	assert.IsType(t, &catalog.SQLiteStore{}, c)
	assert.Equal(t, catalog.MatchSubstring, c.Match())
	require.NoError(t, c.Close())

	c, err = catalog.Open(ctx, catalog.Config{Backend: catalog.BackendREST, REST: catalog.RESTConfig{URL: "http://localhost:1/rest/v1"}})
	require.NoError(t, err)
	assert.Equal(t, catalog.MatchPrefix, c.Match())
	require.NoError(t, c.Close())

	_, err = catalog.Open(ctx, catalog.Config{Backend: "nope"})
	assert.ErrorIs(t, err, catalog.ErrUnknownBackend)

	_, err = catalog.Open(ctx, catalog.Config{Backend: catalog.BackendMemory, Match: "fuzzy"})
	assert.ErrorIs(t, err, catalog.ErrUnknownMatch)

	_, err = catalog.Open(ctx, catalog.Config{Backend: catalog.BackendREST})
	assert.Error(t, err)

	_, err = catalog.Open(ctx, catalog.Config{Backend: catalog.BackendPostgres})
	assert.Error(t, err)
}

func TestMemoryStoreConformance(t *testing.T) {
	catalogtest.Run(t, func(t *testing.T, m catalog.MatchStrategy) catalog.Catalog {
		return catalog.NewMemoryStore(m)
	}, catalogtest.Options{LiteralWildcards: true})
}

func TestSQLiteStoreConformance(t *testing.T) {
	catalogtest.Run(t, func(t *testing.T, m catalog.MatchStrategy) catalog.Catalog {
		s, err := catalog.OpenSQLite(filepath.Join(t.TempDir(), "books.db"), m)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, catalogtest.Options{LiteralWildcards: true})
}

func TestMemoryStoreSeed(t *testing.T) {
	s := catalog.NewMemoryStore(catalog.MatchSubstring, models.Book{Title: "Dune", Bundle: "A"})
	all, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.CatalogEntry{{ID: 1, Title: "Dune", Bundle: "A"}}, all)
}

// Package catalogtest holds the behaviour every catalog backend must share.
// Backend tests call Run with a constructor for a fresh, empty catalog.
package catalogtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlelib/internal/catalog"
	"bundlelib/pkg/models"
)

// Factory returns an empty catalog using match. Cleanup is the factory's job.
type Factory func(t *testing.T, match catalog.MatchStrategy) catalog.Catalog

// Options toggles checks a backend cannot honour.
type Options struct {
	// LiteralWildcards is set when '%', '_' and '*' in a base name are
	// matched literally. PostgREST filters treat them as wildcards.
	LiteralWildcards bool
}

// Run exercises f under both match strategies.
func Run(t *testing.T, f Factory, opts Options) {
	t.Helper()

	t.Run("empty catalog finds nothing", func(t *testing.T) {
		for _, m := range []catalog.MatchStrategy{catalog.MatchSubstring, catalog.MatchPrefix} {
			c := f(t, m)
			e, err := c.FindByBaseName(context.Background(), "Dune")
			require.NoError(t, err)
			assert.Nil(t, e)
			assert.Equal(t, m, c.Match())
		}
	})

	t.Run("substring strategy", func(t *testing.T) {
		ctx := context.Background()
		c := f(t, catalog.MatchSubstring)
		require.NoError(t, c.Insert(ctx, "Dune, 1st Edition", "Old Bundle"))

		assertFinds(t, c, "Dune", "Dune, 1st Edition")
		assertFinds(t, c, "une", "Dune, 1st Edition")
		assertFinds(t, c, "1st", "Dune, 1st Edition")
		assertFinds(t, c, "dune", "")
		assertFinds(t, c, "Foundation", "")
	})

	t.Run("prefix strategy", func(t *testing.T) {
		ctx := context.Background()
		c := f(t, catalog.MatchPrefix)
		require.NoError(t, c.Insert(ctx, "Dune, 1st Edition", "Old Bundle"))

		assertFinds(t, c, "Dune", "Dune, 1st Edition")
		assertFinds(t, c, "dune", "Dune, 1st Edition")
		assertFinds(t, c, "DUNE, 1ST", "Dune, 1st Edition")
		assertFinds(t, c, "une", "")
		assertFinds(t, c, "Foundation", "")
	})

	t.Run("oldest match wins", func(t *testing.T) {
		ctx := context.Background()
		for _, m := range []catalog.MatchStrategy{catalog.MatchSubstring, catalog.MatchPrefix} {
			c := f(t, m)
			require.NoError(t, c.Insert(ctx, "Dune Messiah", "A"))
			require.NoError(t, c.Insert(ctx, "Dune, 1st Edition", "B"))
			assertFinds(t, c, "Dune", "Dune Messiah")
		}
	})

	t.Run("update replaces title and bundle", func(t *testing.T) {
		ctx := context.Background()
		c := f(t, catalog.MatchSubstring)
		require.NoError(t, c.Insert(ctx, "Dune, 1st Edition", "Old Bundle"))

		e, err := c.FindByBaseName(ctx, "Dune")
		require.NoError(t, err)
		require.NotNil(t, e)

		require.NoError(t, c.Update(ctx, e.ID, "Dune, 2nd Edition", "New Bundle"))

		got, err := c.FindByBaseName(ctx, "Dune")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.CatalogEntry{ID: e.ID, Title: "Dune, 2nd Edition", Bundle: "New Bundle"}, *got)

		if l, ok := c.(catalog.Lister); ok {
			all, err := l.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)
		}
	})

	t.Run("update unknown id", func(t *testing.T) {
		c := f(t, catalog.MatchSubstring)
		err := c.Update(context.Background(), 4242, "Dune", "X")
		assert.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("duplicate title", func(t *testing.T) {
		ctx := context.Background()
		c := f(t, catalog.MatchSubstring)
		require.NoError(t, c.Insert(ctx, "Dune", "A"))
		assert.ErrorIs(t, c.Insert(ctx, "Dune", "B"), catalog.ErrDuplicateTitle)
	})

	t.Run("list in insertion order", func(t *testing.T) {
		ctx := context.Background()
		c := f(t, catalog.MatchSubstring)
		l, ok := c.(catalog.Lister)
		if !ok {
			t.Skip("backend does not list")
		}
		for _, title := range []string{"Hyperion", "Dune", "Solaris"} {
			require.NoError(t, c.Insert(ctx, title, "Sci-Fi"))
		}
		all, err := l.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Hyperion", all[0].Title)
		assert.Equal(t, "Dune", all[1].Title)
		assert.Equal(t, "Solaris", all[2].Title)
	})

	if opts.LiteralWildcards {
		t.Run("wildcards are literal", func(t *testing.T) {
			ctx := context.Background()
			for _, m := range []catalog.MatchStrategy{catalog.MatchSubstring, catalog.MatchPrefix} {
				c := f(t, m)
				require.NoError(t, c.Insert(ctx, "50% Off [Deluxe]?, 2nd", "X"))
				assertFinds(t, c, "50% Off [Deluxe]?", "50% Off [Deluxe]?, 2nd")
				assertFinds(t, c, "50_ Off", "")
				assertFinds(t, c, "5*", "")
			}
		})
	}
}

func assertFinds(t *testing.T, c catalog.Catalog, base, want string) {
	t.Helper()
	e, err := c.FindByBaseName(context.Background(), base)
	require.NoError(t, err)
	if want == "" {
		assert.Nil(t, e, "base %q under %s", base, c.Match())
		return
	}
	if assert.NotNil(t, e, "base %q under %s", base, c.Match()) {
		assert.Equal(t, want, e.Title)
	}
}

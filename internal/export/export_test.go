package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlelib/internal/catalog"
	"bundlelib/pkg/models"
)

var sample = []models.CatalogEntry{
	{ID: 1, Title: "Dune", Bundle: "Sci-Fi, Vol. 1"},
	{ID: 2, Title: `The "Stand"`, Bundle: "Horror"},
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "CSV": FormatCSV, " yaml ": FormatYAML, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatCSV, FormatFromPath("out/books.csv"))
	assert.Equal(t, FormatYAML, FormatFromPath("books.yml"))
	assert.Equal(t, FormatJSON, FormatFromPath("books"))
	assert.Equal(t, FormatJSON, FormatFromPath("books.txt"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sample))

	var got []models.CatalogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sample, got)
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, nil))
	assert.JSONEq(t, `[]`, buf.String())
}

func TestWriteCSV_QuotesFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sample))

	assert.Equal(t, "id,title,bundle\n1,Dune,\"Sci-Fi, Vol. 1\"\n2,\"The \"\"Stand\"\"\",Horror\n", buf.String())

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"2", `The "Stand"`, "Horror"}, records[2])
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, sample))
	assert.Contains(t, buf.String(), "title: Dune")

	var got []models.CatalogEntry
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sample, got)
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.ErrorIs(t, Write(&bytes.Buffer{}, "xml", sample), ErrUnknownFormat)
}

func TestToFile(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore(catalog.MatchSubstring)
	require.NoError(t, store.Insert(ctx, "Dune", "Sci-Fi"))
	require.NoError(t, store.Insert(ctx, "Emma", "Classics"))

	path := filepath.Join(t.TempDir(), "nested", "books.csv")
	n, err := ToFile(ctx, store, path, FormatFromPath(path))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,title,bundle\n1,Dune,Sci-Fi\n2,Emma,Classics\n", string(b))
}

type failingLister struct{}

func (failingLister) List(context.Context) ([]models.CatalogEntry, error) {
	return nil, errors.New("boom")
}

func TestCatalog_ListError(t *testing.T) {
	_, err := Catalog(context.Background(), failingLister{}, &bytes.Buffer{}, FormatJSON)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list catalog: boom")
}

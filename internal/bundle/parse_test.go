package bundle

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bundlelib/pkg/models"
)

const header = `My Humble Bundle "Tier 2: Science Fiction Classics" (5 items)`

func TestParseExample(t *testing.T) {
	in := header + "\n" +
		"----------------------------------\n" +
		"- Dune, 2nd Edition\n" +
		"- Foundation\n"

	books, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []models.Book{
		{Title: "Dune, 2nd Edition", Bundle: "Science Fiction Classics"},
		{Title: "Foundation", Bundle: "Science Fiction Classics"},
	}, books)
}

func TestParseKeepsOrderAndGroup(t *testing.T) {
	titles := []string{"Neuromancer", "Hyperion", "The Left Hand of Darkness", "Solaris"}

	var b strings.Builder
	b.WriteString(header + "\n=====\n")
	for _, title := range titles {
		b.WriteString("- " + title + "\n")
	}

	books, err := Parse(strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Len(t, books, len(titles))
	for i, book := range books {
		assert.Equal(t, titles[i], book.Title)
		assert.Equal(t, "Science Fiction Classics", book.Bundle)
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		bundle   string
		declared int
		ok       bool
	}{
		{"basic", header, "Science Fiction Classics", 5, true},
		{"last colon wins", `Bundle "A: B: C" (2 items)`, "C", 2, true},
		{"surrounding whitespace", "  " + header + "  \r", "Science Fiction Classics", 5, true},
		{"unicode prefix", `Über Bündel "Stufe 1: Klassiker" (3 items)`, "Klassiker", 3, true},
		{"no quotes", `My Bundle Tier 2: Sci-Fi (5 items)`, "", 0, false},
		{"no colon", `My Bundle "Sci-Fi" (5 items)`, "", 0, false},
		{"no count", `My Bundle "Tier: Sci-Fi"`, "", 0, false},
		{"punctuation prefix", `My-Bundle "Tier: Sci-Fi" (5 items)`, "", 0, false},
		{"empty", "", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle, declared, err := ParseHeader(tt.line)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrMalformedHeader)
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bundle, bundle)
			assert.Equal(t, tt.declared, declared)
		})
	}
}

func TestParseBadHeaderFailsRegardlessOfBody(t *testing.T) {
	bodies := []string{"", "---\n", "---\n- Dune\n", "---\n- Dune\n- Foundation\n"}
	for _, body := range bodies {
		_, err := Parse(strings.NewReader("not a header\n" + body))
		var pe *ParseError
		require.True(t, errors.As(err, &pe), "body %q", body)
		assert.Equal(t, 1, pe.Line)
		assert.ErrorIs(t, err, ErrMalformedHeader)
	}
}

func TestParseEmptyEntryFailsWholeParse(t *testing.T) {
	tests := []struct {
		name string
		body string
		line int
	}{
		{"bare dash", "- Dune\n-\n- Foundation\n", 4},
		{"blank line", "- Dune\n\n- Foundation\n", 4},
		{"dash and spaces", "- Dune\n - - \n", 4},
		{"trailing blank line", "- Dune\n- Foundation\n\n", 5},
		{"first entry", "\n- Dune\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, err := Parse(strings.NewReader(header + "\n---\n" + tt.body))
			assert.Nil(t, books)
			assert.ErrorIs(t, err, ErrEmptyEntry)

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestParseTrimsDashesAndWhitespace(t *testing.T) {
	in := header + "\r\n---\r\n- Dune, 2nd Edition \r\n--Foundation--\n-   Hyperion\n"

	books, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune, 2nd Edition", "Foundation", "Hyperion"}, titles(books))
}

func TestParseHeaderOnlyIsEmptyNotFailure(t *testing.T) {
	for _, in := range []string{header, header + "\n", header + "\n-----\n"} {
		books, err := Parse(strings.NewReader(in))
		require.NoError(t, err, "input %q", in)
		assert.NotNil(t, books)
		assert.Empty(t, books)
	}
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrMalformedHeader)
}

func TestReadReportsDeclaredCount(t *testing.T) {
	exp, err := Read(strings.NewReader(header + "\n---\n- Dune\n"))
	require.NoError(t, err)
	assert.Equal(t, "Science Fiction Classics", exp.Bundle)
	assert.Equal(t, 5, exp.Declared)
	assert.Len(t, exp.Books, 1)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.txt")
	require.NoError(t, os.WriteFile(path, []byte(header+"\n---\n- Dune\n"), 0o644))

	books, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dune"}, titles(books))

	_, err = ParseFile(filepath.Join(dir, "missing.txt"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func titles(books []models.Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.Title)
	}
	return out
}

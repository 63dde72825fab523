// Package export writes catalog contents as JSON, CSV or YAML.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"bundlelib/internal/catalog"
	"bundlelib/pkg/models"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

var ErrUnknownFormat = errors.New("unknown export format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// FormatFromPath guesses the format from a file extension, defaulting to
// JSON.
func FormatFromPath(path string) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return FormatJSON
	}
	return f
}

// Write encodes entries to w.
func Write(w io.Writer, format Format, entries []models.CatalogEntry) error {
	if entries == nil {
		entries = []models.CatalogEntry{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatCSV:
		return writeCSV(w, entries)
	case FormatYAML:
		b, err := yaml.Marshal(entries)
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		_, err = w.Write(b)
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func writeCSV(w io.Writer, entries []models.CatalogEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "title", "bundle"}); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{strconv.FormatInt(e.ID, 10), e.Title, e.Bundle}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Catalog lists everything in l and writes it to w.
func Catalog(ctx context.Context, l catalog.Lister, w io.Writer, format Format) (int, error) {
	entries, err := l.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list catalog: %w", err)
	}
	if err := Write(w, format, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ToFile is Catalog writing to path, creating parent directories.
func ToFile(ctx context.Context, l catalog.Lister, path string, format Format) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	n, err := Catalog(ctx, l, f, format)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

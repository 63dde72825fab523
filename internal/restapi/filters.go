package restapi

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"bundlelib/internal/catalog"
	"bundlelib/pkg/models"
)

var errBadFilter = errors.New("bad filter")

var columns = map[string]bool{"id": true, "title": true, "bundle": true}

// parseQuery translates the PostgREST subset we serve into a catalog.Query
// plus the selected columns (nil means all).
func parseQuery(v url.Values) (catalog.Query, []string, error) {
	var q catalog.Query

	for key, vals := range v {
		if len(vals) == 0 {
			continue
		}
		raw := vals[0]
		switch key {
		case "select":
			// handled below
		case "id":
			id, err := parseIDFilter(raw)
			if err != nil {
				return q, nil, err
			}
			q.ID = id
		case "title":
			op, pattern, ok := strings.Cut(raw, ".")
			if !ok {
				return q, nil, fmt.Errorf("%w: title=%s", errBadFilter, raw)
			}
			switch catalog.TitleOp(op) {
			case catalog.TitleEq, catalog.TitleLike, catalog.TitleILike:
				q.TitleOp = catalog.TitleOp(op)
				q.Title = pattern
			default:
				return q, nil, fmt.Errorf("%w: unsupported operator %q", errBadFilter, op)
			}
		case "order":
			switch raw {
			case "id", "id.asc":
			case "id.desc":
				q.Desc = true
			default:
				return q, nil, fmt.Errorf("%w: order=%s", errBadFilter, raw)
			}
		case "limit":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return q, nil, fmt.Errorf("%w: limit=%s", errBadFilter, raw)
			}
			q.Limit = n
		case "offset":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return q, nil, fmt.Errorf("%w: offset=%s", errBadFilter, raw)
			}
			q.Offset = n
		default:
			return q, nil, fmt.Errorf("%w: unknown column %q", errBadFilter, key)
		}
	}

	cols, err := parseSelect(v.Get("select"))
	if err != nil {
		return q, nil, err
	}
	return q, cols, nil
}

func parseIDFilter(raw string) (int64, error) {
	n, ok := strings.CutPrefix(raw, "eq.")
	if !ok {
		return 0, fmt.Errorf("%w: id supports only eq", errBadFilter)
	}
	id, err := strconv.ParseInt(n, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id=%s", errBadFilter, raw)
	}
	return id, nil
}

func parseSelect(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return nil, nil
	}
	var cols []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if !columns[c] {
			return nil, fmt.Errorf("%w: unknown column %q in select", errBadFilter, c)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

// project renders entries with only the selected columns.
func project(entries []models.CatalogEntry, cols []string) any {
	if cols == nil {
		return entries
	}
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			switch c {
			case "id":
				row[c] = e.ID
			case "title":
				row[c] = e.Title
			case "bundle":
				row[c] = e.Bundle
			}
		}
		out = append(out, row)
	}
	return out
}

// wantsRepresentation reports whether the Prefer header asks for rows back.
func wantsRepresentation(prefer string) bool {
	for _, p := range strings.Split(prefer, ",") {
		if strings.TrimSpace(p) == "return=representation" {
			return true
		}
	}
	return false
}

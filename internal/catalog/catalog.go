// Package catalog stores reconciled books. All backends share one small
// interface; how a base name is matched against stored titles is an explicit
// MatchStrategy chosen per backend instance.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bundlelib/pkg/database"
	"bundlelib/pkg/models"
)

var (
	ErrNotFound       = errors.New("catalog entry not found")
	ErrDuplicateTitle = errors.New("catalog title already exists")
	ErrUnknownBackend = errors.New("unknown catalog backend")
	ErrUnknownMatch   = errors.New("unknown match strategy")
)

// Catalog is the store the reconciler writes to.
type Catalog interface {
	// FindByBaseName returns the oldest entry whose title matches base under
	// the catalog's MatchStrategy, or nil when nothing matches.
	FindByBaseName(ctx context.Context, base string) (*models.CatalogEntry, error)
	Insert(ctx context.Context, title, bundle string) error
	Update(ctx context.Context, id int64, title, bundle string) error
	Match() MatchStrategy
	Close() error
}

// Lister is implemented by catalogs that can enumerate their entries.
type Lister interface {
	List(ctx context.Context) ([]models.CatalogEntry, error)
}

// MatchStrategy decides which stored titles a base name matches.
type MatchStrategy string

const (
	// MatchSubstring matches any title containing base, case-sensitively.
	MatchSubstring MatchStrategy = "substring"
	// MatchPrefix matches titles starting with base, ignoring case.
	MatchPrefix MatchStrategy = "prefix"
)

// ParseMatchStrategy accepts the strategy names used in configuration.
func ParseMatchStrategy(s string) (MatchStrategy, error) {
	switch MatchStrategy(strings.ToLower(strings.TrimSpace(s))) {
	case MatchSubstring:
		return MatchSubstring, nil
	case MatchPrefix:
		return MatchPrefix, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMatch, s)
}

// Matches is the reference predicate every backend query agrees with.
// Case-insensitivity uses full Unicode case folding.
func (m MatchStrategy) Matches(title, base string) bool {
	if m == MatchPrefix {
		return strings.HasPrefix(database.Fold(title), database.Fold(base))
	}
	return strings.Contains(title, base)
}

func (m MatchStrategy) String() string { return string(m) }

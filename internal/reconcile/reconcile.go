// Package reconcile applies parsed books to a catalog. A book whose base name
// is not yet catalogued is inserted; a book whose title sorts after the
// matching entry's title replaces it; anything else is left alone.
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bundlelib/internal/catalog"
	"bundlelib/pkg/database"
	"bundlelib/pkg/models"
)

// Action is what reconciliation did with one book.
type Action int

const (
	Unchanged Action = iota
	Inserted
	Updated
)

func (a Action) String() string {
	switch a {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Decision records the outcome for one book. Previous is the matched entry
// as it was before any update, nil for inserts.
type Decision struct {
	Book     models.Book
	BaseName string
	Action   Action
	Previous *models.CatalogEntry
}

// Summary collects decisions in input order.
type Summary struct {
	Decisions []Decision
	Inserted  int
	Updated   int
	Unchanged int
}

func (s *Summary) add(d Decision) {
	s.Decisions = append(s.Decisions, d)
	switch d.Action {
	case Inserted:
		s.Inserted++
	case Updated:
		s.Updated++
	default:
		s.Unchanged++
	}
}

// Decide compares a book against the entry its base name matched. Titles
// compare byte-wise, so "Dune, 2nd Edition" supersedes "Dune, 1st Edition".
func Decide(b models.Book, existing *models.CatalogEntry) Action {
	if existing == nil {
		return Inserted
	}
	if b.Title > existing.Title {
		return Updated
	}
	return Unchanged
}

type Option func(*Reconciler)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithWorkers lets books whose base names cannot reach the same entry be
// applied concurrently. Books that can are always applied in input order.
// n <= 1 keeps everything sequential, and so does a substring catalog, where
// any two base names may match one entry.
func WithWorkers(n int) Option {
	return func(r *Reconciler) { r.workers = n }
}

type Reconciler struct {
	catalog catalog.Catalog
	logger  zerolog.Logger
	workers int
}

func New(c catalog.Catalog, opts ...Option) *Reconciler {
	r := &Reconciler{catalog: c, logger: zerolog.Nop(), workers: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ApplyOne reconciles a single book. The catalog mutation, if any, is
// committed before it returns.
func (r *Reconciler) ApplyOne(ctx context.Context, b models.Book) (Decision, error) {
	base := b.BaseName()

	existing, err := r.catalog.FindByBaseName(ctx, base)
	if err != nil {
		return Decision{}, fmt.Errorf("lookup %q: %w", b.Title, err)
	}

	d := Decision{Book: b, BaseName: base, Action: Decide(b, existing), Previous: existing}

	switch d.Action {
	case Inserted:
		err = r.catalog.Insert(ctx, b.Title, b.Bundle)
	case Updated:
		err = r.catalog.Update(ctx, existing.ID, b.Title, b.Bundle)
	}
	if err != nil {
		return Decision{}, fmt.Errorf("%s %q: %w", verb(d.Action), b.Title, err)
	}

	ev := r.logger.Debug().
		Str("title", b.Title).
		Str("bundle", b.Bundle).
		Str("base", base).
		Stringer("action", d.Action)
	if existing != nil {
		ev = ev.Int64("entry_id", existing.ID).Str("previous", existing.Title)
	}
	ev.Msg("reconciled")

	return d, nil
}

func verb(a Action) string {
	if a == Updated {
		return "update"
	}
	return "insert"
}

// Apply reconciles books in order. It is not atomic: on error the returned
// summary holds the decisions already committed and the remaining books are
// skipped.
func (r *Reconciler) Apply(ctx context.Context, books ...models.Book) (*Summary, error) {
	if r.workers > 1 && len(books) > 1 {
		if r.catalog.Match() != catalog.MatchSubstring {
			return r.applyGrouped(ctx, books)
		}
		r.logger.Debug().Int("workers", r.workers).Msg("substring matching, applying sequentially")
	}

	sum := &Summary{}
	for _, b := range books {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		d, err := r.ApplyOne(ctx, b)
		if err != nil {
			return sum, err
		}
		sum.add(d)
	}
	return sum, nil
}

// applyGrouped runs one goroutine per prefix group on a bounded pool. Results
// are gathered by input index so the summary stays in input order.
func (r *Reconciler) applyGrouped(ctx context.Context, books []models.Book) (*Summary, error) {
	bases := make([]string, len(books))
	for i, b := range books {
		bases[i] = b.BaseName()
	}
	keys := prefixGroups(bases)

	groups := make(map[string][]int)
	var order []string
	for i, base := range bases {
		key := keys[base]
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	results := make([]*Decision, len(books))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, base := range order {
		idx := groups[base]
		g.Go(func() error {
			for _, i := range idx {
				d, err := r.ApplyOne(gctx, books[i])
				if err != nil {
					return err
				}
				results[i] = &d
			}
			return nil
		})
	}
	err := g.Wait()

	sum := &Summary{}
	for _, d := range results {
		if d != nil {
			sum.add(*d)
		}
	}
	return sum, err
}

// prefixGroups maps each base name to a group key. Under prefix matching two
// base names reach the same entry only when one folded name is a prefix of
// the other. Sorted, every name carrying a prefix follows that prefix
// directly, so one pass over the sorted names builds the groups.
func prefixGroups(bases []string) map[string]string {
	byFold := make(map[string]string, len(bases))
	for _, b := range bases {
		byFold[b] = database.Fold(b)
	}
	folded := make([]string, 0, len(byFold))
	seen := make(map[string]bool, len(byFold))
	for _, f := range byFold {
		if !seen[f] {
			seen[f] = true
			folded = append(folded, f)
		}
	}
	sort.Strings(folded)

	root := make(map[string]string, len(folded))
	var current string
	for i, f := range folded {
		if i == 0 || !strings.HasPrefix(f, current) {
			current = f
		}
		root[f] = current
	}

	keys := make(map[string]string, len(bases))
	for b, f := range byFold {
		keys[b] = root[f]
	}
	return keys
}

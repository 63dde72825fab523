package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"bundlelib/internal/bundle"
	"bundlelib/internal/catalog"
	"bundlelib/internal/reconcile"
	"bundlelib/pkg/logging"
)

func (a *app) runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	log := logging.FromContext(ctx).With().Str("run_id", uuid.NewString()).Str("input", path).Logger()

	exp, err := bundle.ReadFile(path)
	if err != nil {
		fmt.Fprintf(a.stdout, "Could not read file: %s\n", path)
		log.Debug().Err(err).Msg("read export failed")
		return &ExitError{Code: ExitUsage, Err: err, Reported: true}
	}
	if exp.Declared != len(exp.Books) {
		log.Warn().Int("declared", exp.Declared).Int("found", len(exp.Books)).Msg("item count in header does not match entries")
	}

	cat, err := catalog.Open(ctx, a.cfg.Catalog)
	if err != nil {
		log.Error().Err(err).Str("backend", string(a.cfg.Catalog.Backend)).Msg("open catalog failed")
		return &ExitError{Code: ExitCatalog, Err: err, Reported: true}
	}
	defer func() {
		if err := cat.Close(); err != nil {
			log.Warn().Err(err).Msg("close catalog")
		}
	}()

	log.Info().
		Str("bundle", exp.Bundle).
		Int("books", len(exp.Books)).
		Str("backend", string(a.cfg.Catalog.Backend)).
		Str("match", string(cat.Match())).
		Msg("reconciling")

	r := reconcile.New(cat, reconcile.WithLogger(log), reconcile.WithWorkers(a.cfg.Workers))
	sum, err := r.Apply(ctx, exp.Books...)

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Int("inserted", sum.Inserted).
		Int("updated", sum.Updated).
		Int("unchanged", sum.Unchanged).
		Msg("reconcile finished")

	if err != nil {
		return &ExitError{Code: ExitCatalog, Err: err, Reported: true}
	}
	return nil
}

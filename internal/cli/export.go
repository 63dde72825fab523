package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bundlelib/internal/catalog"
	"bundlelib/internal/export"
	"bundlelib/pkg/logging"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every catalog entry as JSON, CSV or YAML",
		Example: `  bundlelib export --format csv -o books.csv
  bundlelib export --backend rest --rest-url https://x.supabase.co/rest/v1 > books.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := export.FormatJSON
			switch {
			case format != "":
				parsed, err := export.ParseFormat(format)
				if err != nil {
					return &ExitError{Code: ExitUsage, Err: err}
				}
				f = parsed
			case output != "":
				f = export.FormatFromPath(output)
			}

			ctx := cmd.Context()
			log := logging.FromContext(ctx)
			cat, err := catalog.Open(ctx, a.cfg.Catalog)
			if err != nil {
				log.Error().Err(err).Msg("open catalog failed")
				return &ExitError{Code: ExitCatalog, Err: err, Reported: true}
			}
			defer cat.Close()

			l, ok := cat.(catalog.Lister)
			if !ok {
				return &ExitError{Code: ExitUsage, Err: fmt.Errorf("backend %s cannot list entries", a.cfg.Catalog.Backend)}
			}

			var n int
			if output == "" || output == "-" {
				n, err = export.Catalog(ctx, l, a.stdout, f)
			} else {
				n, err = export.ToFile(ctx, l, output, f)
			}
			if err != nil {
				log.Error().Err(err).Msg("export failed")
				return &ExitError{Code: ExitCatalog, Err: err, Reported: true}
			}

			log.Info().Int("entries", n).Str("format", string(f)).Str("output", output).Msg("exported")
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "json, csv or yaml (default from --output extension, else json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

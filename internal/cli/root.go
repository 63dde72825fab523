// Package cli implements the bundlelib command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bundlelib/internal/config"
	"bundlelib/pkg/logging"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitUsage   = 1 // bad arguments, bad config, unreadable input
	ExitCatalog = 2 // catalog unreachable or a write failed
)

// ExitError carries a process exit code. Reported is set when the failure
// has already been shown to the user.
type ExitError struct {
	Code     int
	Err      error
	Reported bool
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

var errUsage = errors.New("missing input file")

type app struct {
	v          *viper.Viper
	configFile string
	stdout     io.Writer
	stderr     io.Writer

	cfg    *config.Config
	logOut io.Closer
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{v: config.New(), stdout: stdout, stderr: stderr}
}

// close releases the log file opened by setup, if any.
func (a *app) close() {
	if a.logOut != nil {
		_ = a.logOut.Close()
		a.logOut = nil
	}
}

// rootCommand builds the command tree writing to a.stdout and a.stderr.
func (a *app) rootCommand() *cobra.Command {

	root := &cobra.Command{
		Use:   "bundlelib <input_file>",
		Short: "Reconcile a bundle export into a book catalog",
		Long: `bundlelib reads a bundle export (a quoted bundle header, a separator line,
then one book title per line) and records every book in a catalog. A book
whose base title is already catalogued is updated only when the new title
sorts after the stored one, so later editions replace earlier ones.

The catalog is a local SQLite file by default, or a PostgREST/Supabase table,
or a Postgres database.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return &ExitError{Code: ExitUsage, Err: errUsage}
			}
			if len(args) > 1 {
				return &ExitError{Code: ExitUsage, Err: fmt.Errorf("expected one input file, got %d", len(args))}
			}
			return nil
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runIngest,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default is ./bundlelib.yaml or $HOME/bundlelib.yaml)")
	pf.String("backend", "", "catalog backend: sqlite, rest, postgres, memory")
	pf.String("db", "", "SQLite catalog path")
	pf.String("match", "", "base-name match strategy: substring or prefix (default depends on backend)")
	pf.String("rest-url", "", "REST catalog root, e.g. https://project.supabase.co/rest/v1")
	pf.String("rest-table", "", "REST catalog table")
	pf.String("postgres-dsn", "", "Postgres connection string")
	pf.Int("workers", 0, "reconcile books with different base names in parallel")
	pf.String("log-level", "", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "", "log format: auto, console, json")

	for key, flag := range map[string]string{
		"catalog.backend":      "backend",
		"catalog.sqlite.path":  "db",
		"catalog.match":        "match",
		"catalog.rest.url":     "rest-url",
		"catalog.rest.table":   "rest-table",
		"catalog.postgres.dsn": "postgres-dsn",
		"workers":              "workers",
		"log.level":            "log-level",
		"log.format":           "log-format",
	} {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind %s flag: %v", flag, err))
		}
	}

	root.AddCommand(newExportCommand(a), newTokenCommand(a))
	return root
}

// setup loads configuration and builds the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnvFiles(); err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	a.cfg = cfg

	logger, logOut, err := logging.Open(cfg.Log, a.stdout, a.stderr)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("LOG_OUTPUT: %w", err)}
	}
	a.logOut = logOut
	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")

	cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
	return nil
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	defer a.close()
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var ee *ExitError
	if !errors.As(err, &ee) {
		// cobra's own errors: unknown flag or subcommand
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprint(stderr, root.UsageString())
		return ExitUsage
	}

	switch {
	case errors.Is(ee.Err, errUsage):
		fmt.Fprintf(stdout, "Usage: %s <input_file>\n", root.Name())
	case !ee.Reported:
		fmt.Fprintf(stderr, "Error: %v\n", ee.Err)
	}
	return ee.Code
}

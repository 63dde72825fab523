package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"bundlelib/internal/auth"
	"bundlelib/internal/catalog"
	"bundlelib/internal/config"
	"bundlelib/internal/events"
	"bundlelib/internal/restapi"
	"bundlelib/pkg/logging"
)

func main() {
	var configFile string
	v := config.New()

	cmd := &cobra.Command{
		Use:           "api-server",
		Short:         "Serve a SQLite book catalog over a PostgREST-compatible API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadEnvFiles(); err != nil {
				return err
			}
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "config file")
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().String("db", "", "SQLite catalog path")
	_ = v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("catalog.sqlite.path", cmd.Flags().Lookup("db"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "api-server: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, logOut, err := logging.Open(cfg.Log, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	defer logOut.Close()
	gin.SetMode(gin.ReleaseMode)

	if cfg.Catalog.Backend != catalog.BackendSQLite {
		logger.Warn().Str("backend", string(cfg.Catalog.Backend)).Msg("api-server always serves the SQLite catalog")
	}

	store, err := catalog.OpenSQLite(cfg.Catalog.SQLite.Path, catalog.MatchPrefix)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	hub := events.NewHub(logger.With().Str("component", "ws").Logger())
	defer hub.Close()

	tokens := auth.TokenService{
		Secret:   []byte(cfg.Server.JWTSecret),
		Issuer:   cfg.Server.JWTIssuer,
		Duration: cfg.Server.TokenTTL,
	}

	router := restapi.NewRouter(restapi.RouterConfig{
		Handler: restapi.NewHandler(store, cfg.Server.Table, hub, logger),
		Tokens:  tokens,
		Hub:     hub,
		DB:      store.DB,
		Entries: store,
		Logger:  logger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("db", cfg.Catalog.SQLite.Path).
			Str("table", cfg.Server.Table).
			Msg("catalog API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("server stopped")
	return nil
}

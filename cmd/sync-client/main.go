package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bundlelib/internal/events"
	"bundlelib/pkg/logging"
)

func main() {
	var (
		url     string
		token   string
		pretty  bool
		backoff time.Duration
	)

	cmd := &cobra.Command{
		Use:           "sync-client",
		Short:         "Print catalog changes from a bundlelib api-server as they happen",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logging.NewWithWriter(logging.Config{
				Level:  envOr("LOG_LEVEL", "info"),
				Format: envOr("LOG_FORMAT", "auto"),
			}, os.Stderr)

			if token == "" {
				token = os.Getenv("BUNDLELIB_REST_TOKEN")
			}
			hdr := http.Header{}
			if token != "" {
				hdr.Set("Authorization", "Bearer "+token)
			}

			logger.Info().Str("url", url).Msg("tailing change feed")
			err := events.TailForever(cmd.Context(), url, hdr, backoff, logger, func(ev events.CatalogEvent) error {
				return printEvent(ev, pretty)
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:8080/ws", "change feed URL")
	cmd.Flags().StringVar(&token, "token", "", "bearer token (default $BUNDLELIB_REST_TOKEN)")
	cmd.Flags().BoolVar(&pretty, "pretty", true, "pretty print JSON events")
	cmd.Flags().DurationVar(&backoff, "reconnect", time.Second, "delay between reconnect attempts")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sync-client: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printEvent(ev events.CatalogEvent, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = json.MarshalIndent(ev, "", "  ")
	} else {
		b, err = json.Marshal(ev)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(b))
	return err
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

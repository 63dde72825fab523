package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Tail connects to a change feed and calls fn for every event until ctx is
// done or the connection drops. Welcome frames are skipped.
func Tail(ctx context.Context, url string, header http.Header, fn func(CatalogEvent) error) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}

		var ev CatalogEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if ev.Type == TypeWelcome {
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// TailForever re-dials after every disconnect, waiting backoff between
// attempts, until ctx is done.
func TailForever(ctx context.Context, url string, header http.Header, backoff time.Duration, logger zerolog.Logger, fn func(CatalogEvent) error) error {
	for {
		err := Tail(ctx, url, header, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn().Err(err).Dur("retry_in", backoff).Msg("feed disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

package restapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bundlelib/internal/auth"
	"bundlelib/internal/events"
)

// Pinger reports catalog health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Counter reports how many entries the catalog holds.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

type RouterConfig struct {
	Handler *Handler
	Tokens  auth.TokenService
	Hub     *events.Hub // nil disables /ws
	DB      Pinger      // nil skips the readiness check
	Entries Counter     // nil omits the entry count from /ready
	Logger  zerolog.Logger
}

// NewRouter wires the catalog API:
//
//	GET  /health
//	GET  /ready
//	GET  /ws                (auth)
//	GET  /rest/v1/:table    (auth)
//	POST /rest/v1/:table    (auth, service_role)
//	PATCH /rest/v1/:table   (auth, service_role)
func NewRouter(rc RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(rc.Logger))
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "table": rc.Handler.Table})
	})

	router.GET("/ready", func(c *gin.Context) {
		body := gin.H{"status": "ready"}
		if rc.Hub != nil {
			body["ws_clients"] = rc.Hub.Stats().WSClients
		}
		if rc.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := rc.DB.PingContext(ctx); err != nil {
				body["status"] = "not_ready"
				body["db_error"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}
		if rc.Entries != nil {
			n, err := rc.Entries.Count(c.Request.Context())
			if err != nil {
				body["status"] = "not_ready"
				body["db_error"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
			body["entries"] = n
		}
		c.JSON(http.StatusOK, body)
	})

	protected := router.Group("/", auth.Middleware(rc.Tokens))
	if rc.Hub != nil {
		protected.GET("/ws", events.Handler(rc.Hub))
	}
	rc.Handler.RegisterRoutes(protected.Group("/rest/v1"), auth.RequireWrite())

	return router
}

// RequestLogger logs one line per request.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("query", c.Request.URL.RawQuery).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

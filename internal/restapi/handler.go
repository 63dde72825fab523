// Package restapi serves a catalog over the subset of the PostgREST
// protocol that the rest backend speaks, so a self-hosted SQLite catalog
// can stand in for a hosted one.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bundlelib/internal/catalog"
	"bundlelib/internal/events"
	"bundlelib/pkg/models"
)

// Store is the slice of *catalog.SQLiteStore the API needs.
type Store interface {
	Query(ctx context.Context, q catalog.Query) ([]models.CatalogEntry, error)
	InsertEntries(ctx context.Context, books []models.Book) ([]models.CatalogEntry, error)
	Get(ctx context.Context, id int64) (*models.CatalogEntry, error)
	Update(ctx context.Context, id int64, title, bundle string) error
}

type Handler struct {
	Store  Store
	Table  string
	Events events.Publisher
	Logger zerolog.Logger
}

func NewHandler(store Store, table string, pub events.Publisher, logger zerolog.Logger) *Handler {
	if pub == nil {
		pub = events.Discard{}
	}
	return &Handler{Store: store, Table: table, Events: pub, Logger: logger}
}

// RegisterRoutes mounts the table endpoints on rg. Callers add auth.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	rg.GET("/:table", h.table, h.list)
	rg.POST("/:table", append(append([]gin.HandlerFunc{h.table}, write...), h.insert)...)
	rg.PATCH("/:table", append(append([]gin.HandlerFunc{h.table}, write...), h.update)...)
}

func (h *Handler) table(c *gin.Context) {
	if c.Param("table") != h.Table {
		c.AbortWithStatusJSON(http.StatusNotFound, apiError("42P01", "relation \""+c.Param("table")+"\" does not exist"))
		return
	}
	c.Next()
}

func (h *Handler) list(c *gin.Context) {
	q, cols, err := parseQuery(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("PGRST100", err.Error()))
		return
	}

	rows, err := h.Store.Query(c.Request.Context(), q)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list failed")
		c.JSON(http.StatusInternalServerError, apiError("XX000", "list failed"))
		return
	}
	c.JSON(http.StatusOK, project(rows, cols))
}

type bookPatch struct {
	Title  *string `json:"title"`
	Bundle *string `json:"bundle"`
}

func (h *Handler) insert(c *gin.Context) {
	books, err := decodeBooks(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("PGRST102", err.Error()))
		return
	}

	rows, err := h.Store.InsertEntries(c.Request.Context(), books)
	if err != nil {
		h.fail(c, "insert", err)
		return
	}

	for _, e := range rows {
		h.Events.Publish(events.CatalogEvent{Type: events.TypeInsert, Table: h.Table, ID: e.ID, Title: e.Title, Bundle: e.Bundle, At: time.Now().UTC()})
	}
	h.Logger.Info().Int("rows", len(rows)).Msg("inserted")

	if wantsRepresentation(c.GetHeader("Prefer")) {
		c.JSON(http.StatusCreated, rows)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handler) update(c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		c.JSON(http.StatusBadRequest, apiError("PGRST100", "PATCH requires an id=eq.N filter"))
		return
	}
	id, err := parseIDFilter(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("PGRST100", err.Error()))
		return
	}
	cols, err := parseSelect(c.Query("select"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError("PGRST100", err.Error()))
		return
	}

	var patch bookPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, apiError("PGRST102", "invalid json body"))
		return
	}
	if patch.Title == nil && patch.Bundle == nil {
		c.JSON(http.StatusBadRequest, apiError("PGRST102", "nothing to update"))
		return
	}

	ctx := c.Request.Context()
	cur, err := h.Store.Get(ctx, id)
	if err != nil {
		h.fail(c, "update", err)
		return
	}
	if cur == nil {
		h.respondUpdated(c, nil, cols)
		return
	}

	next := *cur
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Bundle != nil {
		next.Bundle = *patch.Bundle
	}

	if err := h.Store.Update(ctx, id, next.Title, next.Bundle); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			h.respondUpdated(c, nil, cols)
			return
		}
		h.fail(c, "update", err)
		return
	}

	h.Events.Publish(events.CatalogEvent{Type: events.TypeUpdate, Table: h.Table, ID: next.ID, Title: next.Title, Bundle: next.Bundle, At: time.Now().UTC()})
	h.Logger.Info().Int64("id", id).Str("title", next.Title).Msg("updated")
	h.respondUpdated(c, []models.CatalogEntry{next}, cols)
}

// respondUpdated mirrors PostgREST: a PATCH matching no rows is not an
// error, it just returns no rows.
func (h *Handler) respondUpdated(c *gin.Context, rows []models.CatalogEntry, cols []string) {
	if !wantsRepresentation(c.GetHeader("Prefer")) {
		c.Status(http.StatusNoContent)
		return
	}
	if rows == nil {
		rows = []models.CatalogEntry{}
	}
	c.JSON(http.StatusOK, project(rows, cols))
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, catalog.ErrDuplicateTitle) {
		c.JSON(http.StatusConflict, apiError("23505", "duplicate key value violates unique constraint on title"))
		return
	}
	h.Logger.Error().Err(err).Str("op", op).Msg("catalog write failed")
	c.JSON(http.StatusInternalServerError, apiError("XX000", op+" failed"))
}

// decodeBooks accepts a single object or an array of objects.
func decodeBooks(c *gin.Context) ([]models.Book, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	var books []models.Book
	if body[0] == '[' {
		err = json.Unmarshal(body, &books)
	} else {
		var b models.Book
		err = json.Unmarshal(body, &b)
		books = []models.Book{b}
	}
	if err != nil {
		return nil, errors.New("invalid json body")
	}
	if len(books) == 0 {
		return nil, errors.New("no rows to insert")
	}
	for _, b := range books {
		if b.Title == "" {
			return nil, errors.New("title is required")
		}
	}
	return books, nil
}

func apiError(code, msg string) gin.H {
	return gin.H{"code": code, "message": msg}
}

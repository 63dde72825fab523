package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bundlelib/pkg/models"
)

const (
	DefaultRESTTable   = "books"
	DefaultRESTTimeout = 15 * time.Second
)

// RESTStore talks to a PostgREST-style table endpoint (Supabase, a plain
// PostgREST, or the bundlelib api-server). Rows are {id, title, bundle}.
type RESTStore struct {
	endpoint string
	token    string
	match    MatchStrategy
	Client   *http.Client
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rest catalog: %s status %d: %s", e.Method, e.Code, e.Body)
}

func NewRESTStore(cfg RESTConfig, match MatchStrategy) (*RESTStore, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("rest catalog: url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rest catalog: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("rest catalog: unsupported url scheme %q", u.Scheme)
	}

	table := cfg.Table
	if table == "" {
		table = DefaultRESTTable
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRESTTimeout
	}

	return &RESTStore{
		endpoint: strings.TrimRight(cfg.URL, "/") + "/" + url.PathEscape(table),
		token:    cfg.Token,
		match:    match,
		Client:   &http.Client{Timeout: timeout},
	}, nil
}

func (s *RESTStore) Match() MatchStrategy { return s.match }

func (s *RESTStore) Close() error {
	s.Client.CloseIdleConnections()
	return nil
}

// titleFilter renders the PostgREST filter for a base name lookup.
func titleFilter(match MatchStrategy, base string) string {
	if match == MatchPrefix {
		return "ilike." + base + "*"
	}
	return "like.*" + base + "*"
}

func (s *RESTStore) FindByBaseName(ctx context.Context, base string) (*models.CatalogEntry, error) {
	q := url.Values{}
	q.Set("select", "id,title,bundle")
	q.Set("title", titleFilter(s.match, base))
	q.Set("order", "id.asc")
	q.Set("limit", "1")

	var rows []models.CatalogEntry
	if err := s.do(ctx, http.MethodGet, q, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("find by base name %q: %w", base, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *RESTStore) Insert(ctx context.Context, title, bundle string) error {
	body := models.Book{Title: title, Bundle: bundle}
	hdr := http.Header{"Prefer": {"return=minimal"}}
	if err := s.do(ctx, http.MethodPost, nil, hdr, body, nil); err != nil {
		return fmt.Errorf("insert %q: %w", title, err)
	}
	return nil
}

func (s *RESTStore) Update(ctx context.Context, id int64, title, bundle string) error {
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	q.Set("select", "id")

	body := models.Book{Title: title, Bundle: bundle}
	hdr := http.Header{"Prefer": {"return=representation"}}

	var rows []struct {
		ID int64 `json:"id"`
	}
	if err := s.do(ctx, http.MethodPatch, q, hdr, body, &rows); err != nil {
		return fmt.Errorf("update %d: %w", id, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("update %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *RESTStore) List(ctx context.Context) ([]models.CatalogEntry, error) {
	q := url.Values{}
	q.Set("select", "id,title,bundle")
	q.Set("order", "id.asc")

	var rows []models.CatalogEntry
	if err := s.do(ctx, http.MethodGet, q, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return rows, nil
}

func (s *RESTStore) do(ctx context.Context, method string, q url.Values, hdr http.Header, payload, out any) error {
	u := s.endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	s.authorize(req)

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		serr := &StatusError{Method: method, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		if resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("%w: %w", ErrDuplicateTitle, serr)
		}
		return serr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// authorize sends the token both as a bearer credential and as the apikey
// header Supabase's gateway expects.
func (s *RESTStore) authorize(req *http.Request) {
	if s.token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("apikey", s.token)
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokens() TokenService {
	return TokenService{Secret: []byte("0123456789abcdef0123"), Issuer: "bundlelib", Duration: time.Hour}
}

func TestSignParse(t *testing.T) {
	ts := testTokens()
	raw, exp, err := ts.Sign("importer", RoleService)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	claims, err := ts.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "importer", claims.Subject)
	assert.Equal(t, RoleService, claims.Role)
	assert.True(t, claims.CanWrite())
}

func TestSign_NoExpiry(t *testing.T) {
	ts := testTokens()
	ts.Duration = 0
	raw, exp, err := ts.Sign("reader", RoleAnon)
	require.NoError(t, err)
	assert.True(t, exp.IsZero())

	claims, err := ts.Parse(raw)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
	assert.False(t, claims.CanWrite())
}

func TestSign_UnknownRole(t *testing.T) {
	_, _, err := testTokens().Sign("x", "admin")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestParse_Rejects(t *testing.T) {
	ts := testTokens()

	other := ts
	other.Secret = []byte("a-different-secret-value")
	forged, _, err := other.Sign("x", RoleService)
	require.NoError(t, err)

	stale, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: RoleService,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString(ts.Secret)
	require.NoError(t, err)

	wrongIssuer := ts
	wrongIssuer.Issuer = "someone-else"
	foreign, _, err := wrongIssuer.Sign("x", RoleService)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleService}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"expired":      stale,
		"wrong issuer": foreign,
		"alg none":     none,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Parse(raw)
			assert.Error(t, err)
		})
	}
}

func newRouter(ts TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", Middleware(ts))
	g.GET("/read", func(c *gin.Context) {
		c.String(http.StatusOK, MustGetClaims(c).Role)
	})
	g.POST("/write", RequireWrite(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestMiddleware(t *testing.T) {
	ts := testTokens()
	anon, _, err := ts.Sign("web", RoleAnon)
	require.NoError(t, err)
	service, _, err := ts.Sign("importer", RoleService)
	require.NoError(t, err)

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    int
	}{
		{"no token", http.MethodGet, "/read", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/read", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"basic scheme", http.MethodGet, "/read", map[string]string{"Authorization": "Basic " + anon}, http.StatusUnauthorized},
		{"bearer anon read", http.MethodGet, "/read", map[string]string{"Authorization": "Bearer " + anon}, http.StatusOK},
		{"lowercase scheme", http.MethodGet, "/read", map[string]string{"Authorization": "bearer " + anon}, http.StatusOK},
		{"apikey fallback", http.MethodGet, "/read", map[string]string{"apikey": anon}, http.StatusOK},
		{"anon write", http.MethodPost, "/write", map[string]string{"Authorization": "Bearer " + anon}, http.StatusForbidden},
		{"service write", http.MethodPost, "/write", map[string]string{"Authorization": "Bearer " + service}, http.StatusNoContent},
	}

	r := newRouter(ts)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles understood by the catalog API, named after the PostgREST roles a
// hosted catalog hands out.
const (
	RoleAnon    = "anon"
	RoleService = "service_role"
)

var ErrUnknownRole = errors.New("unknown role")

type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// CanWrite reports whether the claims allow inserts and updates.
func (c *Claims) CanWrite() bool {
	return c != nil && c.Role == RoleService
}

func ValidRole(role string) bool {
	return role == RoleAnon || role == RoleService
}

// Sign issues a token for subject with the given role. A zero Duration
// produces a token without expiry.
func (ts TokenService) Sign(subject, role string) (string, time.Time, error) {
	if !ValidRole(role) {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   ts.Issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	var exp time.Time
	if ts.Duration > 0 {
		exp = now.Add(ts.Duration)
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

func (ts TokenService) Parse(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if ts.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(ts.Issuer))
	}

	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return ts.Secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if !ValidRole(claims.Role) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}
	return claims, nil
}

// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package principal provides the thin JWT boundary between HTTP requests
// and the rest of the service: it verifies access tokens, parses role
// claims, and carries the result as a Principal on the request context.
// It deliberately does not look anything up in the document store —
// per-request role/quota lookups belong to the handler that needs them.
package principal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/cartographus/internal/models"
)

// Principal is the authenticated identity carried on a request context.
type Principal struct {
	UserID string
	Email  string
	Roles  []string
}

// HasRole reports whether the principal carries the named role, with
// admin implying editor and viewer.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	if role == models.RoleViewer || role == models.RoleEditor {
		for _, r := range p.Roles {
			if r == models.RoleAdmin {
				return true
			}
		}
	}
	if role == models.RoleViewer {
		for _, r := range p.Roles {
			if r == models.RoleEditor {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p.HasRole(models.RoleAdmin)
}

// claims is the JWT payload shape issued by the auth flow that mints
// access tokens; verification here only ever reads it back.
type claims struct {
	Roles []string `json:"roles"`
	Email string   `json:"email"`
	jwt.RegisteredClaims
}

// ErrMissingToken indicates no bearer token was present on the request.
var ErrMissingToken = errors.New("principal: missing bearer token")

// Verifier verifies access tokens signed with a shared HMAC secret and
// issues new ones. Access tokens are short-lived; refresh is handled by
// exchanging a RefreshToken document, not by this type.
type Verifier struct {
	secret   []byte
	issuer   string
	accessTTL time.Duration
}

// NewVerifier constructs a Verifier. secret must be non-empty.
func NewVerifier(secret string, accessTTL time.Duration) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("principal: secret must not be empty")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &Verifier{secret: []byte(secret), issuer: "cartographus-audio", accessTTL: accessTTL}, nil
}

// Issue mints a signed access token for the given principal.
func (v *Verifier) Issue(userID, email string, roles []string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(v.accessTTL)
	c := claims{
		Roles: roles,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("principal: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a bearer token, returning the Principal it
// encodes.
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("principal: unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer))
	if err != nil {
		return nil, fmt.Errorf("principal: verify token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("principal: token invalid")
	}
	return &Principal{UserID: c.Subject, Email: c.Email, Roles: c.Roles}, nil
}

// FromRequest extracts and verifies the bearer token from the
// Authorization header.
func (v *Verifier) FromRequest(r *http.Request) (*Principal, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, ErrMissingToken
	}
	return v.Verify(strings.TrimPrefix(header, prefix))
}

type contextKey int

const principalContextKey contextKey = iota

// ContextWithPrincipal returns a copy of ctx carrying p.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// FromContext extracts the Principal stored by ContextWithPrincipal, if any.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

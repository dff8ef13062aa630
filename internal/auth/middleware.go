// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/models"
)

type contextKey string

// ClaimsContextKey holds the *Claims of an authenticated request.
const ClaimsContextKey contextKey = "claims"

// TokenCookieName is the cookie the token is stored in for browsers.
const TokenCookieName = "token"

// ErrMissingToken is returned when neither header nor cookie is present.
var ErrMissingToken = errors.New("missing token")

// UserLookup loads the current account state of a token's subject.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Middleware authenticates API requests.
type Middleware struct {
	jwt     *JWTManager
	revoked RevocationStore
	users   UserLookup
}

// NewMiddleware creates the authentication middleware. users may be nil, in
// which case deactivated accounts keep working until their token expires.
func NewMiddleware(jwtManager *JWTManager, revoked RevocationStore, users UserLookup) *Middleware {
	return &Middleware{jwt: jwtManager, revoked: revoked, users: users}
}

// Authenticate rejects requests without a valid, unrevoked token for an
// active account and stores the claims in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.Verify(r.Context(), ExtractToken(r))
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")
			writeUnauthorized(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		ctx = logging.ContextWithUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Verify validates a raw token the same way Authenticate does. The
// WebSocket handshake uses it for the auth frame.
func (m *Middleware) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	if m.users != nil {
		u, err := m.users.GetUser(ctx, claims.UserID)
		if err != nil || !u.IsActive {
			return nil, ErrAccountInactive
		}
		// Role changes apply without waiting for a new token.
		claims.Role = u.Role
	}
	return claims, nil
}

// ExtractToken returns the bearer token, falling back to the cookie.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(TokenCookieName); err == nil {
		return c.Value
	}
	return ""
}

// ClaimsFromContext returns the authenticated claims, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return c, ok && c != nil
}

// ContextWithClaims is used by tests and the WebSocket hub.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, c)
}

// SetTokenCookie stores the token in an HttpOnly cookie.
func SetTokenCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie expires the token cookie.
func ClearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	msg := "authentication required"
	switch {
	case errors.Is(err, ErrTokenRevoked):
		msg = "token has been revoked"
	case errors.Is(err, ErrAccountInactive):
		msg = "account is inactive"
	case errors.Is(err, ErrInvalidToken):
		msg = "invalid or expired token"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: "UNAUTHORIZED", Message: msg},
	})
}

// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package authz

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/portico/internal/audit"
	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/logging"
	"github.com/tomtom215/portico/internal/models"
)

// Middleware enforces the policy on authenticated requests.
type Middleware struct {
	enforcer *Enforcer
	audit    *audit.Logger
}

// NewMiddleware creates the middleware. auditLog may be nil.
func NewMiddleware(enforcer *Enforcer, auditLog *audit.Logger) *Middleware {
	return &Middleware{enforcer: enforcer, audit: auditLog}
}

// Authorize derives resource and action from the request and rejects it
// with 403 unless the caller's role allows them. It must run after
// auth.Middleware.Authenticate.
func (m *Middleware) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeForbidden(w, "no authentication context")
			return
		}
		resource := ResourceFromPath(r.URL.Path)
		action := MethodToAction(r.Method)

		start := time.Now()
		allowed, cacheHit, err := m.enforcer.Enforce(claims.Role, resource, action)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		RecordAuthzDecision(claims.Role, resource, action, allowed, time.Since(start), cacheHit)

		if !allowed {
			logging.Ctx(r.Context()).Warn().
				Int64("user_id", claims.UserID).
				Str("role", claims.Role).
				Str("resource", resource).
				Str("action", action).
				Msg("Authorization denied")
			m.audit.LogAuthzDenied(audit.WithSourceIP(r.Context(), audit.ClientIP(r)),
				audit.UserActor(claims.UserID, claims.Username), resource, action)
			writeForbidden(w, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Can reports whether role may perform action on resource. Handlers use it
// for checks that depend on the object, such as editing another user's post.
func (m *Middleware) Can(role, resource, action string) bool {
	allowed, _, err := m.enforcer.Enforce(role, resource, action)
	return err == nil && allowed
}

// ResourceFromPath returns the first segment after /api, e.g. "quotes" for
// /api/quotes/12/accept.
func ResourceFromPath(path string) string {
	p := strings.TrimPrefix(path, "/api")
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

// MethodToAction maps HTTP methods to policy actions.
func MethodToAction(method string) string {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return "write"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

func writeForbidden(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: "FORBIDDEN", Message: msg},
	})
}

// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

/*
Package authz provides role-based authorization using Casbin.

Requests are reduced to a (role, resource, action) triple: the role comes
from the authenticated claims, the resource is the first path segment after
/api (quotes, customers, admin, ...) and the action is derived from the HTTP
method (read, write, delete).

The embedded policy grants the user role the business resources and the
admin role the admin resource; admin inherits everything user can do.
Deployments can replace both files through security.casbin.model_path and
security.casbin.policy_path.

Usage:

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfigFrom(&cfg.Security.Casbin))
	if err != nil {
		return err
	}
	defer enforcer.Close()

	mw := authz.NewMiddleware(enforcer, auditLog)
	r.With(authMiddleware.Authenticate, mw.Authorize).Get("/api/quotes", h.ListQuotes)

Decisions are cached per (role, resource, action) for CacheTTL. Policy
changes made through the Enforcer clear the cache.
*/
package authz

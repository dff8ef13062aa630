// Portico - Company Intranet Portal
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portico

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/portico/internal/auth"
	"github.com/tomtom215/portico/internal/authz"
	"github.com/tomtom215/portico/internal/middleware"
)

// Router wires handlers, authentication, authorization and HTTP plumbing.
type Router struct {
	handler       *Handler
	authn         *auth.Middleware
	authz         *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates the router. chiMW nil uses the defaults.
func NewRouter(handler *Handler, authn *auth.Middleware, authzMW *authz.Middleware, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, authn: authn, authz: authzMW, chiMiddleware: chiMW}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	mw := router.chiMiddleware

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(h.perfMon.Middleware)
	r.Use(mw.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		notFound(w, r, "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	r.Handle("/metrics", promhttp.Handler())

	// The upgrade authenticates with a token on the request or with the
	// first frame, so it sits outside Authenticate and Authorize.
	r.With(mw.RateLimit()).Get("/api/ws", h.hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Use(middleware.Compression)

		r.With(mw.RateLimitHealth()).Get("/health", h.Health)

		r.Route("/auth", func(r chi.Router) {
			r.With(mw.RateLimitLogin()).Post("/login", h.Login)
			r.With(mw.RateLimitRegister()).Post("/register", h.Register)
			r.With(mw.RateLimit()).Get("/invite/{code}", h.CheckInvite)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit())
			r.Use(router.authn.Authenticate)
			r.Use(router.authz.Authorize)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.Me)
			r.Put("/auth/password", h.ChangePassword)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.ListUsers)
				r.Put("/me", h.UpdateProfile)
				r.With(mw.RateLimitUpload()).Post("/me/avatar", h.UploadAvatar)
				r.Get("/{id}", h.GetUser)
				r.Get("/{id}/avatar", h.Avatar)
			})

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", h.ListPosts)
				r.Post("/", h.CreatePost)
				r.Get("/{id}", h.GetPost)
				r.Put("/{id}", h.UpdatePost)
				r.Delete("/{id}", h.DeletePost)
				r.Get("/{id}/reactions", h.ListReactions)
				r.Post("/{id}/reactions", h.ToggleReaction)
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", h.ListMessages)
				r.Post("/", h.SendMessage)
				r.Post("/read", h.MarkRead)
				r.Get("/unread", h.UnreadCounts)
			})
			r.Get("/presence", h.Presence)

			r.Route("/folders", func(r chi.Router) {
				r.Get("/", h.ListFolders)
				r.Post("/", h.CreateFolder)
				r.Put("/{id}", h.UpdateFolder)
				r.Delete("/{id}", h.DeleteFolder)
			})

			r.Route("/files", func(r chi.Router) {
				r.Get("/", h.ListFiles)
				r.With(mw.RateLimitUpload()).Post("/", h.UploadFile)
				r.Get("/{id}", h.GetFile)
				r.Get("/{id}/download", h.DownloadFile)
				r.Get("/{id}/thumbnail", h.Thumbnail)
				r.Put("/{id}", h.UpdateFile)
				r.Delete("/{id}", h.DeleteFile)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.ListCustomers)
				r.Post("/", h.CreateCustomer)
				r.With(mw.RateLimitUpload()).Post("/import", h.ImportCustomers)
				r.Get("/{id}", h.GetCustomer)
				r.Put("/{id}", h.UpdateCustomer)
				r.Delete("/{id}", h.DeleteCustomer)
				r.Get("/{id}/contacts", h.ListContacts)
				r.Post("/{id}/contacts", h.CreateContact)
				r.Put("/{id}/contacts/{contactID}", h.UpdateContact)
				r.Delete("/{id}/contacts/{contactID}", h.DeleteContact)
			})

			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", h.ListQuotes)
				r.Post("/", h.CreateQuote)
				r.Get("/{id}", h.GetQuote)
				r.Put("/{id}", h.UpdateQuote)
				r.Delete("/{id}", h.DeleteQuote)
				r.Put("/{id}/lines", h.ReplaceQuoteLines)
				r.Post("/{id}/{action:send|accept|reject|revert}", h.TransitionQuote)
				r.Post("/{id}/invoice", h.CreateInvoice)
				r.With(mw.RateLimitExport()).Get("/{id}/export", h.ExportQuote)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", h.ListInvoices)
				r.Get("/{id}", h.GetInvoice)
				r.Post("/{id}/paid", h.MarkInvoicePaid)
				r.Post("/{id}/cancel", h.CancelInvoice)
				r.With(mw.RateLimitExport()).Get("/{id}/export", h.ExportInvoice)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/pending", h.ListPending)
				r.Post("/pending/{id}/approve", h.ApprovePending)
				r.Post("/pending/{id}/reject", h.RejectPending)
				r.Get("/invites", h.ListInvites)
				r.Post("/invites", h.CreateInvite)
				r.Delete("/invites/{id}", h.RevokeInvite)
				r.Put("/users/{id}/role", h.ChangeRole)
				r.Put("/users/{id}/active", h.SetActive)
				r.Delete("/users/{id}", h.DeleteUser)
				r.Get("/audit", h.AuditLog)
				r.With(mw.RateLimitExport()).Post("/backups", h.CreateBackup)
				r.Get("/backups", h.ListBackups)
				r.Get("/performance", h.Performance)
			})
		})
	})

	return r
}

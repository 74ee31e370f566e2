// Package server exposes the dashboard pages as JSON endpoints and a
// websocket feed. Each browser client, identified by a signed cookie, gets
// its own app.Root.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/invoice-dashboard/internal/app"
	"gitlab.com/yelinaung/invoice-dashboard/internal/logger"
)

type contextKey string

const rootContextKey contextKey = "root"

// maxUploadSize bounds multipart upload bodies.
const maxUploadSize = 10 << 20

// Router wraps the mux router with the client registry.
type Router struct {
	*mux.Router
	registry *Registry
	cookies  *Cookies
	version  string
	check    func(context.Context) error
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithHealthCheck makes /health report 503 while check fails.
func WithHealthCheck(check func(context.Context) error) RouterOption {
	return func(r *Router) { r.check = check }
}

// NewRouter creates the HTTP router with all routes.
func NewRouter(registry *Registry, cookies *Cookies, version string, opts ...RouterOption) *Router {
	r := &Router{
		Router:   mux.NewRouter(),
		registry: registry,
		cookies:  cookies,
		version:  version,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.Use(routeSpanName)

	r.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Everything below belongs to a client root.
	client := r.PathPrefix("/").Subrouter()
	client.Use(r.clientMiddleware)

	auth := client.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods(http.MethodPost)
	auth.HandleFunc("/register", r.register).Methods(http.MethodPost)
	auth.HandleFunc("/logout", r.logout).Methods(http.MethodPost)

	api := client.PathPrefix("/api").Subrouter()
	api.HandleFunc("/profile", r.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", r.updateProfile).Methods(http.MethodPut)
	api.HandleFunc("/theme", r.getTheme).Methods(http.MethodGet)
	api.HandleFunc("/theme", r.toggleTheme).Methods(http.MethodPost)
	api.HandleFunc("/toast", r.getToast).Methods(http.MethodGet)
	api.HandleFunc("/upload", r.upload).Methods(http.MethodPost)
	api.HandleFunc("/upload/confirm", r.confirmUpload).Methods(http.MethodPost)
	api.HandleFunc("/invoices", r.listInvoices).Methods(http.MethodGet)
	api.HandleFunc("/invoices/export.csv", r.exportInvoices).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}", r.getInvoice).Methods(http.MethodGet)
	api.HandleFunc("/invoices/{id}/pdf", r.invoicePDF).Methods(http.MethodGet)
	api.HandleFunc("/analytics", r.getAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/analytics/charts/{chart}.png", r.analyticsChart).Methods(http.MethodGet)

	client.HandleFunc("/ws", r.serveWS).Methods(http.MethodGet)

	return r
}

// Handler returns the router wrapped with HTTP tracing.
func (r *Router) Handler() http.Handler {
	return otelhttp.NewHandler(r, "invoice-dashboard")
}

// routeSpanName renames the request span after the matched route template.
func routeSpanName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if route := mux.CurrentRoute(req); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				trace.SpanFromContext(req.Context()).SetName(req.Method + " " + tpl)
			}
		}
		next.ServeHTTP(w, req)
	})
}

// clientMiddleware resolves the client cookie and attaches the client's
// root to the request context.
func (r *Router) clientMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		clientID, err := r.cookies.Resolve(w, req)
		if err != nil {
			logger.Log.Error().Err(err).Msg("Failed to resolve client")
			respondError(w, http.StatusInternalServerError, "could not start session")
			return
		}
		root := r.registry.Get(req.Context(), clientID)
		ctx := context.WithValue(req.Context(), rootContextKey, root)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func rootFrom(req *http.Request) *app.Root {
	root, _ := req.Context().Value(rootContextKey).(*app.Root)
	return root
}

// healthCheck returns the health status of the service.
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	if r.check != nil {
		if err := r.check(req.Context()); err != nil {
			logger.Log.Warn().Err(err).Msg("Health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "unavailable",
				"version": r.version,
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": r.version,
		"clients": r.registry.Len(),
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to write response")
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func decodeJSON(req *http.Request, v any) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

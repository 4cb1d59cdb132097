// Package server exposes the protected form routes, the settings admin API
// and operational endpoints over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	recaptcha "github.com/berkan-cetinkaya/simpleform-recaptcha"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/options"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

type contextKey string

const (
	contextKeyCorrelationID contextKey = "correlationId"

	headerContentType   = "Content-Type"
	headerCorrelationID = "X-Correlation-Id"

	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"
)

// Handler wires the HTTP routes.
type Handler struct {
	store      options.Store
	provider   settings.Provider
	engine     *recaptcha.Engine
	logger     *slog.Logger
	submit     http.Handler
	adminToken string
	router     *mux.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithEngine sets the decision engine used by the submit route.
func WithEngine(e *recaptcha.Engine) Option {
	return func(h *Handler) { h.engine = e }
}

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithProvider reads form settings from p instead of the options store.
// The admin routes keep writing to the store.
func WithProvider(p settings.Provider) Option {
	return func(h *Handler) {
		if p != nil {
			h.provider = p
		}
	}
}

// WithSubmitHandler sets the handler that receives accepted submissions.
func WithSubmitHandler(next http.Handler) Option {
	return func(h *Handler) {
		if next != nil {
			h.submit = next
		}
	}
}

// WithAdminToken requires "Authorization: Bearer <token>" on admin routes.
// Without a token the admin routes answer loopback clients only.
func WithAdminToken(token string) Option {
	return func(h *Handler) { h.adminToken = token }
}

// New creates a Handler backed by store.
func New(store options.Store, opts ...Option) *Handler {
	h := &Handler{
		store:    store,
		provider: settings.StoreProvider{Store: store},
		logger:   slog.Default(),
		router:   mux.NewRouter(),
	}
	h.submit = http.HandlerFunc(h.acceptSubmission)
	for _, opt := range opts {
		opt(h)
	}
	if h.engine == nil {
		h.engine = recaptcha.NewEngine(recaptcha.WithLogger(h.logger))
	}
	if h.adminToken == "" {
		h.logger.Warn("no admin token configured, admin API accepts loopback clients only")
	}
	h.registerRoutes()
	return h
}

// Router returns the handler with every route registered.
func (h *Handler) Router() http.Handler {
	return h.router
}

func (h *Handler) registerRoutes() {
	h.router.Use(h.loggingMiddleware)

	h.router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	h.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	h.router.HandleFunc("/forms/{id:[0-9]+}", h.renderForm).Methods(http.MethodGet)
	h.router.Handle("/forms/{id:[0-9]+}/submit", recaptcha.Middleware(h.provider,
		recaptcha.WithEngine(h.engine),
		recaptcha.WithMiddlewareLogger(h.logger),
		recaptcha.WithFormID(formIDFromRoute),
	)(h.submit)).Methods(http.MethodPost)

	admin := h.router.PathPrefix("/admin").Subrouter()
	admin.Use(h.adminMiddleware)
	admin.HandleFunc("/forms", h.listForms).Methods(http.MethodGet)
	admin.HandleFunc("/forms/{id:[0-9]+}/settings", h.getSettings).Methods(http.MethodGet)
	admin.HandleFunc("/forms/{id:[0-9]+}/settings", h.putSettings).Methods(http.MethodPut)
	admin.HandleFunc("/forms/{id:[0-9]+}/settings", h.postSettings).Methods(http.MethodPost)
	admin.HandleFunc("/forms/{id:[0-9]+}/attributes", h.putAttributes).Methods(http.MethodPut)
	admin.HandleFunc("/export", h.export).Methods(http.MethodGet)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func formIDFromRoute(r *http.Request) int {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		return settings.MainForm
	}
	return id
}

type errorEnvelope struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, map[string]errorEnvelope{
		"error": {Code: code, Message: message, CorrelationID: correlationIDFrom(r.Context())},
	})
}

func correlationIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyCorrelationID).(string); ok {
		return v
	}
	return ""
}

package server

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recaptcha_http_requests_total",
			Help: "Total number of HTTP requests, by route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recaptcha_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// loggingMiddleware tags the request with a correlation id, then logs and
// counts it once the handler returns.
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := strings.TrimSpace(r.Header.Get(headerCorrelationID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerCorrelationID, id)
		r = r.WithContext(context.WithValue(r.Context(), contextKeyCorrelationID, id))

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start)

		route := routeTemplate(r)
		h.logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", duration,
			"correlationId", id,
		)
		requestCount.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		requestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
	})
}

// routeTemplate keeps metric labels bounded by using the matched pattern.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func (h *Handler) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" {
			if !fromLoopback(r) {
				h.logger.Warn("admin request refused, no admin token configured",
					"remote_addr", r.RemoteAddr, "path", r.URL.Path,
					"correlationId", correlationIDFrom(r.Context()))
				h.writeError(w, r, http.StatusForbidden, "FORBIDDEN", "admin API is limited to loopback clients until an admin token is set")
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) != 1 {
			h.writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func fromLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

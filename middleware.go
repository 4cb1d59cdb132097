package recaptcha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

// Form field contract with the rendered widget.
const (
	TokenField   = "g-recaptcha-response"
	TokenHeader  = "X-Recaptcha-Token"
	FormIDField  = "form_id"
	ExpiredValue = "expired"
)

const maxJSONBody = 1 << 20

// MarkerField names the per-form hidden field the checkbox script sets to
// "expired" when the widget reports token expiry.
func MarkerField(formID int) string {
	return fmt.Sprintf("recaptcha-%d-response", formID)
}

var (
	engineOnce sync.Once
	engine     *Engine
)

func defaultEngine() *Engine {
	engineOnce.Do(func() {
		engine = NewEngine()
	})
	return engine
}

// Failure describes a rejected submission handed to a FailureHandler.
type Failure struct {
	FormID   int
	Decision Decision
	Message  string
}

type FailureHandler func(http.ResponseWriter, *http.Request, Failure)

type middlewareConfig struct {
	failureHandler FailureHandler
	engine         *Engine
	logger         *slog.Logger
	formID         func(*http.Request) int
	timeout        time.Duration
}

type MiddlewareOption func(*middlewareConfig)

func WithFailureHandler(handler FailureHandler) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if handler != nil {
			cfg.failureHandler = handler
		}
	}
}

func WithEngine(e *Engine) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if e != nil {
			cfg.engine = e
		}
	}
}

func WithMiddlewareLogger(l *slog.Logger) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithFormID overrides how the submitting form is identified.
func WithFormID(fn func(*http.Request) int) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if fn != nil {
			cfg.formID = fn
		}
	}
}

// WithTimeout bounds the siteverify call.
func WithTimeout(d time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

type decisionKey struct{}

// DecisionFromContext returns the decision that let the request through.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionKey{}).(Decision)
	return d, ok
}

// Middleware guards a form submission handler. Forms that do not use
// reCAPTCHA pass straight through.
func Middleware(provider settings.Provider, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		failureHandler: JSONFailureHandler(http.StatusBadRequest),
		logger:         slog.Default(),
		formID:         FormIDFromRequest,
		timeout:        6 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			eng := cfg.engine
			if eng == nil {
				eng = defaultEngine()
			}

			formID := cfg.formID(r)
			s, attrs, err := provider.ForForm(r.Context(), formID)
			if err != nil {
				cfg.logger.Error("recaptcha settings unavailable", "form_id", formID, "error", err)
				http.Error(w, "form protection is not configured", http.StatusServiceUnavailable)
				return
			}
			if !s.Protects(attrs) {
				next.ServeHTTP(w, r)
				return
			}

			var d Decision
			if s.Variant == settings.VariantCheckbox && r.FormValue(MarkerField(formID)) == ExpiredValue {
				d = Reject(ReasonExpired)
				recordDecision(s.Variant, d)
			} else {
				ctx, cancel := context.WithTimeout(r.Context(), cfg.timeout)
				d = eng.Verify(ctx, extractToken(r), clientIP(r), s)
				cancel()
			}

			if !d.Accepted {
				cfg.failureHandler(w, r, Failure{
					FormID:   formID,
					Decision: d,
					Message:  d.Message(s.Messages),
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), decisionKey{}, d)))
		})
	}
}

// JSONFailureHandler answers with the error envelope the form's ajax
// submission expects.
func JSONFailureHandler(status int) FailureHandler {
	return func(w http.ResponseWriter, _ *http.Request, f Failure) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":       true,
			"form_id":     f.FormID,
			"reason":      f.Decision.Reason,
			"error_class": f.Decision.Reason.ErrorClass(),
			"notice":      f.Message,
			"showerror":   true,
			"field_focus": false,
		})
	}
}

// FormIDFromRequest reads form_id from the submitted form or query, defaulting
// to the main form.
func FormIDFromRequest(r *http.Request) int {
	raw := strings.TrimSpace(r.FormValue(FormIDField))
	if raw == "" {
		return settings.MainForm
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return settings.MainForm
	}
	return id
}

func extractToken(r *http.Request) string {
	if t := r.Header.Get(TokenHeader); t != "" {
		return t
	}
	if t := r.FormValue(TokenField); t != "" {
		return t
	}
	if r.Body != nil && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		b, _ := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
		r.Body = io.NopCloser(bytes.NewReader(b))
		if len(b) > 0 {
			var m map[string]any
			_ = json.Unmarshal(b, &m)
			if v, ok := m[TokenField].(string); ok {
				return v
			}
			if v, ok := m["token"].(string); ok {
				return v
			}
		}
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

package recaptcha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/config"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/verifier"
)

// ExpectedAction is the v3 action name the client script requests tokens for.
const ExpectedAction = "submit_form"

// Reason explains a rejected submission. It is a code, never display text.
type Reason string

const (
	ReasonUnverified Reason = "unverified"
	ReasonExpired    Reason = "expired"
	ReasonInvalid    Reason = "invalid"
)

// ErrorClass is the key the host form layer uses to flag the field in error.
func (r Reason) ErrorClass() string {
	switch r {
	case ReasonUnverified:
		return "unverified_recaptcha"
	case ReasonExpired:
		return "expired_recaptcha"
	case ReasonInvalid:
		return "recaptcha"
	default:
		return ""
	}
}

// Decision is the outcome of one verification.
type Decision struct {
	Accepted bool
	Reason   Reason
	// Result is the remote reply, nil when no call was made or it failed.
	Result *verifier.Result
	// Err carries a transport or secret lookup failure. Such failures are
	// accepted; Err is only for logging.
	Err error
}

// Accept and Reject build decisions.
func Accept() Decision { return Decision{Accepted: true} }

func Reject(reason Reason) Decision { return Decision{Reason: reason} }

// Message picks the operator-configured text for a rejection.
func (d Decision) Message(m settings.Messages) string {
	switch d.Reason {
	case ReasonUnverified:
		return m.Unverified
	case ReasonExpired:
		return m.Expired
	case ReasonInvalid:
		return m.Invalid
	default:
		return ""
	}
}

// SecretResolver looks up secret keys referenced by name.
type SecretResolver interface {
	Get(key string) (string, error)
}

// Engine turns a response token and the active settings into a Decision.
type Engine struct {
	buildVerifier func(secret string) verifier.Verifier
	secrets       SecretResolver
	logger        *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithVerifierFactory replaces how a verifier is built for a secret.
func WithVerifierFactory(build func(secret string) verifier.Verifier) EngineOption {
	return func(e *Engine) {
		if build != nil {
			e.buildVerifier = build
		}
	}
}

// WithGoogle points the default Google verifier at endpoint using client.
// Empty endpoint and nil client keep the defaults.
func WithGoogle(endpoint string, client *http.Client) EngineOption {
	return func(e *Engine) {
		e.buildVerifier = func(secret string) verifier.Verifier {
			return verifier.NewGoogle(secret, verifier.WithEndpoint(endpoint), verifier.WithHTTPClient(client))
		}
	}
}

// WithSecretResolver sets where SecretRef values are looked up.
func WithSecretResolver(r SecretResolver) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.secrets = r
		}
	}
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine builds an engine. Without WithSecretResolver, SecretRef values
// are read from the environment.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		buildVerifier: func(secret string) verifier.Verifier {
			return verifier.NewGoogle(secret)
		},
		secrets: config.NewManager(config.NewEnvSource()),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify decides one submission. An empty token under the checkbox variant
// is rejected without a network call. Otherwise exactly one siteverify call
// is made; if it cannot complete the submission is accepted.
func (e *Engine) Verify(ctx context.Context, token, ip string, s settings.Settings) Decision {
	d := e.decide(ctx, token, ip, s)
	recordDecision(s.Variant, d)
	return d
}

func (e *Engine) decide(ctx context.Context, token, ip string, s settings.Settings) Decision {
	if s.Variant == settings.VariantCheckbox && token == "" {
		return Reject(ReasonUnverified)
	}

	secret, err := e.secretFor(s)
	if err != nil {
		e.logger.Error("recaptcha secret unavailable, accepting submission", "variant", s.Variant, "error", err)
		return Decision{Accepted: true, Err: err}
	}

	res, err := e.buildVerifier(secret).Verify(ctx, token, ip)
	if err != nil {
		var te *verifier.TransportError
		if errors.As(err, &te) {
			recordTransportError(te.Op)
		} else {
			recordTransportError("unknown")
		}
		e.logger.Warn("recaptcha verification unavailable, accepting submission", "variant", s.Variant, "error", err)
		return Decision{Accepted: true, Err: err}
	}

	d := judge(res, s)
	d.Result = &res
	if !d.Accepted {
		e.logger.Info("recaptcha rejected submission",
			"variant", s.Variant,
			"action", res.Action,
			"score", scoreAttr(res.Score),
			"error_codes", res.ErrorCodes,
		)
	}
	return d
}

func judge(res verifier.Result, s settings.Settings) Decision {
	if s.Variant != settings.VariantV3 {
		if !res.Success {
			return Reject(ReasonInvalid)
		}
		return Accept()
	}
	if res.Success && res.Action == ExpectedAction && res.Score != nil && *res.Score >= s.EffectiveThreshold() {
		return Accept()
	}
	return Reject(ReasonInvalid)
}

func (e *Engine) secretFor(s settings.Settings) (string, error) {
	if s.SecretKey != "" || s.SecretRef == "" {
		return s.SecretKey, nil
	}
	secret, err := e.secrets.Get(s.SecretRef)
	if err != nil {
		return "", fmt.Errorf("failed to load secret '%s': %w", s.SecretRef, err)
	}
	return secret, nil
}

func scoreAttr(score *float64) any {
	if score == nil {
		return nil
	}
	return *score
}

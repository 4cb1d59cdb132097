package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultEndpoint is Google's verification URL.
const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

const maxBodyBytes = 64 << 10

type Google struct {
	Secret   string
	Endpoint string
	Client   *http.Client
}

// Option customises a Google verifier.
type Option func(*Google)

// WithEndpoint points the verifier at another siteverify URL (tests, recaptcha.net).
func WithEndpoint(endpoint string) Option {
	return func(g *Google) {
		if endpoint != "" {
			g.Endpoint = endpoint
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Google) {
		if c != nil {
			g.Client = c
		}
	}
}

func NewGoogle(secret string, opts ...Option) *Google {
	g := &Google{
		Secret:   secret,
		Endpoint: DefaultEndpoint,
		Client:   &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Verify issues one GET with secret, response and remoteip as query parameters.
func (g *Google) Verify(ctx context.Context, token, ip string) (Result, error) {
	query := url.Values{}
	query.Set("secret", g.Secret)
	query.Set("response", token)
	query.Set("remoteip", ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.Endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Result{}, &TransportError{Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return Result{}, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Result{}, &TransportError{Op: "response", StatusCode: resp.StatusCode}
	}

	var raw struct {
		Success     *bool    `json:"success"`
		Score       *float64 `json:"score,omitempty"`
		Action      string   `json:"action,omitempty"`
		Hostname    string   `json:"hostname,omitempty"`
		ChallengeTS string   `json:"challenge_ts,omitempty"`
		ErrorCodes  []string `json:"error-codes,omitempty"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&raw); err != nil {
		return Result{}, &TransportError{Op: "decode", Err: fmt.Errorf("google decode error: %w", err)}
	}
	if raw.Success == nil {
		return Result{}, &TransportError{Op: "decode", Err: fmt.Errorf("google reply has no success field")}
	}

	return Result{
		Success:     *raw.Success,
		Action:      raw.Action,
		Score:       raw.Score,
		Hostname:    raw.Hostname,
		ChallengeTS: raw.ChallengeTS,
		ErrorCodes:  raw.ErrorCodes,
	}, nil
}

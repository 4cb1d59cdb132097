package sequencer

import (
	"log/slog"
	"time"
)

const (
	// Action is the v3 action every token is requested for.
	Action = "submit_form"
	// ExpiredMarker is written to the checkbox marker field on expiry.
	ExpiredMarker = "expired"

	// ResubmitDelay separates token arrival from the re-dispatched click.
	ResubmitDelay = time.Second
	// FocusDelay lets the error region render before it takes focus.
	FocusDelay = time.Second
	// TokenLifetime matches how long Google accepts a token.
	TokenLifetime = 120 * time.Second
)

// State is the position of a machine.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingToken         State = "awaiting_token"
	StateArmed                 State = "armed"
	StateExpiredPendingRefresh State = "expired_pending_refresh"
	StatePending               State = "pending"
	StateVerified              State = "verified"
	StateExpired               State = "expired"
)

// Click is one submit activation travelling through the handler chain.
type Click struct {
	prevented bool
}

// PreventDefault stops the form from being submitted by this click.
func (c *Click) PreventDefault() { c.prevented = true }

// Prevented reports whether a handler held the click.
func (c *Click) Prevented() bool { return c.prevented }

// Button is the form's submit control. Click dispatches a fresh click event
// through every handler attached to it, not only the machine's.
type Button interface {
	Click()
}

// Fields are all hidden token fields sharing one name on the page.
type Fields interface {
	SetAll(value string)
}

// Field is a single hidden input.
type Field interface {
	Set(value string)
}

// Option configures a machine.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for failed token requests and state changes.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
